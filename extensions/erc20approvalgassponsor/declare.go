package erc20approvalgassponsor

// DeclareExtension creates the extension declaration for inclusion in
// PaymentRequired.extensions.
//
// Alias of DeclareErc20ApprovalGasSponsoringExtension.
//
// Example:
//
//	extensions := erc20approvalgassponsor.DeclareExtension()
//	// Include in PaymentRequired.Extensions
func DeclareExtension() map[string]interface{} {
	return DeclareErc20ApprovalGasSponsoringExtension()
}
