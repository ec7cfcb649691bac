// Package lightning implements the exact payment scheme over the Bitcoin
// Lightning Network. The resource server issues a BOLT11 invoice in the
// payment requirements; the client pays it out of band and presents the
// invoice back, and the facilitator confirms settlement against its LND node.
package lightning

// SchemeExact is the scheme identifier.
const SchemeExact = "exact"

const (
	NetworkMainnet = "lightning:mainnet"
	NetworkTestnet = "lightning:testnet"
)

// AssetSats is the only asset on this rail, satoshis.
const AssetSats = "BTC"

// MinExpirySkewSeconds is the minimum remaining invoice validity at
// verification time.
const MinExpirySkewSeconds = 5

// Stable error tags
const (
	ErrInvalidPayload      = "invalid_lightning_payload"
	ErrInvalidNetwork      = "invalid_lightning_network"
	ErrInvoiceDecodeFailed = "lightning_invoice_decode_failed"
	ErrAmountMismatch      = "lightning_amount_mismatch"
	ErrDestinationMismatch = "lightning_destination_mismatch"
	ErrInvoiceExpired      = "lightning_invoice_expired"
	ErrInvoiceNotSettled   = "lightning_invoice_not_settled"
	ErrUnderpaid           = "lightning_invoice_underpaid"
)

// IsValidNetwork reports whether a network identifier is supported.
func IsValidNetwork(network string) bool {
	return network == NetworkMainnet || network == NetworkTestnet
}
