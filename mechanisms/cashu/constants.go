// Package cashu implements the exact payment scheme with Cashu ecash.
// Payments are bearer proofs issued by a mint; the facilitator checks the
// proofs against the mint's keysets and redeems them on settlement, which
// atomically marks them spent.
package cashu

// SchemeExact is the scheme identifier.
const SchemeExact = "exact"

const (
	NetworkMainnet = "cashu:mainnet"
	NetworkTestnet = "cashu:testnet"
)

// AssetSats is the only unit this scheme carries, satoshis.
const AssetSats = "sat"

// Stable error tags
const (
	ErrInvalidPayload    = "invalid_cashu_payload"
	ErrInvalidNetwork    = "invalid_cashu_network"
	ErrInvalidProof      = "invalid_cashu_proof"
	ErrUnknownKeyset     = "cashu_unknown_keyset"
	ErrDuplicateProof    = "cashu_duplicate_proof"
	ErrInsufficientValue = "cashu_insufficient_value"
	ErrProofsSpent       = "cashu_proofs_already_spent"
	ErrRedeemFailed      = "cashu_redeem_failed"
)

// IsValidNetwork reports whether a network identifier is supported.
func IsValidNetwork(network string) bool {
	return network == NetworkMainnet || network == NetworkTestnet
}
