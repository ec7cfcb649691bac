// Package hedera implements the exact payment scheme for Hedera networks.
// Payments travel as frozen, sender-signed TransferTransaction bytes whose
// transaction id names the facilitator account, so the facilitator co-signs
// as the fee payer and submits.
package hedera

// SchemeExact is the scheme identifier.
const SchemeExact = "exact"

const (
	NetworkMainnet = "hedera:mainnet"
	NetworkTestnet = "hedera:testnet"
)

// AssetHbar selects native HBAR transfers instead of a token id.
const AssetHbar = "HBAR"

// MinValiditySeconds is the minimum remaining transaction validity at
// verification time.
const MinValiditySeconds = 5

// Stable error tags
const (
	ErrInvalidPayload     = "invalid_hedera_payload"
	ErrInvalidNetwork     = "invalid_hedera_network"
	ErrNotTransfer        = "hedera_not_a_transfer"
	ErrFeePayerMismatch   = "hedera_fee_payer_mismatch"
	ErrRecipientMismatch  = "hedera_recipient_mismatch"
	ErrAmountMismatch     = "hedera_amount_mismatch"
	ErrPayerDebitMismatch = "hedera_payer_debit_mismatch"
	ErrTransactionExpired = "hedera_transaction_expired"
	ErrSettlementFailed   = "hedera_settlement_failed"
)

// NetworkConfig describes a supported Hedera network.
type NetworkConfig struct {
	DefaultAsset AssetInfo
}

// AssetInfo describes a token by its entity id, or HBAR.
type AssetInfo struct {
	TokenID  string
	Symbol   string
	Decimals int
}

// NetworkConfigs maps CAIP-style network identifiers to their configuration.
var NetworkConfigs = map[string]NetworkConfig{
	NetworkMainnet: {
		DefaultAsset: AssetInfo{
			TokenID:  "0.0.456858",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	NetworkTestnet: {
		DefaultAsset: AssetInfo{
			TokenID:  "0.0.429274",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
}

// GetNetworkConfig returns the configuration for a network identifier.
func GetNetworkConfig(network string) (NetworkConfig, bool) {
	config, ok := NetworkConfigs[network]
	return config, ok
}
