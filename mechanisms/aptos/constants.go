// Package aptos implements the exact payment scheme for Aptos networks.
// Payments travel as a BCS-serialized RawTransaction plus the sender's
// account authenticator; the facilitator inspects the entry function,
// simulates, and submits, optionally sponsoring gas as the fee payer.
package aptos

// SchemeExact is the scheme identifier.
const SchemeExact = "exact"

const (
	NetworkMainnet = "aptos:mainnet"
	NetworkTestnet = "aptos:testnet"
	NetworkDevnet  = "aptos:devnet"
)

// Entry functions a payment transaction may call.
const (
	ModuleAddressFramework     = "0x1"
	ModulePrimaryFungibleStore = "primary_fungible_store"
	ModuleFungibleAsset        = "fungible_asset"
	FunctionTransfer           = "transfer"
)

// MaxSponsoredGasAmount caps max_gas_amount when the facilitator pays gas.
const MaxSponsoredGasAmount = 500_000

// MinExpirySkewSeconds is the minimum remaining validity a transaction must
// have at verification time.
const MinExpirySkewSeconds = 5

// DefaultMaxGasAmount and DefaultGasUnitPrice are used by the client when the
// requirements do not override them.
const (
	DefaultMaxGasAmount = 200_000
	DefaultGasUnitPrice = 100
)

// Stable error tags. Payload-class rejections follow the
// invalid_exact_aptos_payload_* convention shared with the other exact
// schemes; these strings are wire contract.
const (
	ErrInvalidPayload      = "invalid_exact_aptos_payload"
	ErrInvalidNetwork      = "invalid_aptos_network"
	ErrChainIDMismatch     = "invalid_exact_aptos_payload_chain_id_mismatch"
	ErrSenderMismatch      = "invalid_exact_aptos_payload_sender_mismatch"
	ErrGasLimitExceeded    = "invalid_exact_aptos_payload_gas_limit_exceeded"
	ErrTransactionExpired  = "invalid_exact_aptos_payload_transaction_expired"
	ErrDisallowedFunction  = "invalid_exact_aptos_payload_disallowed_entry_function"
	ErrAssetMismatch       = "invalid_exact_aptos_payload_asset_mismatch"
	ErrRecipientMismatch   = "invalid_exact_aptos_payload_recipient_mismatch"
	ErrInsufficientAmount  = "invalid_exact_aptos_payload_insufficient_amount"
	ErrInsufficientBalance = "insufficient_funds"
	ErrSimulationFailed    = "aptos_simulation_failed"
	ErrSelfSponsorship     = "invalid_exact_aptos_payload_fee_payer_transferring_funds"
	ErrSettlementFailed    = "aptos_settlement_failed"
)

// NetworkConfig describes a supported Aptos network.
type NetworkConfig struct {
	ChainID      uint8
	DefaultAsset AssetInfo
}

// AssetInfo describes a fungible asset by its metadata object address.
type AssetInfo struct {
	MetadataAddress string
	Symbol          string
	Decimals        int
}

// NetworkConfigs maps CAIP-style network identifiers to their configuration.
// The default asset is USDC (fungible asset standard) where issued, APT
// elsewhere.
var NetworkConfigs = map[string]NetworkConfig{
	NetworkMainnet: {
		ChainID: 1,
		DefaultAsset: AssetInfo{
			MetadataAddress: "0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b",
			Symbol:          "USDC",
			Decimals:        6,
		},
	},
	NetworkTestnet: {
		ChainID: 2,
		DefaultAsset: AssetInfo{
			MetadataAddress: "0x69091fbab5f7d635ee7ac5098cf0c1efbe31d68fec0f2cd565e8d168daf52832",
			Symbol:          "USDC",
			Decimals:        6,
		},
	},
	NetworkDevnet: {
		ChainID: 174,
		DefaultAsset: AssetInfo{
			MetadataAddress: "0xa",
			Symbol:          "APT",
			Decimals:        8,
		},
	},
}

// GetNetworkConfig returns the configuration for a network identifier.
func GetNetworkConfig(network string) (NetworkConfig, bool) {
	config, ok := NetworkConfigs[network]
	return config, ok
}
