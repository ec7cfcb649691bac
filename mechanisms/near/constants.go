// Package near implements the exact payment scheme for NEAR networks.
// Payments travel as a Borsh-serialized NEP-366 SignedDelegateAction calling
// ft_transfer on the payment token; the facilitator acts as the relayer and
// wraps the delegate action in its own transaction, paying gas. NEP-413
// signed messages are supported for header-based payer authentication.
package near

// SchemeExact is the scheme identifier.
const SchemeExact = "exact"

const (
	NetworkMainnet = "near:mainnet"
	NetworkTestnet = "near:testnet"
)

// MethodFtTransfer is the only method a delegated function call may invoke.
const MethodFtTransfer = "ft_transfer"

// OneYocto is the exact deposit ft_transfer requires.
const OneYocto = 1

// MaxDelegateGas caps the gas a relayed function call may attach (300 TGas).
const MaxDelegateGas = 300_000_000_000_000

// MinBlockHeightSlack is the minimum number of blocks a delegate action must
// remain valid for at verification time.
const MinBlockHeightSlack = 10

// Borsh signable message discriminants (NEP-461).
const (
	NEP366DelegateActionPrefix = (1 << 30) + 366
	NEP413SignMessagePrefix    = (1 << 31) + 413
)

// Stable error tags
const (
	ErrInvalidPayload     = "invalid_near_payload"
	ErrInvalidNetwork     = "invalid_near_network"
	ErrInvalidSignature   = "invalid_near_signature"
	ErrSenderMismatch     = "near_sender_mismatch"
	ErrContractMismatch   = "near_contract_mismatch"
	ErrDisallowedMethod   = "near_disallowed_method"
	ErrRecipientMismatch  = "near_recipient_mismatch"
	ErrInsufficientAmount = "near_insufficient_amount"
	ErrInvalidDeposit     = "near_invalid_deposit"
	ErrGasLimitExceeded   = "near_gas_limit_exceeded"
	ErrDelegateExpired    = "near_delegate_action_expired"
	ErrSelfRelay          = "near_relayer_is_sender"
	ErrSettlementFailed   = "near_settlement_failed"
)

// NetworkConfig describes a supported NEAR network.
type NetworkConfig struct {
	DefaultAsset AssetInfo
}

// AssetInfo describes a NEP-141 fungible token by its contract account.
type AssetInfo struct {
	ContractID string
	Symbol     string
	Decimals   int
}

// NetworkConfigs maps CAIP-style network identifiers to their configuration.
var NetworkConfigs = map[string]NetworkConfig{
	NetworkMainnet: {
		DefaultAsset: AssetInfo{
			ContractID: "17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1",
			Symbol:     "USDC",
			Decimals:   6,
		},
	},
	NetworkTestnet: {
		DefaultAsset: AssetInfo{
			ContractID: "3e2210e1184b45b64c8a434c0a7e7b23cc04ea7eb7a6c3c32520d03d4afcb8af",
			Symbol:     "USDC",
			Decimals:   6,
		},
	},
}

// GetNetworkConfig returns the configuration for a network identifier.
func GetNetworkConfig(network string) (NetworkConfig, bool) {
	config, ok := NetworkConfigs[network]
	return config, ok
}
