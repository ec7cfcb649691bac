package svm

import (
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
)

// networkConfigs is the supported network registry, keyed by CAIP-2 id.
var networkConfigs = map[string]NetworkConfig{
	SolanaMainnetCAIP2: {
		CAIP2:  SolanaMainnetCAIP2,
		V1Name: SolanaMainnetV1,
		RPCURL: "https://api.mainnet-beta.solana.com",
		DefaultAsset: AssetInfo{
			Address:  USDCMainnetAddress,
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	SolanaDevnetCAIP2: {
		CAIP2:  SolanaDevnetCAIP2,
		V1Name: SolanaDevnetV1,
		RPCURL: "https://api.devnet.solana.com",
		DefaultAsset: AssetInfo{
			Address:  USDCDevnetAddress,
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	SolanaTestnetCAIP2: {
		CAIP2:  SolanaTestnetCAIP2,
		V1Name: SolanaTestnetV1,
		RPCURL: "https://api.testnet.solana.com",
		DefaultAsset: AssetInfo{
			Address:  USDCDevnetAddress,
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
}

// v1NetworkAliases maps legacy V1 network names to CAIP-2 ids.
var v1NetworkAliases = map[string]string{
	SolanaMainnetV1: SolanaMainnetCAIP2,
	SolanaDevnetV1:  SolanaDevnetCAIP2,
	SolanaTestnetV1: SolanaTestnetCAIP2,
}

// NormalizeNetwork converts a network identifier (CAIP-2 or legacy V1 name)
// to its CAIP-2 form.
func NormalizeNetwork(network string) (string, error) {
	if _, ok := networkConfigs[network]; ok {
		return network, nil
	}
	if caip2, ok := v1NetworkAliases[network]; ok {
		return caip2, nil
	}
	return "", fmt.Errorf("unsupported network: %s", network)
}

// IsValidNetwork reports whether the network identifier (CAIP-2 or legacy V1
// name) is supported.
func IsValidNetwork(network string) bool {
	_, err := NormalizeNetwork(network)
	return err == nil
}

// GetNetworkConfig returns the configuration for a network. Accepts both
// CAIP-2 ids and legacy V1 names.
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	caip2, err := NormalizeNetwork(network)
	if err != nil {
		return nil, err
	}
	config := networkConfigs[caip2]
	return &config, nil
}

// GetAssetInfo resolves an asset by mint address or symbol on a network.
// Unknown assets fall back to the network's default asset.
func GetAssetInfo(network string, assetOrSymbol string) (*AssetInfo, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(assetOrSymbol, config.DefaultAsset.Symbol) ||
		assetOrSymbol == config.DefaultAsset.Address ||
		strings.EqualFold(assetOrSymbol, "USD") {
		asset := config.DefaultAsset
		return &asset, nil
	}

	// Unrecognized assets use the default asset's parameters. USDC is the
	// only first-class asset; callers passing a custom mint keep its address.
	asset := config.DefaultAsset
	if ValidateSolanaAddress(assetOrSymbol) {
		asset.Address = assetOrSymbol
		asset.Symbol = ""
	}
	return &asset, nil
}

// ValidateSolanaAddress reports whether the string is a valid base58-encoded
// 32-byte public key.
func ValidateSolanaAddress(address string) bool {
	if address == "" {
		return false
	}
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

// ParseAmount converts a decimal amount string to atomic units. Excess
// fractional digits are truncated.
func ParseAmount(amount string, decimals int) (uint64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, fmt.Errorf("empty amount")
	}

	parts := strings.SplitN(amount, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	var result uint64
	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid amount: %s", amount)
		}
		d := uint64(c - '0')
		if result > (^uint64(0)-d)/10 {
			return 0, fmt.Errorf("amount overflow: %s", amount)
		}
		result = result*10 + d
	}
	return result, nil
}

// FormatAmount converts atomic units to a decimal string, trimming trailing
// zeros.
func FormatAmount(amount uint64, decimals int) string {
	s := fmt.Sprintf("%d", amount)
	if decimals == 0 {
		return s
	}
	for len(s) <= decimals {
		s = "0" + s
	}
	whole := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// EncodeTransaction serializes a transaction to base64.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(txBytes), nil
}

// DecodeTransaction deserializes a base64-encoded transaction.
func DecodeTransaction(base64Tx string) (*solana.Transaction, error) {
	txBytes, err := base64.StdEncoding.DecodeString(base64Tx)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}
	return tx, nil
}
