package evm

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// IsValidNetwork reports whether the network has a configuration entry.
// Accepts both CAIP-2 identifiers and v1 legacy names.
func IsValidNetwork(network string) bool {
	_, ok := NetworkConfigs[network]
	return ok
}

// GetNetworkConfig returns the configuration for a network.
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	config, ok := NetworkConfigs[network]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	return &config, nil
}

// GetAssetInfo returns information about an asset on a network.
// An empty asset or a match on the default asset address resolves to the
// network default. Known symbols resolve through SupportedAssets. Any other
// valid address is treated as an unknown ERC-20 with 18 decimals.
func GetAssetInfo(network string, assetSymbolOrAddress string) (*AssetInfo, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, err
	}

	if assetSymbolOrAddress == "" {
		return &config.DefaultAsset, nil
	}

	if IsValidAddress(assetSymbolOrAddress) {
		normalized := NormalizeAddress(assetSymbolOrAddress)
		if normalized == NormalizeAddress(config.DefaultAsset.Address) {
			return &config.DefaultAsset, nil
		}
		for _, asset := range config.SupportedAssets {
			if normalized == NormalizeAddress(asset.Address) {
				info := asset
				return &info, nil
			}
		}
		return &AssetInfo{
			Address:  normalized,
			Name:     "Unknown Token",
			Version:  "1",
			Decimals: 18,
		}, nil
	}

	if asset, ok := config.SupportedAssets[strings.ToUpper(assetSymbolOrAddress)]; ok {
		info := asset
		return &info, nil
	}

	return nil, fmt.Errorf("unknown asset %s on network %s", assetSymbolOrAddress, network)
}

// IsValidAddress reports whether s is a 20-byte hex address with 0x prefix.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress returns the EIP-55 checksummed form of an address.
func NormalizeAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// HexToBytes decodes a hex string, with or without 0x prefix.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd length hex string")
	}
	return common.FromHex("0x" + s), nil
}

// BytesToHex encodes bytes as a 0x-prefixed hex string.
func BytesToHex(b []byte) string {
	return "0x" + common.Bytes2Hex(b)
}

// CreateNonce generates a random 32-byte nonce as a hex string for EIP-3009.
func CreateNonce() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return BytesToHex(nonce), nil
}

// GetEvmChainId returns the chain ID for a network.
func GetEvmChainId(network string) (*big.Int, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, err
	}
	return config.ChainID, nil
}

// MaxUint256 returns 2^256 - 1, the conventional infinite ERC-20 allowance.
func MaxUint256() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}

// CreatePermit2Nonce generates a random uint256 nonce as a decimal string.
// Permit2 uses unordered nonces, so any unused random value is acceptable.
func CreatePermit2Nonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate permit2 nonce: %w", err)
	}
	return new(big.Int).SetBytes(buf).String(), nil
}

// CreateValidityWindow returns (validAfter, validBefore) unix timestamps for
// an authorization valid from now until now+duration.
func CreateValidityWindow(duration time.Duration) (*big.Int, *big.Int) {
	now := time.Now().Unix()
	return big.NewInt(now), big.NewInt(now + int64(duration.Seconds()))
}

// ParseAmount converts a decimal string amount to the smallest unit given the
// token decimals, e.g. "1.50" with 6 decimals becomes 1500000.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}

	parts := strings.SplitN(amount, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	// Truncate precision beyond the token decimals
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	combined := whole + frac
	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	if result.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", amount)
	}
	return result, nil
}

// FormatAmount converts an amount in smallest unit to a decimal string.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int)
	frac := new(big.Int)
	whole.DivMod(amount, divisor, frac)

	if frac.Sign() == 0 {
		return whole.String()
	}

	fracStr := frac.String()
	fracStr = strings.Repeat("0", decimals-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")
	return whole.String() + "." + fracStr
}
