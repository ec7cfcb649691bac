package aptos

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	x402 "github.com/x402labs/x402-go"
)

// ExactAptosServer implements the SchemeNetworkServer interface for Aptos
// exact payments.
type ExactAptosServer struct{}

// NewExactAptosServer creates a new ExactAptosServer
func NewExactAptosServer() *ExactAptosServer {
	return &ExactAptosServer{}
}

// Scheme returns the scheme identifier
func (s *ExactAptosServer) Scheme() string {
	return SchemeExact
}

// ParsePrice parses a price and converts it to an asset amount in the
// network's default asset.
func (s *ExactAptosServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	priceStr, ok := price.(string)
	if !ok {
		priceStr = fmt.Sprintf("%v", price)
	}

	priceStr = strings.TrimSpace(priceStr)
	priceStr = strings.TrimPrefix(priceStr, "$")
	priceStr = strings.TrimSuffix(priceStr, " USD")
	priceStr = strings.TrimSuffix(priceStr, " USDC")
	priceStr = strings.TrimSpace(priceStr)

	config, ok := GetNetworkConfig(string(network))
	if !ok {
		return x402.AssetAmount{}, fmt.Errorf("unsupported network: %s", network)
	}

	if strings.Contains(priceStr, ".") {
		amount, err := parseDecimalAmount(priceStr, config.DefaultAsset.Decimals)
		if err != nil {
			return x402.AssetAmount{}, fmt.Errorf("failed to parse decimal price: %w", err)
		}
		return x402.AssetAmount{
			Asset:  config.DefaultAsset.MetadataAddress,
			Amount: amount.String(),
		}, nil
	}

	amount, ok := new(big.Int).SetString(priceStr, 10)
	if !ok {
		return x402.AssetAmount{}, fmt.Errorf("invalid price format: %s", price)
	}

	// Integers at or above one whole unit are taken as already being in the
	// smallest unit, smaller ones as whole-dollar amounts.
	oneUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(config.DefaultAsset.Decimals)), nil)
	if amount.Cmp(oneUnit) < 0 {
		amount.Mul(amount, oneUnit)
	}

	return x402.AssetAmount{
		Asset:  config.DefaultAsset.MetadataAddress,
		Amount: amount.String(),
	}, nil
}

// EnhancePaymentRequirements normalizes the asset and amount and copies the
// facilitator's fee payer through to the client.
func (s *ExactAptosServer) EnhancePaymentRequirements(
	ctx context.Context,
	requirements x402.PaymentRequirements,
	supportedKind x402.SupportedKind,
	extensionKeys []string,
) (x402.PaymentRequirements, error) {
	if supportedKind.X402Version != 2 {
		return requirements, fmt.Errorf("v2 only supports x402 version 2")
	}

	config, ok := GetNetworkConfig(string(requirements.Network))
	if !ok {
		return requirements, fmt.Errorf("unsupported network: %s", requirements.Network)
	}

	if requirements.Asset == "" {
		requirements.Asset = config.DefaultAsset.MetadataAddress
	}

	if requirements.Amount != "" && strings.Contains(requirements.Amount, ".") {
		amount, err := parseDecimalAmount(requirements.Amount, config.DefaultAsset.Decimals)
		if err != nil {
			return requirements, fmt.Errorf("failed to parse amount: %w", err)
		}
		requirements.Amount = amount.String()
	}

	if supportedKind.Extra != nil {
		if feePayer, ok := supportedKind.Extra["feePayer"]; ok {
			if requirements.Extra == nil {
				requirements.Extra = make(map[string]interface{})
			}
			if _, present := requirements.Extra["feePayer"]; !present {
				requirements.Extra["feePayer"] = feePayer
			}
		}
	}

	return requirements, nil
}

// parseDecimalAmount converts a decimal string to the smallest unit.
func parseDecimalAmount(s string, decimals int) (*big.Int, error) {
	parts := strings.SplitN(s, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("too many decimal places in %q for %d decimals", s, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	amount, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	return amount, nil
}
