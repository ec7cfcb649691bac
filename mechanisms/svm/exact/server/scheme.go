// Package server implements the server side of the exact SVM scheme: price
// parsing and payment requirement enhancement.
package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/svm"
)

// ExactSvmScheme implements the SchemeNetworkServer interface for SVM exact
// payments (V2).
type ExactSvmScheme struct {
	moneyParsers []x402.MoneyParser
}

// NewExactSvmScheme creates a new ExactSvmScheme
func NewExactSvmScheme() *ExactSvmScheme {
	return &ExactSvmScheme{}
}

// RegisterMoneyParser adds a money parser. Parsers are tried in registration
// order for numeric prices; the default USDC conversion is the fallback.
func (s *ExactSvmScheme) RegisterMoneyParser(parser x402.MoneyParser) *ExactSvmScheme {
	s.moneyParsers = append(s.moneyParsers, parser)
	return s
}

// Scheme returns the scheme identifier
func (s *ExactSvmScheme) Scheme() string {
	return svm.SchemeExact
}

// ParsePrice parses a price and converts it to an asset amount (V2)
func (s *ExactSvmScheme) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	networkStr := string(network)

	config, err := svm.GetNetworkConfig(networkStr)
	if err != nil {
		return x402.AssetAmount{}, err
	}

	// Pre-parsed price object with amount and asset
	if priceMap, ok := price.(map[string]interface{}); ok {
		if amountVal, hasAmount := priceMap["amount"]; hasAmount {
			amountStr, ok := amountVal.(string)
			if !ok {
				return x402.AssetAmount{}, fmt.Errorf("amount must be a string")
			}

			asset := config.DefaultAsset.Address
			if assetVal, hasAsset := priceMap["asset"]; hasAsset {
				if assetStr, ok := assetVal.(string); ok {
					asset = assetStr
				}
			}

			extra := make(map[string]interface{})
			if extraVal, hasExtra := priceMap["extra"]; hasExtra {
				if extraMap, ok := extraVal.(map[string]interface{}); ok {
					extra = extraMap
				}
			}

			return x402.AssetAmount{
				Amount: amountStr,
				Asset:  asset,
				Extra:  extra,
			}, nil
		}
	}

	if priceStr, ok := price.(string); ok {
		return s.parseStringPrice(priceStr, config)
	}

	// Numeric prices run through registered money parsers, then default USDC
	switch v := price.(type) {
	case float64:
		return s.parseMoney(v, network, config)
	case int:
		return s.parseMoney(float64(v), network, config)
	case int64:
		return s.parseMoney(float64(v), network, config)
	}

	return x402.AssetAmount{}, fmt.Errorf("invalid price format: %v", price)
}

// parseMoney converts a numeric USD amount, consulting registered parsers
// first.
func (s *ExactSvmScheme) parseMoney(amount float64, network x402.Network, config *svm.NetworkConfig) (x402.AssetAmount, error) {
	for _, parser := range s.moneyParsers {
		result, err := parser(amount, network)
		if err != nil {
			return x402.AssetAmount{}, err
		}
		if result != nil {
			return *result, nil
		}
	}

	amountStr := strconv.FormatFloat(amount, 'f', config.DefaultAsset.Decimals, 64)
	atomic, err := svm.ParseAmount(amountStr, config.DefaultAsset.Decimals)
	if err != nil {
		return x402.AssetAmount{}, err
	}
	return x402.AssetAmount{
		Amount: strconv.FormatUint(atomic, 10),
		Asset:  config.DefaultAsset.Address,
		Extra:  make(map[string]interface{}),
	}, nil
}

// parseStringPrice parses string prices like "0.10", "$0.10" or "0.10 USDC".
func (s *ExactSvmScheme) parseStringPrice(priceStr string, config *svm.NetworkConfig) (x402.AssetAmount, error) {
	cleanPrice := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(priceStr), "$"))
	parts := strings.Fields(cleanPrice)

	if len(parts) == 2 {
		amountStr := parts[0]
		symbol := strings.ToUpper(parts[1])

		if symbol != "USDC" && symbol != "USD" {
			return x402.AssetAmount{}, fmt.Errorf("unsupported asset: %s on network %s", symbol, config.CAIP2)
		}

		amount, err := svm.ParseAmount(amountStr, config.DefaultAsset.Decimals)
		if err != nil {
			return x402.AssetAmount{}, err
		}
		return x402.AssetAmount{
			Amount: strconv.FormatUint(amount, 10),
			Asset:  config.DefaultAsset.Address,
			Extra:  make(map[string]interface{}),
		}, nil
	}

	if len(parts) == 1 {
		amount, err := svm.ParseAmount(parts[0], config.DefaultAsset.Decimals)
		if err != nil {
			return x402.AssetAmount{}, err
		}
		return x402.AssetAmount{
			Amount: strconv.FormatUint(amount, 10),
			Asset:  config.DefaultAsset.Address,
			Extra:  make(map[string]interface{}),
		}, nil
	}

	return x402.AssetAmount{}, fmt.Errorf(
		"invalid price format: %s. Must specify currency (e.g., \"0.10 USDC\") or use simple number format",
		priceStr,
	)
}

// EnhancePaymentRequirements adds scheme-specific enhancements to payment
// requirements (V2)
func (s *ExactSvmScheme) EnhancePaymentRequirements(
	ctx context.Context,
	requirements x402.PaymentRequirements,
	supportedKind x402.SupportedKind,
	extensionKeys []string,
) (x402.PaymentRequirements, error) {
	_ = ctx

	if supportedKind.X402Version != 2 {
		return requirements, fmt.Errorf("v2 only supports x402 version 2")
	}

	networkStr := string(requirements.Network)
	config, err := svm.GetNetworkConfig(networkStr)
	if err != nil {
		return requirements, err
	}

	var decimals int
	if requirements.Asset == "" {
		requirements.Asset = config.DefaultAsset.Address
		decimals = config.DefaultAsset.Decimals
	} else {
		assetInfo, err := svm.GetAssetInfo(networkStr, requirements.Asset)
		if err != nil {
			return requirements, err
		}
		decimals = assetInfo.Decimals
	}

	// Convert decimal amounts to atomic units
	if requirements.Amount != "" && strings.Contains(requirements.Amount, ".") {
		amount, err := svm.ParseAmount(requirements.Amount, decimals)
		if err != nil {
			return requirements, fmt.Errorf("failed to parse amount: %w", err)
		}
		requirements.Amount = strconv.FormatUint(amount, 10)
	}

	if requirements.Extra == nil {
		requirements.Extra = make(map[string]interface{})
	}

	// The facilitator advertises its fee payer address for sponsored
	// transactions; clients need it to build the transaction.
	if supportedKind.Extra != nil {
		if feePayer, ok := supportedKind.Extra["feePayer"]; ok {
			requirements.Extra["feePayer"] = feePayer
		}
		for _, key := range extensionKeys {
			if val, ok := supportedKind.Extra[key]; ok {
				requirements.Extra[key] = val
			}
		}
	}

	return requirements, nil
}
