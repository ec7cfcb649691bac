package x402

import (
	"encoding/json"
	"fmt"
)

// ValidatePaymentPayload performs basic validation on a payment payload
func ValidatePaymentPayload(p PaymentPayload) error {
	if p.X402Version < 1 || p.X402Version > 2 {
		return fmt.Errorf("unsupported x402 version: %d", p.X402Version)
	}
	if p.Accepted.Scheme == "" {
		return fmt.Errorf("payment scheme is required")
	}
	if p.Accepted.Network == "" {
		return fmt.Errorf("payment network is required")
	}
	if p.Payload == nil {
		return fmt.Errorf("payment payload is required")
	}
	return nil
}

// ValidatePaymentRequirements performs basic validation on payment requirements
func ValidatePaymentRequirements(r PaymentRequirements) error {
	if r.Scheme == "" {
		return fmt.Errorf("payment scheme is required")
	}
	if r.Network == "" {
		return fmt.Errorf("payment network is required")
	}
	if r.Asset == "" {
		return fmt.Errorf("payment asset is required")
	}
	if r.Amount != "" {
		if err := ValidateAtomicAmount(r.Amount); err != nil {
			return err
		}
	}
	// Amount may be empty for v1 requirements, which carry maxAmountRequired
	if r.PayTo == "" {
		return fmt.Errorf("payment recipient is required")
	}
	return nil
}

// ValidateAtomicAmount checks that an amount is a nonnegative decimal integer
// string: digits only, no sign, no decimals.
func ValidateAtomicAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount is empty")
	}
	for _, c := range amount {
		if c < '0' || c > '9' {
			return fmt.Errorf("amount %q is not an atomic integer string", amount)
		}
	}
	return nil
}

// decodeV2 unmarshals v2 payment bytes into typed structs, returning the
// wire error tag on failure.
func decodeV2(payloadBytes, requirementsBytes []byte) (*PaymentPayload, *PaymentRequirements, string) {
	var payload PaymentPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, nil, ErrCodeInvalidPayload
	}
	var requirements PaymentRequirements
	if err := json.Unmarshal(requirementsBytes, &requirements); err != nil {
		return nil, nil, ErrCodeInvalidPaymentRequirements
	}
	return &payload, &requirements, ""
}

// findByNetworkAndScheme finds a scheme implementation for a given network/scheme
// combination. Exact network matches win over pattern matches (e.g. "eip155:*").
func findByNetworkAndScheme[T any](networkMap map[Network]map[string]T, scheme string, network Network) T {
	var zero T

	// Try exact match first
	if schemeMap, exists := networkMap[network]; exists {
		if impl, exists := schemeMap[scheme]; exists {
			return impl
		}
	}

	// Try pattern matching
	for registeredNetwork, schemeMap := range networkMap {
		if network.Match(registeredNetwork) || registeredNetwork.Match(network) {
			if impl, exists := schemeMap[scheme]; exists {
				return impl
			}
		}
	}

	return zero
}

// findSchemesByNetwork finds all schemes for a given network
func findSchemesByNetwork[T any](networkMap map[Network]map[string]T, network Network) map[string]T {
	// Try exact match first
	if schemeMap, exists := networkMap[network]; exists {
		return schemeMap
	}

	// Try pattern matching
	for registeredNetwork, schemeMap := range networkMap {
		if network.Match(registeredNetwork) || registeredNetwork.Match(network) {
			return schemeMap
		}
	}

	return nil
}
