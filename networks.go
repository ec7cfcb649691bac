package x402

import "github.com/x402labs/x402-go/types"

// NormalizeNetwork maps a legacy v1 network name to its CAIP-2 form.
// Inputs already in namespace:reference form, and names with no known
// alias (e.g. "btc-lightning-signet"), pass through unchanged.
func NormalizeNetwork(network string) Network {
	return Network(types.NormalizeCAIP2(network))
}

// ToV1NetworkName maps a CAIP-2 network back to its legacy v1 name where one
// exists. Used when encoding v1 payloads for legacy facilitators.
func ToV1NetworkName(network Network) string {
	return types.ToV1NetworkName(string(network))
}
