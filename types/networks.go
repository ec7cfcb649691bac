package types

import "strings"

// v1NetworkAliases maps legacy v1 network names to CAIP-2 identifiers.
var v1NetworkAliases = map[string]string{
	"ethereum":            "eip155:1",
	"sepolia":             "eip155:11155111",
	"base":                "eip155:8453",
	"base-sepolia":        "eip155:84532",
	"avalanche":           "eip155:43114",
	"avalanche-fuji":      "eip155:43113",
	"polygon":             "eip155:137",
	"polygon-amoy":        "eip155:80002",
	"arbitrum":            "eip155:42161",
	"optimism":            "eip155:10",
	"sei":                 "eip155:1329",
	"sei-testnet":         "eip155:1328",
	"scroll":              "eip155:534352",
	"solana":              "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
	"solana-devnet":       "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1",
	"aptos":               "aptos:1",
	"aptos-testnet":       "aptos:2",
	"near":                "near:mainnet",
	"near-mainnet":        "near:mainnet",
	"near-testnet":        "near:testnet",
	"hedera":              "hedera:mainnet",
	"hedera-testnet":      "hedera:testnet",
	"hyperliquid":         "hypercore:mainnet",
	"hyperliquid-testnet": "hypercore:testnet",
}

// v1NetworkNames is the reverse of v1NetworkAliases, preferring the shortest
// legacy name when several map to the same CAIP-2 id.
var v1NetworkNames = func() map[string]string {
	names := make(map[string]string, len(v1NetworkAliases))
	for alias, network := range v1NetworkAliases {
		if existing, ok := names[network]; !ok || len(alias) < len(existing) {
			names[network] = alias
		}
	}
	return names
}()

// NormalizeCAIP2 maps a legacy v1 network name to its CAIP-2 form. Inputs
// already in namespace:reference form, and names with no known alias
// (e.g. "btc-lightning-signet"), pass through unchanged.
func NormalizeCAIP2(network string) string {
	if caip, ok := v1NetworkAliases[strings.ToLower(network)]; ok {
		return caip
	}
	return network
}

// ToV1NetworkName maps a CAIP-2 network back to its legacy v1 name where one
// exists. Used when encoding v1 payloads for legacy facilitators.
func ToV1NetworkName(network string) string {
	if name, ok := v1NetworkNames[network]; ok {
		return name
	}
	return network
}
