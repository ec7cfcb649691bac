package erc20approvalgassponsor

import (
	"encoding/json"
	"fmt"
)

// ExtractErc20ApprovalGasSponsoringInfo extracts the ERC-20 approval gas
// sponsoring info from a payment payload's extensions map.
//
// Alias of ExtractInfo kept for symmetry with the other extension packages.
func ExtractErc20ApprovalGasSponsoringInfo(extensions map[string]interface{}) (*Info, error) {
	return ExtractInfo(extensions)
}

// ExtractErc20ApprovalGasSponsoringInfoFromPayloadBytes extracts the ERC-20 approval
// gas sponsoring info from raw payment payload JSON bytes.
func ExtractErc20ApprovalGasSponsoringInfoFromPayloadBytes(payloadBytes []byte) (*Info, error) {
	var payload struct {
		Extensions map[string]interface{} `json:"extensions"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return ExtractInfo(payload.Extensions)
}

// ValidateErc20ApprovalGasSponsoringInfo validates that the ERC-20 approval gas
// sponsoring info has valid format for all fields.
//
// Alias of ValidateInfo kept for symmetry with the other extension packages.
func ValidateErc20ApprovalGasSponsoringInfo(info *Info) bool {
	return ValidateInfo(info)
}
