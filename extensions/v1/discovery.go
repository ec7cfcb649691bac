// Package v1 extracts extension data from legacy v1 protocol structures.
// In v1 there is no extensions map, so discovery metadata is carried inside
// the payment requirements outputSchema field.
package v1

import (
	"encoding/json"
	"fmt"

	"github.com/x402labs/x402-go/extensions/types"
	x402types "github.com/x402labs/x402-go/types"
)

// ExtractDiscoveryInfoV1 pulls discovery info out of a v1 payment
// requirements outputSchema. Returns nil (not an error) when the
// requirements carry no discovery metadata.
func ExtractDiscoveryInfoV1(requirements x402types.PaymentRequirementsV1) (*types.DiscoveryInfo, error) {
	if requirements.OutputSchema == nil {
		return nil, nil
	}

	var info types.DiscoveryInfo
	if err := json.Unmarshal(*requirements.OutputSchema, &info); err != nil {
		return nil, fmt.Errorf("failed to parse outputSchema: %w", err)
	}

	// An outputSchema without an input section is a plain response schema,
	// not discovery metadata.
	if info.Input == nil {
		return nil, nil
	}

	return &info, nil
}

// ExtractResourceMetadataV1 returns descriptive fields from v1 payment
// requirements keyed the way discovery catalogs expect them.
func ExtractResourceMetadataV1(requirements x402types.PaymentRequirementsV1) map[string]string {
	metadata := make(map[string]string)
	if requirements.Resource != "" {
		metadata["url"] = requirements.Resource
	}
	if requirements.Description != "" {
		metadata["description"] = requirements.Description
	}
	if requirements.MimeType != "" {
		metadata["mimeType"] = requirements.MimeType
	}
	return metadata
}
