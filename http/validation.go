package http

import (
	"encoding/json"
	"fmt"

	x402 "github.com/x402labs/x402-go"
)

// ValidateAndDecodePaymentHeader validates and decodes a payment header string.
// It performs comprehensive validation of:
// - Base64 format (standard or URL-safe alphabet) and the header size cap
// - JSON structure
// - Required fields and their types for the payload's protocol version
//
// Returns the decoded PaymentPayload if valid, or an error with a descriptive message.
func ValidateAndDecodePaymentHeader(paymentHeader string) (*x402.PaymentPayload, error) {
	// Validate header is not empty
	if paymentHeader == "" {
		return nil, fmt.Errorf("payment header is empty")
	}

	decoded, err := decodeBase64Flexible(paymentHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid payment header format: %v", err)
	}

	// Parse JSON into a map first for validation
	var rawPayload map[string]interface{}
	if err := json.Unmarshal(decoded, &rawPayload); err != nil {
		return nil, fmt.Errorf("invalid payment header format: not valid JSON - %v", err)
	}

	// Validate required top-level fields
	if _, exists := rawPayload["x402Version"]; !exists {
		return nil, fmt.Errorf("missing required field: x402Version")
	}
	rawVersion, ok := rawPayload["x402Version"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid field type: x402Version must be a number")
	}
	version := int(rawVersion)
	if version < x402.ProtocolVersionV1 || version > x402.ProtocolVersion {
		return nil, fmt.Errorf("invalid value: unsupported x402Version %d", version)
	}

	if _, exists := rawPayload["payload"]; !exists {
		return nil, fmt.Errorf("missing required field: payload")
	}
	if _, ok := rawPayload["payload"].(map[string]interface{}); !ok {
		return nil, fmt.Errorf("invalid field type: payload must be an object")
	}

	switch version {
	case x402.ProtocolVersionV1:
		// V1 carries scheme/network at the top level
		if _, exists := rawPayload["scheme"]; !exists {
			return nil, fmt.Errorf("missing required field: scheme")
		}
		if _, ok := rawPayload["scheme"].(string); !ok {
			return nil, fmt.Errorf("invalid field type: scheme must be a string")
		}
		if _, exists := rawPayload["network"]; !exists {
			return nil, fmt.Errorf("missing required field: network")
		}
		if _, ok := rawPayload["network"].(string); !ok {
			return nil, fmt.Errorf("invalid field type: network must be a string")
		}
	default:
		// V2 echoes the accepted requirements back
		if _, exists := rawPayload["accepted"]; !exists {
			return nil, fmt.Errorf("missing required field: accepted")
		}
		if _, ok := rawPayload["accepted"].(map[string]interface{}); !ok {
			return nil, fmt.Errorf("invalid field type: accepted must be an object")
		}

		// Resource is optional but must be well formed when present
		if rawResource, exists := rawPayload["resource"]; exists && rawResource != nil {
			resourceMap, ok := rawResource.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("invalid field type: resource must be an object")
			}
			if rawURL, exists := resourceMap["url"]; exists {
				if _, ok := rawURL.(string); !ok {
					return nil, fmt.Errorf("invalid field type: resource.url must be a string")
				}
			}
		}
	}

	// If all validations pass, unmarshal into the PaymentPayload struct
	var payload x402.PaymentPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payment payload: %v", err)
	}

	return &payload, nil
}
