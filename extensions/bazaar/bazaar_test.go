package bazaar

import (
	"encoding/json"
	"testing"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/extensions/types"
)

func TestDeclareDiscoveryExtension(t *testing.T) {
	t.Run("GET produces query input", func(t *testing.T) {
		extension, err := DeclareDiscoveryExtension(MethodGET, nil, nil, "", nil)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		input, ok := extension.Info.Input.(types.QueryInput)
		if !ok {
			t.Fatalf("expected QueryInput, got %T", extension.Info.Input)
		}
		if input.Method != types.QueryMethodGET {
			t.Errorf("expected method GET, got %s", input.Method)
		}
		if input.Type != "http" {
			t.Errorf("expected type http, got %s", input.Type)
		}
	})

	t.Run("POST produces body input with default body type", func(t *testing.T) {
		inputSchema := types.JSONSchema{
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
			},
		}
		extension, err := DeclareDiscoveryExtension(MethodPOST, nil, inputSchema, "", nil)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		input, ok := extension.Info.Input.(types.BodyInput)
		if !ok {
			t.Fatalf("expected BodyInput, got %T", extension.Info.Input)
		}
		if input.Method != types.BodyMethodPOST {
			t.Errorf("expected method POST, got %s", input.Method)
		}
		if input.BodyType != "json" {
			t.Errorf("expected body type json, got %s", input.BodyType)
		}
	})

	t.Run("unknown method is rejected", func(t *testing.T) {
		if _, err := DeclareDiscoveryExtension(Method("TRACE"), nil, nil, "", nil); err == nil {
			t.Fatal("expected error for unknown method")
		}
	})

	t.Run("declared extension validates against its own schema", func(t *testing.T) {
		extension, err := DeclareDiscoveryExtension(MethodGET, nil, nil, "", &types.OutputConfig{
			Example: map[string]interface{}{"message": "hello"},
			Schema: types.JSONSchema{
				"properties": map[string]interface{}{
					"message": map[string]interface{}{"type": "string"},
				},
			},
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		result := ValidateDiscoveryExtension(extension)
		if !result.Valid {
			t.Fatalf("expected valid extension, got errors: %v", result.Errors)
		}
	})
}

func TestExtractDiscoveryInfoV2(t *testing.T) {
	extension, err := DeclareDiscoveryExtension(MethodGET, nil, nil, "", &types.OutputConfig{
		Example: map[string]interface{}{"message": "hello"},
	})
	if err != nil {
		t.Fatalf("failed to declare extension: %v", err)
	}

	payload := x402.PaymentPayload{
		X402Version: 2,
		Payload:     map[string]interface{}{"signature": "0xabc"},
		Resource: &x402.ResourceInfo{
			URL: "https://api.example.com/weather",
		},
		Extensions: map[string]interface{}{
			types.BAZAAR: extension,
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	requirementsBytes := []byte(`{"scheme":"exact","network":"eip155:84532","amount":"1000"}`)

	discovered, err := ExtractDiscoveryInfo(payloadBytes, requirementsBytes, true)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if discovered == nil {
		t.Fatal("expected discovered resource, got nil")
	}
	if discovered.ResourceURL != "https://api.example.com/weather" {
		t.Errorf("expected resource URL from payload, got %s", discovered.ResourceURL)
	}
	if discovered.Method != "GET" {
		t.Errorf("expected method GET, got %s", discovered.Method)
	}
	if discovered.X402Version != 2 {
		t.Errorf("expected version 2, got %d", discovered.X402Version)
	}
}

func TestExtractDiscoveryInfoV2NoExtension(t *testing.T) {
	payloadBytes := []byte(`{"x402Version":2,"payload":{}}`)
	requirementsBytes := []byte(`{"scheme":"exact","network":"eip155:84532"}`)

	discovered, err := ExtractDiscoveryInfo(payloadBytes, requirementsBytes, true)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if discovered != nil {
		t.Fatalf("expected nil for payload without discovery extension, got: %+v", discovered)
	}
}

func TestExtractDiscoveryInfoV1(t *testing.T) {
	payloadBytes := []byte(`{"x402Version":1,"scheme":"exact","network":"base-sepolia","payload":{}}`)
	requirementsBytes := []byte(`{
		"scheme": "exact",
		"network": "base-sepolia",
		"maxAmountRequired": "1000",
		"resource": "https://api.example.com/v1/data",
		"payTo": "0x1234567890123456789012345678901234567890",
		"maxTimeoutSeconds": 60,
		"asset": "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		"outputSchema": {
			"input": {"type": "http", "method": "GET"},
			"output": {"example": {"message": "hello"}}
		}
	}`)

	discovered, err := ExtractDiscoveryInfo(payloadBytes, requirementsBytes, true)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if discovered == nil {
		t.Fatal("expected discovered resource, got nil")
	}
	if discovered.ResourceURL != "https://api.example.com/v1/data" {
		t.Errorf("expected resource URL from requirements, got %s", discovered.ResourceURL)
	}
	if discovered.Method != "GET" {
		t.Errorf("expected method GET, got %s", discovered.Method)
	}
	if discovered.X402Version != 1 {
		t.Errorf("expected version 1, got %d", discovered.X402Version)
	}
}

func TestEnrichDeclaration(t *testing.T) {
	extension, err := DeclareDiscoveryExtension(MethodGET, nil, nil, "", nil)
	if err != nil {
		t.Fatalf("failed to declare extension: %v", err)
	}

	enriched := BazaarResourceServerExtension.EnrichDeclaration(extension, mockTransport{method: "DELETE"})

	result, ok := enriched.(types.DiscoveryExtension)
	if !ok {
		t.Fatalf("expected DiscoveryExtension, got %T", enriched)
	}
	input, ok := result.Info.Input.(types.QueryInput)
	if !ok {
		t.Fatalf("expected QueryInput, got %T", result.Info.Input)
	}
	if input.Method != types.QueryParamMethods("DELETE") {
		t.Errorf("expected transport method DELETE, got %s", input.Method)
	}
}

type mockTransport struct {
	method string
}

func (m mockTransport) TransportMethod() string {
	return m.method
}
