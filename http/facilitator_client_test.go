package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	x402 "github.com/x402labs/x402-go"
)

func testPaymentBytes(t *testing.T, scheme string, network x402.Network) (payloadBytes, requirementsBytes []byte) {
	t.Helper()

	requirements := x402.PaymentRequirements{
		Scheme:  scheme,
		Network: network,
		Asset:   "0xusdc",
		Amount:  "1000000",
		PayTo:   "0xrecipient",
	}
	payload := x402.PaymentPayload{
		X402Version: 2,
		Payload:     map[string]interface{}{"signature": "0xsig"},
		Accepted:    requirements,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	requirementsBytes, err = json.Marshal(requirements)
	if err != nil {
		t.Fatalf("failed to marshal requirements: %v", err)
	}
	return payloadBytes, requirementsBytes
}

func TestNewHTTPFacilitatorClient(t *testing.T) {
	// Test with default config
	client := NewHTTPFacilitatorClient(nil)
	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.url != DefaultFacilitatorURL {
		t.Errorf("Expected default URL %s, got %s", DefaultFacilitatorURL, client.url)
	}
	if client.identifier != DefaultFacilitatorURL {
		t.Errorf("Expected default identifier %s, got %s", DefaultFacilitatorURL, client.identifier)
	}

	// Test with custom config
	config := &FacilitatorConfig{
		URL:        "https://custom.facilitator.com",
		Identifier: "custom",
	}

	client = NewHTTPFacilitatorClient(config)
	if client.url != config.URL {
		t.Errorf("Expected URL %s, got %s", config.URL, client.url)
	}
	if client.identifier != "custom" {
		t.Errorf("Expected identifier 'custom', got %s", client.identifier)
	}
}

func TestHTTPFacilitatorClientVerify(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("Expected path /verify, got %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		var requestBody map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}

		if requestBody["x402Version"].(float64) != 2 {
			t.Error("Expected version 2 in request")
		}
		if requestBody["paymentPayload"] == nil {
			t.Error("Expected paymentPayload in request")
		}
		if requestBody["paymentRequirements"] == nil {
			t.Error("Expected paymentRequirements in request")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(x402.VerifyResponse{
			IsValid: true,
			Payer:   "0xverifiedpayer",
		})
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	payloadBytes, requirementsBytes := testPaymentBytes(t, "exact", "eip155:1")

	response, err := client.Verify(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !response.IsValid {
		t.Error("Expected valid response")
	}
	if response.Payer != "0xverifiedpayer" {
		t.Errorf("Expected payer 0xverifiedpayer, got %s", response.Payer)
	}
}

func TestHTTPFacilitatorClientSettle(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("Expected path /settle, got %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(x402.SettleResponse{
			Success:     true,
			Transaction: "0xsettledtx",
			Payer:       "0xpayer",
			Network:     "eip155:1",
		})
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	payloadBytes, requirementsBytes := testPaymentBytes(t, "exact", "eip155:1")

	response, err := client.Settle(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !response.Success {
		t.Error("Expected successful settlement")
	}
	if response.Transaction != "0xsettledtx" {
		t.Errorf("Expected transaction 0xsettledtx, got %s", response.Transaction)
	}
}

func TestHTTPFacilitatorClientGetSupported(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/supported" {
			t.Errorf("Expected path /supported, got %s", r.URL.Path)
		}
		if r.Method != "GET" {
			t.Errorf("Expected GET, got %s", r.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(x402.SupportedResponse{
			Kinds: []x402.SupportedKind{
				{X402Version: 2, Scheme: "exact", Network: "eip155:1"},
				{X402Version: 2, Scheme: "exact", Network: "eip155:8453"},
			},
			Extensions: []string{"bazaar"},
		})
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	response, err := client.GetSupported(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(response.Kinds) != 2 {
		t.Errorf("Expected 2 kinds, got %d", len(response.Kinds))
	}
	if len(response.Extensions) != 1 {
		t.Errorf("Expected 1 extension, got %d", len(response.Extensions))
	}
	if response.Extensions[0] != "bazaar" {
		t.Errorf("Expected 'bazaar' extension, got %s", response.Extensions[0])
	}
}

func TestHTTPFacilitatorClientWithAuth(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key" {
			t.Errorf("Expected 'Bearer test-key', got %s", auth)
		}

		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(x402.VerifyResponse{IsValid: true})
		case "/settle":
			json.NewEncoder(w).Encode(x402.SettleResponse{Success: true})
		case "/supported":
			json.NewEncoder(w).Encode(x402.SupportedResponse{})
		}
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{
		URL:          server.URL,
		AuthProvider: NewStaticAuthProvider("test-key"),
	})

	payloadBytes, requirementsBytes := testPaymentBytes(t, "exact", "eip155:1")

	if _, err := client.Verify(ctx, payloadBytes, requirementsBytes); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if _, err := client.Settle(ctx, payloadBytes, requirementsBytes); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if _, err := client.GetSupported(ctx); err != nil {
		t.Fatalf("GetSupported failed: %v", err)
	}
}

func TestHTTPFacilitatorClientErrorHandling(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Bad request"))
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	payloadBytes, requirementsBytes := testPaymentBytes(t, "exact", "eip155:1")

	if _, err := client.Verify(ctx, payloadBytes, requirementsBytes); err == nil {
		t.Error("Expected error for verify")
	}
	if _, err := client.Settle(ctx, payloadBytes, requirementsBytes); err == nil {
		t.Error("Expected error for settle")
	}
	if _, err := client.GetSupported(ctx); err == nil {
		t.Error("Expected error for getSupported")
	}
}

func TestStaticAuthProvider(t *testing.T) {
	provider := NewStaticAuthProvider("api-key-123")

	headers, err := provider.GetAuthHeaders(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expectedAuth := "Bearer api-key-123"
	if headers.Verify["Authorization"] != expectedAuth {
		t.Errorf("Expected verify auth %s, got %s", expectedAuth, headers.Verify["Authorization"])
	}
	if headers.Settle["Authorization"] != expectedAuth {
		t.Errorf("Expected settle auth %s, got %s", expectedAuth, headers.Settle["Authorization"])
	}
	if headers.Supported["Authorization"] != expectedAuth {
		t.Errorf("Expected supported auth %s, got %s", expectedAuth, headers.Supported["Authorization"])
	}
}

func TestFuncAuthProvider(t *testing.T) {
	provider := NewFuncAuthProvider(func(ctx context.Context) (AuthHeaders, error) {
		return AuthHeaders{
			Verify:    map[string]string{"X-API-Key": "verify-key"},
			Settle:    map[string]string{"X-API-Key": "settle-key"},
			Supported: map[string]string{"X-API-Key": "supported-key"},
		}, nil
	})

	headers, err := provider.GetAuthHeaders(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if headers.Verify["X-API-Key"] != "verify-key" {
		t.Errorf("Expected verify key 'verify-key', got %s", headers.Verify["X-API-Key"])
	}
	if headers.Settle["X-API-Key"] != "settle-key" {
		t.Errorf("Expected settle key 'settle-key', got %s", headers.Settle["X-API-Key"])
	}
	if headers.Supported["X-API-Key"] != "supported-key" {
		t.Errorf("Expected supported key 'supported-key', got %s", headers.Supported["X-API-Key"])
	}
}

func TestMultiFacilitatorClient(t *testing.T) {
	ctx := context.Background()

	exactClient := &mockFacilitatorClient{
		verify: func(ctx context.Context, payloadBytes, requirementsBytes []byte) (x402.VerifyResponse, error) {
			return x402.VerifyResponse{IsValid: true, Payer: "exact-facilitator"}, nil
		},
		supported: func(ctx context.Context) (x402.SupportedResponse, error) {
			return x402.SupportedResponse{
				Kinds: []x402.SupportedKind{
					{X402Version: 2, Scheme: "exact", Network: "eip155:1"},
				},
				Extensions: []string{"ext1"},
			}, nil
		},
	}

	transferClient := &mockFacilitatorClient{
		verify: func(ctx context.Context, payloadBytes, requirementsBytes []byte) (x402.VerifyResponse, error) {
			return x402.VerifyResponse{IsValid: true, Payer: "transfer-facilitator"}, nil
		},
		supported: func(ctx context.Context) (x402.SupportedResponse, error) {
			return x402.SupportedResponse{
				Kinds: []x402.SupportedKind{
					{X402Version: 2, Scheme: "transfer", Network: "eip155:8453"},
				},
				Extensions: []string{"ext2"},
			}, nil
		},
	}

	multiClient := NewMultiFacilitatorClient(exactClient, transferClient)

	// Routed to the exact facilitator
	payloadBytes, requirementsBytes := testPaymentBytes(t, "exact", "eip155:1")
	response, err := multiClient.Verify(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if response.Payer != "exact-facilitator" {
		t.Errorf("Expected payer 'exact-facilitator', got %s", response.Payer)
	}

	// Routed to the transfer facilitator
	payloadBytes, requirementsBytes = testPaymentBytes(t, "transfer", "eip155:8453")
	response, err = multiClient.Verify(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if response.Payer != "transfer-facilitator" {
		t.Errorf("Expected payer 'transfer-facilitator', got %s", response.Payer)
	}

	// GetSupported merges both
	supported, err := multiClient.GetSupported(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(supported.Kinds) != 2 {
		t.Errorf("Expected 2 kinds, got %d", len(supported.Kinds))
	}
	if len(supported.Extensions) != 2 {
		t.Errorf("Expected 2 extensions, got %d", len(supported.Extensions))
	}
}
