package mcp

import (
	"context"
	"fmt"
	"testing"

	x402 "github.com/x402labs/x402-go"
)

// Mock facilitator client for testing
type mockFacilitatorClient struct {
	verifyFunc func(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.VerifyResponse, error)
	settleFunc func(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.SettleResponse, error)
}

func (m *mockFacilitatorClient) Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.VerifyResponse, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, payloadBytes, requirementsBytes)
	}
	return x402.VerifyResponse{IsValid: true, Payer: "test-payer"}, nil
}

func (m *mockFacilitatorClient) Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.SettleResponse, error) {
	if m.settleFunc != nil {
		return m.settleFunc(ctx, payloadBytes, requirementsBytes)
	}
	return x402.SettleResponse{Success: true, Transaction: "tx123", Network: "x402:cash", Payer: "test-payer"}, nil
}

func (m *mockFacilitatorClient) GetSupported(ctx context.Context) (x402.SupportedResponse, error) {
	return x402.SupportedResponse{
		Kinds: []x402.SupportedKind{
			{X402Version: 2, Scheme: "cash", Network: "x402:cash"},
		},
		Extensions: []string{},
	}, nil
}

// Mock scheme network server for testing
type mockSchemeNetworkServer struct {
	scheme string
}

func (m *mockSchemeNetworkServer) Scheme() string {
	return m.scheme
}

func (m *mockSchemeNetworkServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	return x402.AssetAmount{
		Asset:  "USD",
		Amount: "1000",
		Extra:  make(map[string]interface{}),
	}, nil
}

func (m *mockSchemeNetworkServer) EnhancePaymentRequirements(ctx context.Context, base x402.PaymentRequirements, supported x402.SupportedKind, extensions []string) (x402.PaymentRequirements, error) {
	enhanced := base
	if enhanced.Extra == nil {
		enhanced.Extra = make(map[string]interface{})
	}
	return enhanced, nil
}

func cashRequirements() []x402.PaymentRequirements {
	return []x402.PaymentRequirements{
		{
			Scheme:  "cash",
			Network: "x402:cash",
			Amount:  "1000",
			PayTo:   "test-recipient",
		},
	}
}

func cashPayload() x402.PaymentPayload {
	return x402.PaymentPayload{
		X402Version: 2,
		Accepted:    cashRequirements()[0],
		Payload: map[string]interface{}{
			"signature": "~test-payer",
		},
	}
}

func newTestResourceServer(t *testing.T, facilitator x402.FacilitatorClient) *x402.X402ResourceServer {
	t.Helper()
	server := x402.NewX402ResourceServer(
		x402.WithFacilitatorClient(facilitator),
		x402.WithSchemeServer("x402:cash", &mockSchemeNetworkServer{scheme: "cash"}),
	)
	if err := server.Initialize(context.Background()); err != nil {
		t.Fatalf("Failed to initialize server: %v", err)
	}
	return server
}

func paidToolContext(payload interface{}) MCPToolContext {
	meta := map[string]interface{}{}
	if payload != nil {
		meta[MCP_PAYMENT_META_KEY] = payload
	}
	return MCPToolContext{
		ToolName:  "test",
		Arguments: map[string]interface{}{"test": "value"},
		Meta:      meta,
	}
}

func TestCreatePaymentWrapper_EmptyAccepts(t *testing.T) {
	server := x402.NewX402ResourceServer()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected panic for empty accepts")
		}
	}()
	CreatePaymentWrapper(server, PaymentWrapperConfig{
		Accepts: []x402.PaymentRequirements{},
	})
}

func TestCreatePaymentWrapper_BasicFlow(t *testing.T) {
	server := newTestResourceServer(t, &mockFacilitatorClient{})

	config := PaymentWrapperConfig{
		Accepts: cashRequirements(),
		Resource: &ResourceInfo{
			URL:         "mcp://tool/test",
			Description: "Test tool",
			MimeType:    "application/json",
		},
	}

	wrapper := CreatePaymentWrapper(server, config)
	handler := func(ctx context.Context, args map[string]interface{}, toolContext MCPToolContext) (MCPToolResult, error) {
		return MCPToolResult{
			Content: []MCPContentItem{{Type: "text", Text: "success"}},
		}, nil
	}
	wrapped := wrapper(handler)

	ctx := context.Background()
	result, err := wrapped(ctx, map[string]interface{}{"test": "value"}, paidToolContext(cashPayload()))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.IsError {
		t.Error("Expected success result")
	}

	if result.Meta == nil {
		t.Fatal("Expected meta to be set")
	}
	if result.Meta[MCP_PAYMENT_RESPONSE_META_KEY] == nil {
		t.Error("Expected payment response in meta")
	}
}

func TestCreatePaymentWrapper_NoPayment(t *testing.T) {
	server := newTestResourceServer(t, &mockFacilitatorClient{})

	wrapper := CreatePaymentWrapper(server, PaymentWrapperConfig{Accepts: cashRequirements()})
	handler := func(ctx context.Context, args map[string]interface{}, toolContext MCPToolContext) (MCPToolResult, error) {
		return MCPToolResult{}, nil
	}
	wrapped := wrapper(handler)

	ctx := context.Background()
	result, err := wrapped(ctx, map[string]interface{}{}, paidToolContext(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.IsError {
		t.Error("Expected error result for missing payment")
	}
}

func TestCreatePaymentWrapper_VerificationFailure(t *testing.T) {
	// No facilitator registered, so verification cannot succeed
	server := x402.NewX402ResourceServer()

	wrapper := CreatePaymentWrapper(server, PaymentWrapperConfig{Accepts: cashRequirements()})
	handlerCalled := false
	handler := func(ctx context.Context, args map[string]interface{}, toolContext MCPToolContext) (MCPToolResult, error) {
		handlerCalled = true
		return MCPToolResult{}, nil
	}
	wrapped := wrapper(handler)

	ctx := context.Background()
	payload := x402.PaymentPayload{
		X402Version: 2,
		Accepted:    cashRequirements()[0],
		Payload:     map[string]interface{}{"signature": "0xinvalid"},
	}
	result, err := wrapped(ctx, map[string]interface{}{}, paidToolContext(payload))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if handlerCalled {
		t.Error("Handler should not run when verification fails")
	}
	if !result.IsError {
		t.Error("Expected error result for verification failure")
	}
}

func TestCreatePaymentWrapper_Hooks(t *testing.T) {
	beforeCalled := false
	afterCalled := false
	settlementCalled := false

	server := newTestResourceServer(t, &mockFacilitatorClient{})

	var beforeHook BeforeExecutionHook = func(context ServerHookContext) (bool, error) {
		beforeCalled = true
		return true, nil
	}
	var afterHook AfterExecutionHook = func(context AfterExecutionContext) error {
		afterCalled = true
		return nil
	}
	var settlementHook AfterSettlementHook = func(context SettlementContext) error {
		settlementCalled = true
		return nil
	}

	config := PaymentWrapperConfig{
		Accepts: cashRequirements(),
		Hooks: &PaymentWrapperHooks{
			OnBeforeExecution: &beforeHook,
			OnAfterExecution:  &afterHook,
			OnAfterSettlement: &settlementHook,
		},
	}

	wrapper := CreatePaymentWrapper(server, config)
	handler := func(ctx context.Context, args map[string]interface{}, toolContext MCPToolContext) (MCPToolResult, error) {
		return MCPToolResult{
			Content: []MCPContentItem{{Type: "text", Text: "success"}},
		}, nil
	}
	wrapped := wrapper(handler)

	ctx := context.Background()
	result, err := wrapped(ctx, map[string]interface{}{"test": "value"}, paidToolContext(cashPayload()))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.IsError {
		t.Error("Expected success result")
	}
	if !beforeCalled {
		t.Error("Expected OnBeforeExecution hook to be called")
	}
	if !afterCalled {
		t.Error("Expected OnAfterExecution hook to be called")
	}
	if !settlementCalled {
		t.Error("Expected OnAfterSettlement hook to be called")
	}
}

func TestCreatePaymentWrapper_AbortOnBeforeExecution(t *testing.T) {
	server := newTestResourceServer(t, &mockFacilitatorClient{})

	var abortHook BeforeExecutionHook = func(context ServerHookContext) (bool, error) {
		return false, nil
	}

	config := PaymentWrapperConfig{
		Accepts: cashRequirements(),
		Hooks: &PaymentWrapperHooks{
			OnBeforeExecution: &abortHook,
		},
	}

	wrapper := CreatePaymentWrapper(server, config)
	handlerCalled := false
	handler := func(ctx context.Context, args map[string]interface{}, toolContext MCPToolContext) (MCPToolResult, error) {
		handlerCalled = true
		return MCPToolResult{}, nil
	}
	wrapped := wrapper(handler)

	ctx := context.Background()
	result, err := wrapped(ctx, map[string]interface{}{}, paidToolContext(cashPayload()))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if handlerCalled {
		t.Error("Handler should not be called when hook aborts")
	}
	if !result.IsError {
		t.Error("Expected error result when hook aborts")
	}
}

func TestCreatePaymentWrapper_ToolHandlerError_NoSettlement(t *testing.T) {
	settleCalled := false
	mockFacilitator := &mockFacilitatorClient{
		settleFunc: func(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.SettleResponse, error) {
			settleCalled = true
			return x402.SettleResponse{Success: true, Transaction: "tx", Network: "x402:cash", Payer: "p"}, nil
		},
	}
	server := newTestResourceServer(t, mockFacilitator)

	wrapper := CreatePaymentWrapper(server, PaymentWrapperConfig{Accepts: cashRequirements()})
	handler := func(ctx context.Context, args map[string]interface{}, toolContext MCPToolContext) (MCPToolResult, error) {
		return MCPToolResult{
			Content: []MCPContentItem{{Type: "text", Text: "tool error"}},
			IsError: true,
		}, nil
	}
	wrapped := wrapper(handler)

	ctx := context.Background()
	result, err := wrapped(ctx, map[string]interface{}{}, paidToolContext(cashPayload()))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.IsError {
		t.Error("Expected error result from handler")
	}
	if settleCalled {
		t.Error("Settlement should NOT be called when handler returns an error")
	}
}

func TestCreatePaymentWrapper_HookErrors_NonFatal(t *testing.T) {
	server := newTestResourceServer(t, &mockFacilitatorClient{})

	var afterExecHook AfterExecutionHook = func(context AfterExecutionContext) error {
		return fmt.Errorf("after execution hook error")
	}
	var afterSettlementHook AfterSettlementHook = func(context SettlementContext) error {
		return fmt.Errorf("after settlement hook error")
	}

	config := PaymentWrapperConfig{
		Accepts: cashRequirements(),
		Hooks: &PaymentWrapperHooks{
			OnAfterExecution:  &afterExecHook,
			OnAfterSettlement: &afterSettlementHook,
		},
	}

	wrapper := CreatePaymentWrapper(server, config)
	handler := func(ctx context.Context, args map[string]interface{}, toolContext MCPToolContext) (MCPToolResult, error) {
		return MCPToolResult{
			Content: []MCPContentItem{{Type: "text", Text: "success"}},
		}, nil
	}
	wrapped := wrapper(handler)

	ctx := context.Background()
	result, err := wrapped(ctx, map[string]interface{}{}, paidToolContext(cashPayload()))
	if err != nil {
		t.Fatalf("Hook errors should not propagate, got: %v", err)
	}

	if result.IsError {
		t.Error("Expected success result despite hook errors")
	}

	if result.Meta == nil || result.Meta[MCP_PAYMENT_RESPONSE_META_KEY] == nil {
		t.Error("Expected payment response in meta despite hook errors")
	}
}

func TestCreatePaymentWrapper_SettlementFailure(t *testing.T) {
	mockFacilitator := &mockFacilitatorClient{
		settleFunc: func(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (x402.SettleResponse, error) {
			return x402.SettleResponse{}, fmt.Errorf("settlement failed")
		},
	}
	server := newTestResourceServer(t, mockFacilitator)

	wrapper := CreatePaymentWrapper(server, PaymentWrapperConfig{Accepts: cashRequirements()})
	handler := func(ctx context.Context, args map[string]interface{}, toolContext MCPToolContext) (MCPToolResult, error) {
		return MCPToolResult{
			Content: []MCPContentItem{{Type: "text", Text: "success"}},
		}, nil
	}
	wrapped := wrapper(handler)

	ctx := context.Background()
	result, err := wrapped(ctx, map[string]interface{}{}, paidToolContext(cashPayload()))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.IsError {
		t.Error("Expected error result for settlement failure")
	}
}
