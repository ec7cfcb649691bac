package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	x402 "github.com/x402labs/x402-go"
)

// ============================================================================
// x402HTTPClient - HTTP-aware payment client
// ============================================================================

// x402HTTPClient wraps X402Client with HTTP-specific payment handling
type x402HTTPClient struct {
	client *x402.X402Client
}

// NewX402HTTPClient creates a new HTTP-aware x402 client
func NewX402HTTPClient(opts ...x402.ClientOption) *x402HTTPClient {
	return &x402HTTPClient{
		client: x402.NewX402Client(opts...),
	}
}

// NewHTTPClientFrom wraps an already configured payment client
func NewHTTPClientFrom(client *x402.X402Client) *x402HTTPClient {
	return &x402HTTPClient{
		client: client,
	}
}

// RegisterScheme registers a payment mechanism on the underlying client.
func (c *x402HTTPClient) RegisterScheme(network x402.Network, scheme x402.SchemeNetworkClient) *x402HTTPClient {
	c.client.RegisterScheme(network, scheme)
	return c
}

// SelectPaymentRequirements picks the requirement the underlying client can
// and prefers to satisfy.
func (c *x402HTTPClient) SelectPaymentRequirements(version int, requirements []x402.PaymentRequirements) (x402.PaymentRequirements, error) {
	return c.client.SelectPaymentRequirements(version, requirements)
}

// CreatePaymentPayload builds a signed payment payload for the selected requirement.
func (c *x402HTTPClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
	resource *x402.ResourceInfo,
	extensions map[string]interface{},
) (x402.PaymentPayload, error) {
	return c.client.CreatePaymentPayload(ctx, version, requirements, resource, extensions)
}

// Client returns the underlying payment client
func (c *x402HTTPClient) Client() *x402.X402Client {
	return c.client
}

// ============================================================================
// Header Encoding/Decoding
// ============================================================================

// EncodePaymentSignatureHeader encodes a payment payload into HTTP headers.
// The header name depends on the payload's protocol version.
func (c *x402HTTPClient) EncodePaymentSignatureHeader(payload x402.PaymentPayload) map[string]string {
	name, value := EncodePaymentPayloadHeader(payload)
	return map[string]string{name: value}
}

// GetPaymentRequiredResponse extracts payment requirements from HTTP response
// Handles both v1 (body) and v2 (header) formats
func (c *x402HTTPClient) GetPaymentRequiredResponse(headers map[string]string, body []byte) (x402.PaymentRequired, error) {
	// Normalize headers to uppercase
	normalizedHeaders := make(map[string]string)
	for k, v := range headers {
		normalizedHeaders[strings.ToUpper(k)] = v
	}

	// Check v2 header first
	if header, exists := normalizedHeaders[HeaderPaymentRequired]; exists {
		return DecodePaymentRequiredHeader(header)
	}

	// Fall back to the JSON body. Any protocol version may arrive here:
	// v1 servers never send the header, and v2 servers may omit it.
	if len(body) > 0 {
		var required x402.PaymentRequired
		if err := json.Unmarshal(body, &required); err == nil {
			if required.X402Version != 0 || len(required.Accepts) > 0 {
				return required, nil
			}
		}
	}

	return x402.PaymentRequired{}, fmt.Errorf("no payment required information found in response")
}

// GetPaymentSettleResponse extracts settlement response from HTTP headers
func (c *x402HTTPClient) GetPaymentSettleResponse(headers map[string]string) (x402.SettleResponse, error) {
	// Normalize headers to uppercase
	normalizedHeaders := make(map[string]string)
	for k, v := range headers {
		normalizedHeaders[strings.ToUpper(k)] = v
	}

	// Check v2 header
	if header, exists := normalizedHeaders[HeaderPaymentResponseV2]; exists {
		return DecodePaymentResponseHeader(header)
	}

	// Check v1 header
	if header, exists := normalizedHeaders[HeaderPaymentResponse]; exists {
		return DecodePaymentResponseHeader(header)
	}

	return x402.SettleResponse{}, fmt.Errorf("payment response header not found")
}

// ============================================================================
// HTTP Client Wrapper
// ============================================================================

// WrapHTTPClientWithPayment wraps a standard HTTP client with x402 payment handling
// This allows transparent payment handling for HTTP requests
func WrapHTTPClientWithPayment(client *http.Client, x402Client *x402HTTPClient) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}

	// Wrap the transport with payment handling
	originalTransport := client.Transport
	if originalTransport == nil {
		originalTransport = http.DefaultTransport
	}

	client.Transport = &PaymentRoundTripper{
		Transport:  originalTransport,
		x402Client: x402Client,
		retryCount: &sync.Map{},
	}

	return client
}

// PaymentRoundTripper implements http.RoundTripper with x402 payment handling
type PaymentRoundTripper struct {
	Transport  http.RoundTripper
	x402Client *x402HTTPClient
	retryCount *sync.Map // Track retry count per request to prevent infinite loops
}

// RoundTrip implements http.RoundTripper
func (t *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Get or initialize retry count for this request
	requestID := fmt.Sprintf("%p", req)
	count, _ := t.retryCount.LoadOrStore(requestID, 0)
	retries := count.(int)

	// A payment is attempted once; a second 402 means the server rejected it
	if retries > 1 {
		t.retryCount.Delete(requestID)
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodePaymentRejected,
			Message: "payment retry limit exceeded",
		}
	}

	// Make initial request
	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, err
	}

	// If not 402, return as-is
	if resp.StatusCode != http.StatusPaymentRequired {
		t.retryCount.Delete(requestID)
		return resp, nil
	}

	// Increment retry count
	t.retryCount.Store(requestID, retries+1)

	// Extract payment requirements
	headers := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	// Read body if present (for v1 compatibility)
	var body []byte
	if resp.Body != nil {
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.retryCount.Delete(requestID)
			return nil, fmt.Errorf("failed to read 402 response body: %w", err)
		}
	}

	// Parse payment requirements
	paymentRequired, err := t.x402Client.GetPaymentRequiredResponse(headers, body)
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, fmt.Errorf("failed to parse payment requirements: %w", err)
	}

	ctx := req.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Select requirements, sign, and run any extensions the server declared
	payload, err := t.x402Client.client.CreatePaymentForRequired(ctx, paymentRequired)
	if err != nil {
		t.retryCount.Delete(requestID)
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	// Create new request with payment header
	paymentReq := req.Clone(ctx)
	paymentHeaders := t.x402Client.EncodePaymentSignatureHeader(payload)
	for k, v := range paymentHeaders {
		paymentReq.Header.Set(k, v)
	}

	// Retry with payment
	newResp, err := t.Transport.RoundTrip(paymentReq)
	t.retryCount.Delete(requestID)
	if err != nil {
		return nil, err
	}

	// The server saw our payment and still wants one: surface the rejection
	// instead of looping
	if newResp.StatusCode == http.StatusPaymentRequired {
		reason := "payment was not accepted"
		retryHeaders := make(map[string]string)
		for k, v := range newResp.Header {
			if len(v) > 0 {
				retryHeaders[k] = v[0]
			}
		}
		var retryBody []byte
		if newResp.Body != nil {
			retryBody, _ = io.ReadAll(newResp.Body)
			newResp.Body.Close()
		}
		if rejected, perr := t.x402Client.GetPaymentRequiredResponse(retryHeaders, retryBody); perr == nil && rejected.Error != "" {
			reason = rejected.Error
		}
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodePaymentRejected,
			Message: reason,
		}
	}

	return newResp, nil
}

// ============================================================================
// Convenience Methods
// ============================================================================

// DoWithPayment performs an HTTP request with automatic payment handling
func (c *x402HTTPClient) DoWithPayment(ctx context.Context, req *http.Request) (*http.Response, error) {
	// Create a client with our transport
	client := &http.Client{
		Transport: &PaymentRoundTripper{
			Transport:  http.DefaultTransport,
			x402Client: c,
			retryCount: &sync.Map{},
		},
	}

	return client.Do(req.WithContext(ctx))
}

// GetWithPayment performs a GET request with automatic payment handling
func (c *x402HTTPClient) GetWithPayment(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	return c.DoWithPayment(ctx, req)
}

// PostWithPayment performs a POST request with automatic payment handling
func (c *x402HTTPClient) PostWithPayment(ctx context.Context, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, err
	}
	return c.DoWithPayment(ctx, req)
}
