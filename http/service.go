package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	x402 "github.com/x402labs/x402-go"
)

// ============================================================================
// HTTP Resource Service
// ============================================================================

// HTTPAdapter abstracts the incoming HTTP request so the service can run
// under net/http, gin, echo, or any other framework.
type HTTPAdapter interface {
	GetHeader(name string) string
	GetMethod() string
	GetPath() string
	GetURL() string
	GetAcceptHeader() string
	GetUserAgent() string
}

// HTTPRequestContext carries the request through payment processing
type HTTPRequestContext struct {
	Adapter HTTPAdapter
	Path    string
	Method  string
}

// ProcessResultType classifies the outcome of ProcessHTTPRequest
type ProcessResultType string

const (
	// ResultNoPaymentRequired means the route is not payment protected
	ResultNoPaymentRequired ProcessResultType = "no_payment_required"

	// ResultPaymentVerified means a valid payment was presented
	ResultPaymentVerified ProcessResultType = "payment_verified"

	// ResultPaymentError means payment is missing or invalid; the caller
	// should send the attached Response
	ResultPaymentError ProcessResultType = "payment_error"
)

// ResponseInstructions tells the transport layer what to send
type ResponseInstructions struct {
	Status  int
	Headers map[string]string
	Body    interface{}
	IsHTML  bool
}

// HTTPProcessResult is the outcome of processing a request
type HTTPProcessResult struct {
	Type                ProcessResultType
	Response            *ResponseInstructions
	PaymentPayload      *x402.PaymentPayload
	PaymentRequirements *x402.PaymentRequirements
	Route               *RouteConfig
}

// SettlementReceiptIssuer signs a settled payment into a receipt header
// value so clients can hold the server to the settlement it reported. The
// offerreceipt extension provides the standard implementation.
type SettlementReceiptIssuer interface {
	IssueReceiptHeader(payload x402.PaymentPayload, requirements x402.PaymentRequirements, settlement x402.SettleResponse) (string, error)
}

// x402HTTPResourceService wraps the resource server with HTTP route matching,
// header handling, and the browser paywall.
type x402HTTPResourceService struct {
	*x402.X402ResourceServer

	routes          RoutesConfig
	compiledRoutes  []compiledRoute
	paywallProvider PaywallProvider
	receiptIssuer   SettlementReceiptIssuer
}

// NewX402HTTPResourceService creates an HTTP resource service for the given routes
func NewX402HTTPResourceService(routes RoutesConfig, opts ...x402.ResourceServerOption) *x402HTTPResourceService {
	return &x402HTTPResourceService{
		X402ResourceServer: x402.NewX402ResourceServer(opts...),
		routes:             routes,
		compiledRoutes:     compileRoutes(routes),
	}
}

// RegisterScheme registers a server-side payment mechanism for a network.
func (s *x402HTTPResourceService) RegisterScheme(network x402.Network, schemeServer x402.SchemeNetworkServer) error {
	return s.X402ResourceServer.Register(network, schemeServer)
}

// RegisterPaywallProvider overrides the built-in paywall templates
func (s *x402HTTPResourceService) RegisterPaywallProvider(provider PaywallProvider) *x402HTTPResourceService {
	s.paywallProvider = provider
	return s
}

// RegisterReceiptIssuer attaches a signed receipt header to every response
// whose payment settled.
func (s *x402HTTPResourceService) RegisterReceiptIssuer(issuer SettlementReceiptIssuer) *x402HTTPResourceService {
	s.receiptIssuer = issuer
	return s
}

// MatchRoute returns the route config protecting a method/path pair, or nil
func (s *x402HTTPResourceService) MatchRoute(method, path string) *RouteConfig {
	route := matchRoute(s.compiledRoutes, method, path)
	if route == nil {
		return nil
	}
	return &route.config
}

// ProcessHTTPRequest runs the payment flow for a request: route matching,
// requirement building, header decoding, matching, and verification.
// Settlement is left to the caller because the protected handler must run
// between verify and settle.
func (s *x402HTTPResourceService) ProcessHTTPRequest(ctx context.Context, reqCtx HTTPRequestContext, paywallConfig *PaywallConfig) HTTPProcessResult {
	route := matchRoute(s.compiledRoutes, reqCtx.Method, reqCtx.Path)
	if route == nil {
		return HTTPProcessResult{Type: ResultNoPaymentRequired}
	}

	resourceInfo := x402.ResourceInfo{
		URL:         reqCtx.Adapter.GetURL(),
		Description: route.config.Description,
		MimeType:    route.config.MimeType,
	}

	requirements, err := s.BuildPaymentRequirements(ctx, route.config.ResourceConfig())
	if err != nil {
		return s.paymentErrorResult(reqCtx, route, nil, resourceInfo, errorTag(err), paywallConfig)
	}

	// No payment header: respond 402 with the accepts list
	paymentHeader := s.extractPaymentHeader(reqCtx.Adapter)
	if paymentHeader == "" {
		return s.paymentErrorResult(reqCtx, route, requirements, resourceInfo, x402.ErrCodePaymentRequired, paywallConfig)
	}

	payload, err := ValidateAndDecodePaymentHeader(paymentHeader)
	if err != nil {
		return s.paymentErrorResult(reqCtx, route, requirements, resourceInfo, x402.ErrCodeInvalidPayload, paywallConfig)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return s.paymentErrorResult(reqCtx, route, requirements, resourceInfo, x402.ErrCodeInvalidPayload, paywallConfig)
	}

	matched := s.FindMatchingRequirements(requirements, payloadBytes)
	if matched == nil {
		return s.paymentErrorResult(reqCtx, route, requirements, resourceInfo, x402.ErrCodeUnmatched, paywallConfig)
	}

	requirementsBytes, err := json.Marshal(matched)
	if err != nil {
		return s.paymentErrorResult(reqCtx, route, requirements, resourceInfo, x402.ErrCodeInvalidPaymentRequirements, paywallConfig)
	}

	verification, err := s.VerifyPayment(ctx, payloadBytes, requirementsBytes)
	if err != nil || !verification.IsValid {
		reason := verification.InvalidReason
		if reason == "" {
			reason = errorTag(err)
		}
		// Negotiating schemes attach round state (counter-offers and the
		// like) to the failed verification; the client reads it from the
		// 402 body's extensions.
		return s.paymentErrorResult(reqCtx, route, requirements, resourceInfo, reason, paywallConfig, verification.Extensions)
	}

	return HTTPProcessResult{
		Type:                ResultPaymentVerified,
		PaymentPayload:      payload,
		PaymentRequirements: matched,
		Route:               &route.config,
	}
}

// ProcessSettlement settles a verified payment after the protected handler
// ran. Settlement only happens for successful (2xx) responses; for anything
// else it returns nil headers and no error.
func (s *x402HTTPResourceService) ProcessSettlement(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements, statusCode int) (map[string]string, error) {
	if statusCode < 200 || statusCode >= 300 {
		return nil, nil
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	requirementsBytes, err := json.Marshal(requirements)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal requirements: %w", err)
	}

	settlement, err := s.SettlePayment(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return nil, err
	}
	// Facilitators report business failures as success=false on a clean
	// transport. An unsettled payment must not release the response.
	if !settlement.Success {
		reason := settlement.ErrorReason
		if reason == "" {
			reason = x402.ErrCodeSettlementFailed
		}
		return nil, &x402.PaymentError{
			Code:    reason,
			Message: "payment settlement failed",
		}
	}

	encoded := EncodePaymentResponseHeader(settlement)
	headers := map[string]string{
		HeaderPaymentResponse: encoded,
		"Access-Control-Expose-Headers": HeaderPaymentResponse + ", " + HeaderPaymentResponseV2,
	}
	if payload.X402Version >= x402.ProtocolVersion {
		headers[HeaderPaymentResponseV2] = encoded
	}
	if s.receiptIssuer != nil {
		// A payment that settled but cannot be receipted still succeeded;
		// the response goes out without the receipt header.
		if receiptHeader, err := s.receiptIssuer.IssueReceiptHeader(payload, requirements, settlement); err == nil && receiptHeader != "" {
			headers[HeaderPaymentReceipt] = receiptHeader
			headers["Access-Control-Expose-Headers"] += ", " + HeaderPaymentReceipt
		}
	}
	return headers, nil
}

// extractPaymentHeader checks both payment header generations
func (s *x402HTTPResourceService) extractPaymentHeader(adapter HTTPAdapter) string {
	if header := adapter.GetHeader(HeaderPaymentSignature); header != "" {
		return header
	}
	return adapter.GetHeader(HeaderPayment)
}

// paymentErrorResult builds the 402 response, as HTML for browsers and JSON
// for programmatic clients. The accepts list always rides along in the
// PAYMENT-REQUIRED header.
func (s *x402HTTPResourceService) paymentErrorResult(
	reqCtx HTTPRequestContext,
	route *compiledRoute,
	requirements []x402.PaymentRequirements,
	resourceInfo x402.ResourceInfo,
	errorCode string,
	paywallConfig *PaywallConfig,
	extraExtensions ...map[string]interface{},
) HTTPProcessResult {
	extensions := s.EnrichExtensions(route.config.Extensions, reqCtx.Adapter)
	for _, extra := range extraExtensions {
		for key, value := range extra {
			if extensions == nil {
				extensions = make(map[string]interface{})
			}
			extensions[key] = value
		}
	}
	required := s.CreatePaymentRequiredResponse(requirements, resourceInfo, errorCode, extensions)

	headers := map[string]string{
		HeaderPaymentRequired: EncodePaymentRequiredHeader(required),
	}

	if s.isBrowserRequest(reqCtx.Adapter) {
		if html := s.generatePaywallHTML(required, paywallConfig, route.config.CustomPaywallHTML); html != "" {
			headers["Content-Type"] = "text/html"
			return HTTPProcessResult{
				Type: ResultPaymentError,
				Response: &ResponseInstructions{
					Status:  http.StatusPaymentRequired,
					Headers: headers,
					Body:    html,
					IsHTML:  true,
				},
				Route: &route.config,
			}
		}
	}

	headers["Content-Type"] = "application/json"
	return HTTPProcessResult{
		Type: ResultPaymentError,
		Response: &ResponseInstructions{
			Status:  http.StatusPaymentRequired,
			Headers: headers,
			Body:    required,
		},
		Route: &route.config,
	}
}

// isBrowserRequest detects interactive browser clients that should get the
// paywall page instead of JSON
func (s *x402HTTPResourceService) isBrowserRequest(adapter HTTPAdapter) bool {
	return strings.Contains(adapter.GetAcceptHeader(), "text/html") &&
		strings.Contains(adapter.GetUserAgent(), "Mozilla")
}

// generatePaywallHTML picks the paywall source: route override, registered
// provider, then the built-in templates.
func (s *x402HTTPResourceService) generatePaywallHTML(required x402.PaymentRequired, config *PaywallConfig, customHTML string) string {
	if customHTML != "" {
		return customHTML
	}
	if s.paywallProvider != nil {
		return s.paywallProvider.GenerateHTML(required, config)
	}
	return DefaultPaywallProvider().GenerateHTML(required, config)
}

// getDisplayAmount converts the first accepted amount into a display value
// assuming 6 decimal places (USDC convention)
func (s *x402HTTPResourceService) getDisplayAmount(required x402.PaymentRequired) float64 {
	if len(required.Accepts) == 0 {
		return 0
	}
	amount := required.Accepts[0].Amount
	if amount == "" {
		amount = required.Accepts[0].MaxAmountRequired
	}
	parsed, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	return parsed / 1e6
}

// errorTag extracts the stable error code from an error, defaulting to
// payment_required
func errorTag(err error) string {
	if err == nil {
		return x402.ErrCodePaymentRequired
	}
	var paymentErr *x402.PaymentError
	if errors.As(err, &paymentErr) {
		return paymentErr.Code
	}
	return x402.ErrCodePaymentRequired
}

// ============================================================================
// net/http Middleware
// ============================================================================

// Middleware wraps a handler with payment protection. Verified requests run
// the handler against a buffered writer, and settlement happens before the
// response is released so failed settlements can still produce a 402.
func (s *x402HTTPResourceService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adapter := &netHTTPAdapter{request: r}
		reqCtx := HTTPRequestContext{
			Adapter: adapter,
			Path:    r.URL.Path,
			Method:  r.Method,
		}

		result := s.ProcessHTTPRequest(r.Context(), reqCtx, nil)

		switch result.Type {
		case ResultNoPaymentRequired:
			next.ServeHTTP(w, r)

		case ResultPaymentError:
			writeInstructions(w, result.Response)

		case ResultPaymentVerified:
			buffered := newBufferedResponseWriter(w)
			next.ServeHTTP(buffered, r)

			settleHeaders, err := s.ProcessSettlement(
				r.Context(),
				*result.PaymentPayload,
				*result.PaymentRequirements,
				buffered.statusCode,
			)
			if err != nil {
				writeSettlementFailure(w, err)
				return
			}
			for k, v := range settleHeaders {
				w.Header().Set(k, v)
			}
			buffered.flush()
		}
	})
}

// netHTTPAdapter adapts *http.Request to the HTTPAdapter interface
type netHTTPAdapter struct {
	request *http.Request
}

func (a *netHTTPAdapter) GetHeader(name string) string { return a.request.Header.Get(name) }
func (a *netHTTPAdapter) GetMethod() string            { return a.request.Method }
func (a *netHTTPAdapter) GetPath() string              { return a.request.URL.Path }
func (a *netHTTPAdapter) GetURL() string {
	scheme := "https"
	if a.request.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + a.request.Host + a.request.URL.RequestURI()
}
func (a *netHTTPAdapter) GetAcceptHeader() string { return a.request.Header.Get("Accept") }
func (a *netHTTPAdapter) GetUserAgent() string    { return a.request.Header.Get("User-Agent") }

// bufferedResponseWriter holds back the handler's response until settlement
// succeeds
type bufferedResponseWriter struct {
	underlying  http.ResponseWriter
	buffer      bytes.Buffer
	statusCode  int
	wroteHeader bool
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{
		underlying: w,
		statusCode: http.StatusOK,
	}
}

func (b *bufferedResponseWriter) Header() http.Header {
	return b.underlying.Header()
}

func (b *bufferedResponseWriter) WriteHeader(statusCode int) {
	if !b.wroteHeader {
		b.statusCode = statusCode
		b.wroteHeader = true
	}
}

func (b *bufferedResponseWriter) Write(data []byte) (int, error) {
	return b.buffer.Write(data)
}

func (b *bufferedResponseWriter) flush() {
	b.underlying.WriteHeader(b.statusCode)
	if b.buffer.Len() > 0 {
		b.underlying.Write(b.buffer.Bytes())
	}
}

// writeInstructions sends a ResponseInstructions over net/http
func writeInstructions(w http.ResponseWriter, instructions *ResponseInstructions) {
	for k, v := range instructions.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(instructions.Status)

	if instructions.Body == nil {
		return
	}
	if instructions.IsHTML {
		fmt.Fprint(w, instructions.Body)
		return
	}
	json.NewEncoder(w).Encode(instructions.Body)
}

// writeSettlementFailure reports a failed settlement as a 402 so clients do
// not treat unsettled responses as paid
func writeSettlementFailure(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": errorTag(err),
	})
}
