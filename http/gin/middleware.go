// Package gin provides x402 payment middleware for the Gin web framework.
package gin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402labs/x402-go"
	x402http "github.com/x402labs/x402-go/http"
)

// Option configures the payment middleware.
type Option func(*middlewareConfig)

type middlewareConfig struct {
	serverOpts        []x402.ResourceServerOption
	paywallConfig     *x402http.PaywallConfig
	timeout           time.Duration
	initializeOnStart bool
}

// WithFacilitatorClient sets the facilitator client used for verify and settle.
func WithFacilitatorClient(client x402.FacilitatorClient) Option {
	return func(c *middlewareConfig) {
		c.serverOpts = append(c.serverOpts, x402.WithFacilitatorClient(client))
	}
}

// WithScheme registers a scheme server for a network.
func WithScheme(network x402.Network, schemeServer x402.SchemeNetworkServer) Option {
	return func(c *middlewareConfig) {
		c.serverOpts = append(c.serverOpts, x402.WithSchemeServer(network, schemeServer))
	}
}

// WithResourceServerOption passes an arbitrary option through to the
// underlying resource server.
func WithResourceServerOption(opt x402.ResourceServerOption) Option {
	return func(c *middlewareConfig) {
		c.serverOpts = append(c.serverOpts, opt)
	}
}

// WithPaywallConfig customizes the browser paywall rendering.
func WithPaywallConfig(config *x402http.PaywallConfig) Option {
	return func(c *middlewareConfig) {
		c.paywallConfig = config
	}
}

// WithTimeout bounds each verify and settle call. Zero means no bound beyond
// the request context.
func WithTimeout(timeout time.Duration) Option {
	return func(c *middlewareConfig) {
		c.timeout = timeout
	}
}

// WithInitializeOnStart prefills the facilitator supported-kinds cache when
// the middleware is constructed instead of on the first request.
func WithInitializeOnStart(initialize bool) Option {
	return func(c *middlewareConfig) {
		c.initializeOnStart = initialize
	}
}

// PaymentMiddleware returns Gin middleware that protects the given routes
// with x402 payments.
//
// Example:
//
//	r := gin.New()
//	r.Use(ginx402.PaymentMiddleware(
//	    routes,
//	    ginx402.WithFacilitatorClient(facilitatorClient),
//	    ginx402.WithScheme("eip155:84532", evm.NewExactEvmServer()),
//	    ginx402.WithInitializeOnStart(true),
//	))
func PaymentMiddleware(routes x402http.RoutesConfig, opts ...Option) gin.HandlerFunc {
	config := &middlewareConfig{}
	for _, opt := range opts {
		opt(config)
	}

	service := x402http.NewX402HTTPResourceService(routes, config.serverOpts...)

	if config.initializeOnStart {
		ctx := context.Background()
		if config.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.timeout)
			defer cancel()
		}
		// Initialization failures surface on the first request instead.
		_ = service.Initialize(ctx)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if config.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.timeout)
			defer cancel()
		}

		adapter := &ginAdapter{c: c}
		result := service.ProcessHTTPRequest(ctx, x402http.HTTPRequestContext{
			Adapter: adapter,
			Path:    c.Request.URL.Path,
			Method:  c.Request.Method,
		}, config.paywallConfig)

		switch result.Type {
		case x402http.ResultNoPaymentRequired:
			c.Next()

		case x402http.ResultPaymentError:
			writeInstructions(c, result.Response)
			c.Abort()

		case x402http.ResultPaymentVerified:
			// Buffer the handler's response so settlement failures can still
			// turn into a 402.
			buffer := &responseBuffer{ResponseWriter: c.Writer, statusCode: http.StatusOK}
			c.Writer = buffer

			c.Next()

			settleHeaders, err := service.ProcessSettlement(
				ctx,
				*result.PaymentPayload,
				*result.PaymentRequirements,
				buffer.statusCode,
			)
			if err != nil {
				buffer.discard()
				c.JSON(http.StatusPaymentRequired, gin.H{"error": settlementErrorCode(err)})
				return
			}

			for k, v := range settleHeaders {
				buffer.ResponseWriter.Header().Set(k, v)
			}
			buffer.release()
		}
	}
}

// settlementErrorCode extracts the stable error code for the 402 body.
func settlementErrorCode(err error) string {
	var paymentErr *x402.PaymentError
	if errors.As(err, &paymentErr) {
		return paymentErr.Code
	}
	return x402.ErrCodeSettlementFailed
}

// ginAdapter adapts gin.Context to the x402http.HTTPAdapter interface.
type ginAdapter struct {
	c *gin.Context
}

func (a *ginAdapter) GetHeader(name string) string { return a.c.GetHeader(name) }
func (a *ginAdapter) GetMethod() string            { return a.c.Request.Method }
func (a *ginAdapter) GetPath() string              { return a.c.Request.URL.Path }
func (a *ginAdapter) GetURL() string {
	scheme := "https"
	if a.c.Request.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + a.c.Request.Host + a.c.Request.URL.RequestURI()
}
func (a *ginAdapter) GetAcceptHeader() string { return a.c.GetHeader("Accept") }
func (a *ginAdapter) GetUserAgent() string    { return a.c.GetHeader("User-Agent") }

// TransportMethod satisfies the bazaar TransportContext interface so the
// discovery extension can learn the HTTP method during enrichment.
func (a *ginAdapter) TransportMethod() string { return a.c.Request.Method }

// writeInstructions sends a ResponseInstructions over gin.
func writeInstructions(c *gin.Context, instructions *x402http.ResponseInstructions) {
	for k, v := range instructions.Headers {
		c.Header(k, v)
	}

	if instructions.Body == nil {
		c.Status(instructions.Status)
		return
	}
	if instructions.IsHTML {
		if html, ok := instructions.Body.(string); ok {
			c.Data(instructions.Status, "text/html; charset=utf-8", []byte(html))
			return
		}
	}
	c.JSON(instructions.Status, instructions.Body)
}

// responseBuffer holds back the handler's body until settlement succeeds.
type responseBuffer struct {
	gin.ResponseWriter
	body       bytes.Buffer
	statusCode int
	discarded  bool
}

func (b *responseBuffer) WriteHeader(statusCode int) {
	b.statusCode = statusCode
}

func (b *responseBuffer) Write(data []byte) (int, error) {
	return b.body.Write(data)
}

func (b *responseBuffer) WriteString(s string) (int, error) {
	return b.body.WriteString(s)
}

func (b *responseBuffer) Status() int {
	return b.statusCode
}

func (b *responseBuffer) discard() {
	b.discarded = true
	b.body.Reset()
}

func (b *responseBuffer) release() {
	if b.discarded {
		return
	}
	b.ResponseWriter.WriteHeader(b.statusCode)
	if b.body.Len() > 0 {
		b.ResponseWriter.Write(b.body.Bytes())
	}
}
