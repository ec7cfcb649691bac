// Package echo provides x402 payment middleware for the Echo web framework.
package echo

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

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

// WithTimeout bounds each verify and settle call.
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

// PaymentMiddleware returns Echo middleware that protects the given routes
// with x402 payments.
//
// Example:
//
//	e := echo.New()
//	e.Use(echox402.PaymentMiddleware(
//	    routes,
//	    echox402.WithFacilitatorClient(facilitatorClient),
//	    echox402.WithScheme("eip155:84532", evm.NewExactEvmServer()),
//	))
func PaymentMiddleware(routes x402http.RoutesConfig, opts ...Option) echo.MiddlewareFunc {
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
		_ = service.Initialize(ctx)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if config.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, config.timeout)
				defer cancel()
			}

			adapter := &echoAdapter{c: c}
			result := service.ProcessHTTPRequest(ctx, x402http.HTTPRequestContext{
				Adapter: adapter,
				Path:    c.Request().URL.Path,
				Method:  c.Request().Method,
			}, config.paywallConfig)

			switch result.Type {
			case x402http.ResultNoPaymentRequired:
				return next(c)

			case x402http.ResultPaymentError:
				return writeInstructions(c, result.Response)

			case x402http.ResultPaymentVerified:
				// Buffer the handler's body so settlement failures can still
				// turn into a 402.
				original := c.Response().Writer
				buffer := newResponseBuffer(original)
				c.Response().Writer = buffer

				handlerErr := next(c)
				c.Response().Writer = original

				if handlerErr != nil {
					return handlerErr
				}

				settleHeaders, err := service.ProcessSettlement(
					ctx,
					*result.PaymentPayload,
					*result.PaymentRequirements,
					buffer.statusCode,
				)
				if err != nil {
					return c.JSON(http.StatusPaymentRequired, map[string]interface{}{
						"error": settlementErrorCode(err),
					})
				}

				for k, v := range settleHeaders {
					original.Header().Set(k, v)
				}
				buffer.flush()
				return nil
			}

			return next(c)
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

// echoAdapter adapts echo.Context to the x402http.HTTPAdapter interface.
type echoAdapter struct {
	c echo.Context
}

func (a *echoAdapter) GetHeader(name string) string { return a.c.Request().Header.Get(name) }
func (a *echoAdapter) GetMethod() string            { return a.c.Request().Method }
func (a *echoAdapter) GetPath() string              { return a.c.Request().URL.Path }
func (a *echoAdapter) GetURL() string {
	scheme := a.c.Scheme()
	return scheme + "://" + a.c.Request().Host + a.c.Request().URL.RequestURI()
}
func (a *echoAdapter) GetAcceptHeader() string { return a.c.Request().Header.Get("Accept") }
func (a *echoAdapter) GetUserAgent() string    { return a.c.Request().Header.Get("User-Agent") }

// TransportMethod satisfies the bazaar TransportContext interface so the
// discovery extension can learn the HTTP method during enrichment.
func (a *echoAdapter) TransportMethod() string { return a.c.Request().Method }

// writeInstructions sends a ResponseInstructions over echo.
func writeInstructions(c echo.Context, instructions *x402http.ResponseInstructions) error {
	for k, v := range instructions.Headers {
		c.Response().Header().Set(k, v)
	}

	if instructions.Body == nil {
		return c.NoContent(instructions.Status)
	}
	if instructions.IsHTML {
		if html, ok := instructions.Body.(string); ok {
			return c.HTML(instructions.Status, html)
		}
	}
	return c.JSON(instructions.Status, instructions.Body)
}

// responseBuffer holds back the handler's body until settlement succeeds.
type responseBuffer struct {
	underlying  http.ResponseWriter
	body        bytes.Buffer
	statusCode  int
	wroteHeader bool
}

func newResponseBuffer(w http.ResponseWriter) *responseBuffer {
	return &responseBuffer{
		underlying: w,
		statusCode: http.StatusOK,
	}
}

func (b *responseBuffer) Header() http.Header {
	return b.underlying.Header()
}

func (b *responseBuffer) WriteHeader(statusCode int) {
	if !b.wroteHeader {
		b.statusCode = statusCode
		b.wroteHeader = true
	}
}

func (b *responseBuffer) Write(data []byte) (int, error) {
	return b.body.Write(data)
}

func (b *responseBuffer) flush() {
	b.underlying.WriteHeader(b.statusCode)
	if b.body.Len() > 0 {
		b.underlying.Write(b.body.Bytes())
	}
}
