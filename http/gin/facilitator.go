package gin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/extensions/bazaar"
)

// verifyWindow is how long a verification stays valid for settlement.
const verifyWindow = 5 * time.Minute

// FacilitatorServerOption configures the facilitator router.
type FacilitatorServerOption func(*facilitatorServerConfig)

type facilitatorServerConfig struct {
	catalogDiscovery bool
	verifyWindow     time.Duration
}

// WithDiscoveryCatalog enables the bazaar discovery catalog: resources seen
// in verified payments are recorded and served from /discovery/resources.
func WithDiscoveryCatalog() FacilitatorServerOption {
	return func(c *facilitatorServerConfig) {
		c.catalogDiscovery = true
	}
}

// WithVerifyWindow overrides how long a verification remains settleable.
func WithVerifyWindow(d time.Duration) FacilitatorServerOption {
	return func(c *facilitatorServerConfig) {
		c.verifyWindow = d
	}
}

// facilitatorServer holds the per-router state behind the HTTP handlers.
type facilitatorServer struct {
	facilitator *x402.X402Facilitator
	config      facilitatorServerConfig

	mu       sync.RWMutex
	verified map[string]time.Time
	catalog  map[string]catalogEntry
}

type catalogEntry struct {
	Resource    string                 `json:"resource"`
	Type        string                 `json:"type"`
	X402Version int                    `json:"x402Version"`
	Method      string                 `json:"method,omitempty"`
	LastUpdated string                 `json:"lastUpdated"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// facilitatorWireRequest is the body shape shared by /verify and /settle.
// The payload and requirements stay raw: the engine detects the protocol
// version itself and routes to the right mechanism generation.
type facilitatorWireRequest struct {
	X402Version         int             `json:"x402Version"`
	PaymentPayload      json.RawMessage `json:"paymentPayload"`
	PaymentRequirements json.RawMessage `json:"paymentRequirements"`
}

// NewFacilitatorRouter builds a gin router exposing a facilitator over HTTP:
// POST /verify, POST /settle, GET /supported, GET /health, and, when the
// discovery catalog is enabled, GET /discovery/resources. Settlement is
// gated on a prior verification of the same payload within the verify
// window.
func NewFacilitatorRouter(facilitator *x402.X402Facilitator, opts ...FacilitatorServerOption) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	RegisterFacilitatorRoutes(router, facilitator, opts...)
	return router
}

// RegisterFacilitatorRoutes mounts the facilitator endpoints on an existing
// router group, for callers that already have a gin engine.
func RegisterFacilitatorRoutes(router gin.IRouter, facilitator *x402.X402Facilitator, opts ...FacilitatorServerOption) {
	config := facilitatorServerConfig{verifyWindow: verifyWindow}
	for _, opt := range opts {
		opt(&config)
	}

	s := &facilitatorServer{
		facilitator: facilitator,
		config:      config,
		verified:    make(map[string]time.Time),
		catalog:     make(map[string]catalogEntry),
	}

	router.POST("/verify", s.handleVerify)
	router.POST("/settle", s.handleSettle)
	router.GET("/supported", s.handleSupported)
	router.GET("/health", s.handleHealth)
	if config.catalogDiscovery {
		router.GET("/discovery/resources", s.handleDiscoveryResources)
	}
}

func (s *facilitatorServer) handleVerify(c *gin.Context) {
	var req facilitatorWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
		return
	}
	if len(req.PaymentPayload) == 0 || len(req.PaymentRequirements) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_payload_or_requirements"})
		return
	}

	response, err := s.facilitator.Verify(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if response.IsValid {
		s.markVerified(x402.GenerateSettlementKey(req.PaymentPayload))
		if s.config.catalogDiscovery {
			s.recordDiscovery(req.PaymentPayload, req.PaymentRequirements)
		}
	}

	c.JSON(http.StatusOK, response)
}

func (s *facilitatorServer) handleSettle(c *gin.Context) {
	var req facilitatorWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
		return
	}
	if len(req.PaymentPayload) == 0 || len(req.PaymentRequirements) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_payload_or_requirements"})
		return
	}

	hash := x402.GenerateSettlementKey(req.PaymentPayload)
	if reason, ok := s.consumeVerified(hash); !ok {
		c.JSON(http.StatusOK, x402.SettleResponse{
			Success:     false,
			ErrorReason: reason,
		})
		return
	}

	response, err := s.facilitator.Settle(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (s *facilitatorServer) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, s.facilitator.GetSupported())
}

func (s *facilitatorServer) handleHealth(c *gin.Context) {
	supported := s.facilitator.GetSupported()

	s.mu.RLock()
	resources := len(s.catalog)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"kinds":               len(supported.Kinds),
		"extensions":          supported.Extensions,
		"discoveredResources": resources,
	})
}

func (s *facilitatorServer) handleDiscoveryResources(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	s.mu.RLock()
	all := make([]catalogEntry, 0, len(s.catalog))
	for _, entry := range s.catalog {
		all = append(all, entry)
	}
	s.mu.RUnlock()

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"x402Version": x402.ProtocolVersion,
		"items":       all[offset:end],
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
			"total":  total,
		},
	})
}

// markVerified records that a payload passed verification.
func (s *facilitatorServer) markVerified(hash string) {
	s.mu.Lock()
	s.verified[hash] = time.Now()
	s.mu.Unlock()
}

// consumeVerified checks and removes the verification record for a payload.
// Returns a failure reason when settlement must be refused.
func (s *facilitatorServer) consumeVerified(hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	verifiedAt, ok := s.verified[hash]
	if !ok {
		return "payment_not_verified", false
	}
	delete(s.verified, hash)

	if time.Since(verifiedAt) > s.config.verifyWindow {
		return "verification_expired", false
	}
	return "", true
}

// recordDiscovery catalogs the resource behind a verified payment when it
// carries a bazaar discovery extension.
func (s *facilitatorServer) recordDiscovery(payloadBytes, requirementsBytes []byte) {
	discovered, err := bazaar.ExtractDiscoveryInfo(payloadBytes, requirementsBytes, true)
	if err != nil || discovered == nil || discovered.ResourceURL == "" {
		return
	}

	s.mu.Lock()
	s.catalog[discovered.ResourceURL] = catalogEntry{
		Resource:    discovered.ResourceURL,
		Type:        "http",
		X402Version: discovered.X402Version,
		Method:      discovered.Method,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Unlock()
}
