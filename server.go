package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/x402labs/x402-go/types"
)

// X402ResourceServer manages payment requirements and verification for protected resources
// This is used by servers/APIs that want to charge for access
type X402ResourceServer struct {
	mu                    sync.RWMutex
	schemes               map[Network]map[string]SchemeNetworkServer
	facilitatorClients    []FacilitatorClient
	registeredExtensions  map[string]ResourceServerExtension
	supportedCache        *SupportedCache
	facilitatorClientsMap map[int]map[Network]map[string]FacilitatorClient
	logger                *slog.Logger

	// Lifecycle hooks
	beforeVerifyHooks    []BeforeVerifyHook
	afterVerifyHooks     []AfterVerifyHook
	onVerifyFailureHooks []OnVerifyFailureHook
	beforeSettleHooks    []BeforeSettleHook
	afterSettleHooks     []AfterSettleHook
	onSettleFailureHooks []OnSettleFailureHook
}

// SupportedCache caches facilitator capabilities per facilitator, refreshed
// lazily with a single in-flight refresh per key.
type SupportedCache struct {
	mu      sync.RWMutex
	data    map[string]SupportedResponse // key is facilitator identifier
	expiry  map[string]time.Time
	ttl     time.Duration
	refresh singleflight.Group
}

// ResourceServerOption configures the server
type ResourceServerOption func(*X402ResourceServer)

// WithFacilitatorClient adds a facilitator client
func WithFacilitatorClient(client FacilitatorClient) ResourceServerOption {
	return func(s *X402ResourceServer) {
		s.facilitatorClients = append(s.facilitatorClients, client)
	}
}

// WithSchemeServer registers a scheme server implementation
func WithSchemeServer(network Network, schemeServer SchemeNetworkServer) ResourceServerOption {
	return func(s *X402ResourceServer) {
		s.registerScheme(network, schemeServer)
	}
}

// WithCacheTTL sets the cache TTL for supported kinds
func WithCacheTTL(ttl time.Duration) ResourceServerOption {
	return func(s *X402ResourceServer) {
		s.supportedCache.ttl = ttl
	}
}

// WithLogger sets the structured logger used for hook errors and
// facilitator fallbacks. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ResourceServerOption {
	return func(s *X402ResourceServer) {
		s.logger = logger
	}
}

func NewX402ResourceServer(opts ...ResourceServerOption) *X402ResourceServer {
	s := &X402ResourceServer{
		schemes:              make(map[Network]map[string]SchemeNetworkServer),
		facilitatorClients:   []FacilitatorClient{},
		registeredExtensions: make(map[string]ResourceServerExtension),
		supportedCache: &SupportedCache{
			data:   make(map[string]SupportedResponse),
			expiry: make(map[string]time.Time),
			ttl:    5 * time.Minute,
		},
		facilitatorClientsMap: make(map[int]map[Network]map[string]FacilitatorClient),
		logger:                slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Initialize fetches supported payment kinds from all facilitators
// Should be called on startup to populate cache and build facilitator mapping
func (s *X402ResourceServer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clear existing mappings
	s.facilitatorClientsMap = make(map[int]map[Network]map[string]FacilitatorClient)

	var lastErr error
	successCount := 0

	// Process facilitators in order (earlier ones get precedence)
	for i, client := range s.facilitatorClients {
		supported, err := client.GetSupported(ctx)
		if err != nil {
			lastErr = fmt.Errorf("facilitator %d: %w", i, err)
			s.logger.Warn("failed to fetch supported kinds", "facilitator", i, "error", err)
			continue
		}

		// Cache the supported kinds
		key := fmt.Sprintf("facilitator_%d", i)
		s.supportedCache.Set(key, supported)
		successCount++

		// Build the facilitatorClientsMap for quick lookup
		for _, kind := range supported.Kinds {
			network := NormalizeNetwork(string(kind.Network))

			if s.facilitatorClientsMap[kind.X402Version] == nil {
				s.facilitatorClientsMap[kind.X402Version] = make(map[Network]map[string]FacilitatorClient)
			}
			versionMap := s.facilitatorClientsMap[kind.X402Version]

			if versionMap[network] == nil {
				versionMap[network] = make(map[string]FacilitatorClient)
			}
			networkMap := versionMap[network]

			// Only store if not already present (gives precedence to earlier facilitators)
			if _, exists := networkMap[kind.Scheme]; !exists {
				networkMap[kind.Scheme] = client
			}
		}
	}

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("failed to initialize any facilitators: %w", lastErr)
	}

	return nil
}

// Register registers a scheme server. Registering the same scheme twice for
// the same network returns ErrAlreadyRegistered.
func (s *X402ResourceServer) Register(network Network, schemeServer SchemeNetworkServer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	network = NormalizeNetwork(string(network))
	if existing := s.schemes[network]; existing != nil {
		if _, ok := existing[schemeServer.Scheme()]; ok {
			return fmt.Errorf("%s on %s: %w", schemeServer.Scheme(), network, ErrAlreadyRegistered)
		}
	}
	s.registerLocked(network, schemeServer)
	return nil
}

func (s *X402ResourceServer) registerScheme(network Network, schemeServer SchemeNetworkServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(NormalizeNetwork(string(network)), schemeServer)
}

func (s *X402ResourceServer) registerLocked(network Network, schemeServer SchemeNetworkServer) {
	if s.schemes[network] == nil {
		s.schemes[network] = make(map[string]SchemeNetworkServer)
	}
	s.schemes[network][schemeServer.Scheme()] = schemeServer
}

func (s *X402ResourceServer) RegisterExtension(extension ResourceServerExtension) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registeredExtensions[extension.Key()] = extension
	return s
}

// ============================================================================
// Hook Registration Methods (Chainable)
// ============================================================================

// OnBeforeVerify registers a hook to execute before payment verification.
// Can abort verification by returning a result with Abort=true.
func (s *X402ResourceServer) OnBeforeVerify(hook BeforeVerifyHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeVerifyHooks = append(s.beforeVerifyHooks, hook)
	return s
}

// OnAfterVerify registers a hook to execute after successful payment verification
func (s *X402ResourceServer) OnAfterVerify(hook AfterVerifyHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterVerifyHooks = append(s.afterVerifyHooks, hook)
	return s
}

// OnVerifyFailure registers a hook to execute when payment verification fails.
// Can recover from failure by returning a result with Recovered=true.
func (s *X402ResourceServer) OnVerifyFailure(hook OnVerifyFailureHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onVerifyFailureHooks = append(s.onVerifyFailureHooks, hook)
	return s
}

// OnBeforeSettle registers a hook to execute before payment settlement.
// Can abort settlement by returning a result with Abort=true.
func (s *X402ResourceServer) OnBeforeSettle(hook BeforeSettleHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeSettleHooks = append(s.beforeSettleHooks, hook)
	return s
}

// OnAfterSettle registers a hook to execute after successful payment settlement
func (s *X402ResourceServer) OnAfterSettle(hook AfterSettleHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterSettleHooks = append(s.afterSettleHooks, hook)
	return s
}

// OnSettleFailure registers a hook to execute when payment settlement fails.
// Can recover from failure by returning a result with Recovered=true.
func (s *X402ResourceServer) OnSettleFailure(hook OnSettleFailureHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSettleFailureHooks = append(s.onSettleFailureHooks, hook)
	return s
}

// EnrichExtensions runs registered extensions over the route's declared
// extensions before they are advertised in a 402 response.
func (s *X402ResourceServer) EnrichExtensions(
	declaredExtensions map[string]interface{},
	transportContext interface{},
) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enriched := make(map[string]interface{})

	for key, declaration := range declaredExtensions {
		if extension, ok := s.registeredExtensions[key]; ok {
			enriched[key] = extension.EnrichDeclaration(declaration, transportContext)
		} else {
			enriched[key] = declaration
		}
	}

	return enriched
}

// BuildPaymentRequirements creates payment requirements for a resource
func (s *X402ResourceServer) BuildPaymentRequirements(ctx context.Context, config ResourceConfig) ([]PaymentRequirements, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	network := NormalizeNetwork(string(config.Network))

	// Find the scheme server
	schemeServer := findByNetworkAndScheme(s.schemes, config.Scheme, network)
	if schemeServer == nil {
		return nil, &PaymentError{
			Code:    ErrCodeUnsupportedScheme,
			Message: fmt.Sprintf("no server registered for scheme %s on network %s", config.Scheme, config.Network),
		}
	}

	// Get supported kinds from facilitators
	supportedKind := s.findSupportedKind(ProtocolVersion, network, config.Scheme)
	if supportedKind == nil {
		supportedKind = s.findSupportedKind(ProtocolVersionV1, network, config.Scheme)
	}
	if supportedKind == nil {
		return nil, &PaymentError{
			Code:    ErrCodeUnsupportedNetwork,
			Message: fmt.Sprintf("facilitator does not support %s on %s", config.Scheme, config.Network),
			Details: map[string]interface{}{
				"hint": "call Initialize() to fetch supported kinds from facilitators",
			},
		}
	}

	// Parse the price using the scheme's parser
	assetAmount, err := schemeServer.ParsePrice(config.Price, network)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}

	// Build base requirements
	baseRequirements := PaymentRequirements{
		Scheme:            config.Scheme,
		Network:           network,
		Asset:             assetAmount.Asset,
		Amount:            assetAmount.Amount,
		PayTo:             config.PayTo,
		MaxTimeoutSeconds: config.MaxTimeoutSeconds,
		Description:       config.Description,
		MimeType:          config.MimeType,
		OutputSchema:      config.OutputSchema,
		Extra:             assetAmount.Extra,
	}

	// Set default timeout if not specified
	if baseRequirements.MaxTimeoutSeconds == 0 {
		baseRequirements.MaxTimeoutSeconds = 300 // 5 minutes default
	}

	// Get facilitator extensions
	extensions := s.getFacilitatorExtensions(supportedKind.X402Version, network, config.Scheme)

	// Enhance with scheme-specific details
	enhanced, err := schemeServer.EnhancePaymentRequirements(ctx, baseRequirements, *supportedKind, extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to enhance payment requirements: %w", err)
	}

	return []PaymentRequirements{enhanced}, nil
}

// CreatePaymentRequiredResponse creates a 402 response
func (s *X402ResourceServer) CreatePaymentRequiredResponse(
	requirements []PaymentRequirements,
	info ResourceInfo,
	errorMsg string,
	extensions map[string]interface{},
) PaymentRequired {
	response := PaymentRequired{
		X402Version: ProtocolVersion,
		Error:       errorMsg,
		Resource:    &info,
		Accepts:     requirements,
		Extensions:  extensions,
	}

	if errorMsg == "" {
		response.Error = "Payment required"
	}

	return response
}

// VerifyPayment verifies a payment against requirements.
// Server is boundary: accepts bytes (from client), routes to facilitator.
func (s *X402ResourceServer) VerifyPayment(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (VerifyResponse, error) {
	hookCtx := VerifyContext{
		Ctx:               ctx,
		PayloadBytes:      payloadBytes,
		RequirementsBytes: requirementsBytes,
		Timestamp:         time.Now(),
	}

	s.mu.RLock()
	beforeHooks := s.beforeVerifyHooks
	s.mu.RUnlock()

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			s.logger.Warn("beforeVerify hook error", "error", err)
		}
		if result != nil && result.Abort {
			return VerifyResponse{
				IsValid:       false,
				InvalidReason: result.Reason,
			}, nil
		}
	}

	started := time.Now()
	verifyResult, verifyErr := s.routeVerify(ctx, payloadBytes, requirementsBytes)
	duration := time.Since(started)

	if verifyErr == nil {
		s.mu.RLock()
		afterHooks := s.afterVerifyHooks
		s.mu.RUnlock()

		resultCtx := VerifyResultContext{
			VerifyContext: hookCtx,
			Result:        verifyResult,
			Duration:      duration,
		}

		for _, hook := range afterHooks {
			if err := hook(resultCtx); err != nil {
				s.logger.Warn("afterVerify hook error", "error", err)
			}
		}

		return verifyResult, nil
	}

	s.mu.RLock()
	failureHooks := s.onVerifyFailureHooks
	s.mu.RUnlock()

	failureCtx := VerifyFailureContext{
		VerifyContext: hookCtx,
		Error:         verifyErr,
		Duration:      duration,
	}

	for _, hook := range failureHooks {
		result, err := hook(failureCtx)
		if err != nil {
			s.logger.Warn("onVerifyFailure hook error", "error", err)
		}
		if result != nil && result.Recovered {
			return result.Result, nil
		}
	}

	return verifyResult, verifyErr
}

func (s *X402ResourceServer) routeVerify(ctx context.Context, payloadBytes, requirementsBytes []byte) (VerifyResponse, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return VerifyResponse{IsValid: false, InvalidReason: ErrCodeInvalidVersion}, err
	}

	reqInfo, err := types.ExtractRequirementsInfo(requirementsBytes)
	if err != nil {
		return VerifyResponse{IsValid: false, InvalidReason: ErrCodeInvalidPaymentRequirements}, err
	}

	facilitator := s.findFacilitatorForPayment(version, Network(reqInfo.Network), reqInfo.Scheme)
	if facilitator != nil {
		return facilitator.Verify(ctx, payloadBytes, requirementsBytes)
	}

	// No mapped facilitator; try them all in order.
	var lastErr error
	for _, client := range s.facilitatorClients {
		resp, err := client.Verify(ctx, payloadBytes, requirementsBytes)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = &PaymentError{
			Code:    ErrCodeUnsupportedKind,
			Message: "no facilitator supports this payment type",
		}
	}
	return VerifyResponse{
		IsValid:       false,
		InvalidReason: ErrCodeUnsupportedKind,
	}, lastErr
}

// SettlePayment settles a verified payment.
// Server is boundary: accepts bytes (from client), routes to facilitator.
func (s *X402ResourceServer) SettlePayment(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (SettleResponse, error) {
	hookCtx := SettleContext{
		Ctx:               ctx,
		PayloadBytes:      payloadBytes,
		RequirementsBytes: requirementsBytes,
		Timestamp:         time.Now(),
	}

	s.mu.RLock()
	beforeHooks := s.beforeSettleHooks
	s.mu.RUnlock()

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			s.logger.Warn("beforeSettle hook error", "error", err)
		}
		if result != nil && result.Abort {
			return SettleResponse{
				Success:     false,
				ErrorReason: fmt.Sprintf("Settlement aborted: %s", result.Reason),
			}, fmt.Errorf("settlement aborted: %s", result.Reason)
		}
	}

	started := time.Now()
	settleResult, settleErr := s.routeSettle(ctx, payloadBytes, requirementsBytes)
	duration := time.Since(started)

	if settleErr == nil && settleResult.Success {
		s.mu.RLock()
		afterHooks := s.afterSettleHooks
		s.mu.RUnlock()

		resultCtx := SettleResultContext{
			SettleContext: hookCtx,
			Result:        settleResult,
			Duration:      duration,
		}

		for _, hook := range afterHooks {
			if err := hook(resultCtx); err != nil {
				s.logger.Warn("afterSettle hook error", "error", err)
			}
		}

		return settleResult, nil
	}

	s.mu.RLock()
	failureHooks := s.onSettleFailureHooks
	s.mu.RUnlock()

	failureCtx := SettleFailureContext{
		SettleContext: hookCtx,
		Error:         settleErr,
		Duration:      duration,
	}

	for _, hook := range failureHooks {
		result, err := hook(failureCtx)
		if err != nil {
			s.logger.Warn("onSettleFailure hook error", "error", err)
		}
		if result != nil && result.Recovered {
			return result.Result, nil
		}
	}

	return settleResult, settleErr
}

func (s *X402ResourceServer) routeSettle(ctx context.Context, payloadBytes, requirementsBytes []byte) (SettleResponse, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return SettleResponse{Success: false, ErrorReason: ErrCodeInvalidVersion}, err
	}

	reqInfo, err := types.ExtractRequirementsInfo(requirementsBytes)
	if err != nil {
		return SettleResponse{Success: false, ErrorReason: ErrCodeInvalidPaymentRequirements}, err
	}

	facilitator := s.findFacilitatorForPayment(version, Network(reqInfo.Network), reqInfo.Scheme)
	if facilitator != nil {
		return facilitator.Settle(ctx, payloadBytes, requirementsBytes)
	}

	var lastErr error
	for _, client := range s.facilitatorClients {
		resp, err := client.Settle(ctx, payloadBytes, requirementsBytes)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = &PaymentError{
			Code:    ErrCodeSettlementFailed,
			Message: "no facilitator supports this payment type",
		}
	}
	return SettleResponse{
		Success:     false,
		ErrorReason: ErrCodeUnsupportedKind,
	}, lastErr
}

// FindMatchingRequirements finds requirements that match a payment payload
// Server boundary: takes bytes (payload) + structs (available requirements)
func (s *X402ResourceServer) FindMatchingRequirements(available []PaymentRequirements, payloadBytes []byte) *PaymentRequirements {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return nil
	}

	for _, req := range available {
		reqBytes, err := json.Marshal(req)
		if err != nil {
			continue
		}

		match, err := types.MatchPayloadToRequirements(version, payloadBytes, reqBytes)
		if err == nil && match {
			return &req
		}
	}

	return nil
}

// ProcessPaymentRequest processes a payment request end-to-end: build
// requirements, match the payload, verify. Settlement stays with the caller
// because the protected handler must run between verify and settle.
func (s *X402ResourceServer) ProcessPaymentRequest(
	ctx context.Context,
	paymentPayload *PaymentPayload,
	resourceConfig ResourceConfig,
	resourceInfo ResourceInfo,
	extensions map[string]interface{},
) (*ProcessResult, error) {
	requirements, err := s.BuildPaymentRequirements(ctx, resourceConfig)
	if err != nil {
		return nil, err
	}

	if paymentPayload == nil {
		return &ProcessResult{
			Success: false,
			RequiresPayment: &PaymentRequired{
				X402Version: ProtocolVersion,
				Error:       "Payment required",
				Resource:    &resourceInfo,
				Accepts:     requirements,
				Extensions:  extensions,
			},
		}, nil
	}

	payloadBytes, err := json.Marshal(paymentPayload)
	if err != nil {
		return nil, err
	}

	matchingRequirements := s.FindMatchingRequirements(requirements, payloadBytes)
	if matchingRequirements == nil {
		return &ProcessResult{
			Success: false,
			Error:   ErrCodeUnmatched,
			RequiresPayment: &PaymentRequired{
				X402Version: ProtocolVersion,
				Error:       ErrCodeUnmatched,
				Resource:    &resourceInfo,
				Accepts:     requirements,
				Extensions:  extensions,
			},
		}, nil
	}

	requirementsBytes, err := json.Marshal(matchingRequirements)
	if err != nil {
		return nil, err
	}

	verificationResult, err := s.VerifyPayment(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return nil, err
	}

	if !verificationResult.IsValid {
		return &ProcessResult{
			Success:            false,
			Error:              verificationResult.InvalidReason,
			VerificationResult: &verificationResult,
			MatchedRequirements: matchingRequirements,
		}, nil
	}

	return &ProcessResult{
		Success:             true,
		VerificationResult:  &verificationResult,
		MatchedRequirements: matchingRequirements,
	}, nil
}

// ProcessResult contains the result of processing a payment request
type ProcessResult struct {
	Success             bool
	RequiresPayment     *PaymentRequired
	VerificationResult  *VerifyResponse
	SettlementResult    *SettleResponse
	MatchedRequirements *PaymentRequirements
	Error               string
}

// Helper methods

// findSupportedKind finds a supported kind from cache
func (s *X402ResourceServer) findSupportedKind(version int, network Network, scheme string) *SupportedKind {
	s.supportedCache.mu.RLock()
	defer s.supportedCache.mu.RUnlock()

	for key, supported := range s.supportedCache.data {
		// Check if cache entry is still valid
		if expiry, exists := s.supportedCache.expiry[key]; exists {
			if time.Now().After(expiry) {
				continue // Skip expired entries
			}
		}

		// Look for matching kind
		for _, kind := range supported.Kinds {
			if kind.X402Version == version &&
				kind.Scheme == scheme &&
				NormalizeNetwork(string(kind.Network)).Match(network) {
				return &SupportedKind{
					X402Version: kind.X402Version,
					Scheme:      kind.Scheme,
					Network:     kind.Network,
					Extra:       kind.Extra,
				}
			}
		}
	}

	return nil
}

// getFacilitatorExtensions gets extensions for a payment type
func (s *X402ResourceServer) getFacilitatorExtensions(version int, network Network, scheme string) []string {
	s.supportedCache.mu.RLock()
	defer s.supportedCache.mu.RUnlock()

	for _, supported := range s.supportedCache.data {
		for _, kind := range supported.Kinds {
			if kind.X402Version == version &&
				kind.Scheme == scheme &&
				NormalizeNetwork(string(kind.Network)).Match(network) {
				return supported.Extensions
			}
		}
	}

	return []string{}
}

// findFacilitatorForPayment finds the facilitator that supports a payment type
// Uses the facilitatorClientsMap built during Initialize() for O(1) lookup
func (s *X402ResourceServer) findFacilitatorForPayment(version int, network Network, scheme string) FacilitatorClient {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versionMap, exists := s.facilitatorClientsMap[version]
	if !exists {
		return nil
	}

	return findByNetworkAndScheme(versionMap, scheme, network)
}

// Set adds an item to the cache
func (c *SupportedCache) Set(key string, value SupportedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = value
	c.expiry[key] = time.Now().Add(c.ttl)
}

// Get returns the cached value for key if it has not expired.
func (c *SupportedCache) Get(key string) (SupportedResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expiry, exists := c.expiry[key]
	if !exists || time.Now().After(expiry) {
		return SupportedResponse{}, false
	}
	return c.data[key], true
}

// GetOrRefresh returns the cached value for key, refreshing it via fetch when
// missing or stale. Concurrent refreshes for the same key collapse into one.
func (c *SupportedCache) GetOrRefresh(ctx context.Context, key string, fetch func(context.Context) (SupportedResponse, error)) (SupportedResponse, error) {
	if cached, ok := c.Get(key); ok {
		return cached, nil
	}

	result, err, _ := c.refresh.Do(key, func() (interface{}, error) {
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		fresh, err := fetch(ctx)
		if err != nil {
			return SupportedResponse{}, err
		}
		c.Set(key, fresh)
		return fresh, nil
	})
	if err != nil {
		return SupportedResponse{}, err
	}
	return result.(SupportedResponse), nil
}

// Clear clears the cache
func (c *SupportedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]SupportedResponse)
	c.expiry = make(map[string]time.Time)
}
