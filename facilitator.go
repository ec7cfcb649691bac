package x402

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/x402labs/x402-go/types"
)

// X402Facilitator manages payment verification and settlement
// Supports both V1 and V2 for legacy interoperability
type X402Facilitator struct {
	mu sync.RWMutex

	// Separate maps for V1 and V2 (V2 uses default name, no suffix)
	schemesV1 map[Network]map[string]SchemeNetworkFacilitatorV1
	schemes   map[Network]map[string]SchemeNetworkFacilitator // V2 (default)
	extrasV1  map[Network]map[string]interface{}
	extras    map[Network]map[string]interface{} // V2 (default)

	extensions []string

	// Settlement idempotency: duplicate settle requests for the same payload
	// bytes share one submission and one cached result.
	settlementCache *SettlementCache

	// Lifecycle hooks
	beforeVerifyHooks    []FacilitatorBeforeVerifyHook
	afterVerifyHooks     []FacilitatorAfterVerifyHook
	onVerifyFailureHooks []FacilitatorOnVerifyFailureHook
	beforeSettleHooks    []FacilitatorBeforeSettleHook
	afterSettleHooks     []FacilitatorAfterSettleHook
	onSettleFailureHooks []FacilitatorOnSettleFailureHook
}

// FacilitatorOption configures the facilitator
type FacilitatorOption func(*X402Facilitator)

// WithSettlementCacheTTL sets how long settled results are remembered for
// idempotent replays. Zero disables the cache.
func WithSettlementCacheTTL(ttl time.Duration) FacilitatorOption {
	return func(f *X402Facilitator) {
		if ttl > 0 {
			f.settlementCache = NewSettlementCache(ttl)
		} else {
			f.settlementCache = nil
		}
	}
}

func NewX402Facilitator(opts ...FacilitatorOption) *X402Facilitator {
	f := &X402Facilitator{
		schemesV1:       make(map[Network]map[string]SchemeNetworkFacilitatorV1),
		schemes:         make(map[Network]map[string]SchemeNetworkFacilitator),
		extrasV1:        make(map[Network]map[string]interface{}),
		extras:          make(map[Network]map[string]interface{}),
		extensions:      []string{},
		settlementCache: NewSettlementCache(10 * time.Minute),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RegisterV1 registers a V1 facilitator mechanism (legacy).
// Registering the same scheme twice for a network returns ErrAlreadyRegistered.
func (f *X402Facilitator) RegisterV1(network Network, facilitator SchemeNetworkFacilitatorV1, extra ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	network = NormalizeNetwork(string(network))
	if f.schemesV1[network] == nil {
		f.schemesV1[network] = make(map[string]SchemeNetworkFacilitatorV1)
	}
	if _, exists := f.schemesV1[network][facilitator.Scheme()]; exists {
		return fmt.Errorf("%s on %s: %w", facilitator.Scheme(), network, ErrAlreadyRegistered)
	}
	f.schemesV1[network][facilitator.Scheme()] = facilitator

	if len(extra) > 0 {
		if f.extrasV1[network] == nil {
			f.extrasV1[network] = make(map[string]interface{})
		}
		f.extrasV1[network][facilitator.Scheme()] = extra[0]
	}
	return nil
}

// Register registers a facilitator mechanism (V2, default).
// Registering the same scheme twice for a network returns ErrAlreadyRegistered.
func (f *X402Facilitator) Register(network Network, facilitator SchemeNetworkFacilitator, extra ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	network = NormalizeNetwork(string(network))
	if f.schemes[network] == nil {
		f.schemes[network] = make(map[string]SchemeNetworkFacilitator)
	}
	if _, exists := f.schemes[network][facilitator.Scheme()]; exists {
		return fmt.Errorf("%s on %s: %w", facilitator.Scheme(), network, ErrAlreadyRegistered)
	}
	f.schemes[network][facilitator.Scheme()] = facilitator

	if len(extra) > 0 {
		if f.extras[network] == nil {
			f.extras[network] = make(map[string]interface{})
		}
		f.extras[network][facilitator.Scheme()] = extra[0]
	}
	return nil
}

// RegisterExtension registers a protocol extension
func (f *X402Facilitator) RegisterExtension(extension string) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ext := range f.extensions {
		if ext == extension {
			return f
		}
	}

	f.extensions = append(f.extensions, extension)
	return f
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (f *X402Facilitator) OnBeforeVerify(hook FacilitatorBeforeVerifyHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeVerifyHooks = append(f.beforeVerifyHooks, hook)
	return f
}

func (f *X402Facilitator) OnAfterVerify(hook FacilitatorAfterVerifyHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterVerifyHooks = append(f.afterVerifyHooks, hook)
	return f
}

func (f *X402Facilitator) OnVerifyFailure(hook FacilitatorOnVerifyFailureHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onVerifyFailureHooks = append(f.onVerifyFailureHooks, hook)
	return f
}

func (f *X402Facilitator) OnBeforeSettle(hook FacilitatorBeforeSettleHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeSettleHooks = append(f.beforeSettleHooks, hook)
	return f
}

func (f *X402Facilitator) OnAfterSettle(hook FacilitatorAfterSettleHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterSettleHooks = append(f.afterSettleHooks, hook)
	return f
}

func (f *X402Facilitator) OnSettleFailure(hook FacilitatorOnSettleFailureHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSettleFailureHooks = append(f.onSettleFailureHooks, hook)
	return f
}

// ============================================================================
// Core Payment Methods (Network Boundary - uses bytes, routes internally)
// ============================================================================

// Verify verifies a payment (detects version from bytes, routes to typed mechanism)
func (f *X402Facilitator) Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (VerifyResponse, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return VerifyResponse{IsValid: false, InvalidReason: ErrCodeInvalidVersion}, err
	}

	hookCtx := FacilitatorVerifyContext{
		Ctx:               ctx,
		X402Version:       version,
		PayloadBytes:      payloadBytes,
		RequirementsBytes: requirementsBytes,
		Timestamp:         time.Now(),
	}

	f.mu.RLock()
	beforeHooks := f.beforeVerifyHooks
	f.mu.RUnlock()

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return VerifyResponse{IsValid: false, InvalidReason: err.Error()}, err
		}
		if result != nil && result.Abort {
			return VerifyResponse{IsValid: false, InvalidReason: result.Reason}, nil
		}
	}

	started := time.Now()
	verifyResult, verifyErr := f.routeVerify(ctx, version, payloadBytes, requirementsBytes)
	duration := time.Since(started)

	if verifyErr != nil {
		failureCtx := FacilitatorVerifyFailureContext{
			FacilitatorVerifyContext: hookCtx,
			Error:                    verifyErr,
			Duration:                 duration,
		}
		f.mu.RLock()
		failureHooks := f.onVerifyFailureHooks
		f.mu.RUnlock()
		for _, hook := range failureHooks {
			result, _ := hook(failureCtx)
			if result != nil && result.Recovered {
				return result.Result, nil
			}
		}
		return verifyResult, verifyErr
	}

	resultCtx := FacilitatorVerifyResultContext{
		FacilitatorVerifyContext: hookCtx,
		Result:                   verifyResult,
		Duration:                 duration,
	}
	f.mu.RLock()
	afterHooks := f.afterVerifyHooks
	f.mu.RUnlock()
	for _, hook := range afterHooks {
		_ = hook(resultCtx) // Hook errors do not affect the result
	}

	return verifyResult, nil
}

// Settle settles a payment (detects version from bytes, routes to typed mechanism).
// Duplicate settle requests for the same payload are collapsed: concurrent
// duplicates wait for the in-flight submission, later duplicates get the
// cached result.
func (f *X402Facilitator) Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (SettleResponse, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return SettleResponse{Success: false, ErrorReason: ErrCodeInvalidVersion}, err
	}

	var cacheKey string
	var done chan struct{}
	if f.settlementCache != nil {
		cacheKey = GenerateSettlementKey(payloadBytes)
		for {
			status, cached, ch := f.settlementCache.CheckAndMark(cacheKey)
			switch status {
			case StatusCached:
				return *cached, nil
			case StatusInFlight:
				result, err := f.settlementCache.WaitForResult(ctx, cacheKey, ch)
				if err != nil {
					return SettleResponse{Success: false, ErrorReason: ErrCodeUnexpectedSettleError}, err
				}
				if result != nil {
					return *result, nil
				}
				// In-flight attempt failed without caching; take over.
				continue
			case StatusNotFound:
				done = ch
			}
			break
		}
	}

	result, err := f.settleOnce(ctx, version, payloadBytes, requirementsBytes)
	if f.settlementCache != nil {
		if err == nil && result.Success {
			resultCopy := result
			f.settlementCache.Complete(cacheKey, &resultCopy, done)
		} else {
			f.settlementCache.Fail(cacheKey, done)
		}
	}
	return result, err
}

func (f *X402Facilitator) settleOnce(ctx context.Context, version int, payloadBytes, requirementsBytes []byte) (SettleResponse, error) {
	hookCtx := FacilitatorSettleContext{
		Ctx:               ctx,
		X402Version:       version,
		PayloadBytes:      payloadBytes,
		RequirementsBytes: requirementsBytes,
		Timestamp:         time.Now(),
	}

	f.mu.RLock()
	beforeHooks := f.beforeSettleHooks
	f.mu.RUnlock()

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return SettleResponse{Success: false, ErrorReason: err.Error()}, err
		}
		if result != nil && result.Abort {
			return SettleResponse{Success: false, ErrorReason: result.Reason}, fmt.Errorf("%s", result.Reason)
		}
	}

	started := time.Now()
	settleResult, settleErr := f.routeSettle(ctx, version, payloadBytes, requirementsBytes)
	duration := time.Since(started)

	if settleErr != nil {
		failureCtx := FacilitatorSettleFailureContext{
			FacilitatorSettleContext: hookCtx,
			Error:                    settleErr,
			Duration:                 duration,
		}
		f.mu.RLock()
		failureHooks := f.onSettleFailureHooks
		f.mu.RUnlock()
		for _, hook := range failureHooks {
			result, _ := hook(failureCtx)
			if result != nil && result.Recovered {
				return result.Result, nil
			}
		}
		return settleResult, settleErr
	}

	resultCtx := FacilitatorSettleResultContext{
		FacilitatorSettleContext: hookCtx,
		Result:                   settleResult,
		Duration:                 duration,
	}
	f.mu.RLock()
	afterHooks := f.afterSettleHooks
	f.mu.RUnlock()
	for _, hook := range afterHooks {
		_ = hook(resultCtx) // Hook errors do not affect the result
	}

	return settleResult, nil
}

// ============================================================================
// Internal Typed Methods (called after version detection)
// ============================================================================

func (f *X402Facilitator) routeVerify(ctx context.Context, version int, payloadBytes, requirementsBytes []byte) (VerifyResponse, error) {
	switch version {
	case ProtocolVersionV1:
		payload, err := types.ToPaymentPayloadV1(payloadBytes)
		if err != nil {
			return VerifyResponse{IsValid: false, InvalidReason: ErrCodeInvalidPayload}, nil
		}
		requirements, err := types.ToPaymentRequirementsV1(requirementsBytes)
		if err != nil {
			return VerifyResponse{IsValid: false, InvalidReason: ErrCodeInvalidPaymentRequirements}, nil
		}
		facilitator := f.findV1(requirements.Scheme, NormalizeNetwork(requirements.Network))
		if facilitator == nil {
			return VerifyResponse{IsValid: false, InvalidReason: ErrCodeUnsupportedKind}, nil
		}
		return facilitator.Verify(ctx, *payload, *requirements)

	case ProtocolVersion:
		payload, requirements, reason := decodeV2(payloadBytes, requirementsBytes)
		if reason != "" {
			return VerifyResponse{IsValid: false, InvalidReason: reason}, nil
		}
		facilitator := f.findV2(requirements.Scheme, NormalizeNetwork(string(requirements.Network)))
		if facilitator == nil {
			return VerifyResponse{IsValid: false, InvalidReason: ErrCodeUnsupportedKind}, nil
		}
		return facilitator.Verify(ctx, *payload, *requirements)

	default:
		return VerifyResponse{IsValid: false, InvalidReason: ErrCodeInvalidVersion}, nil
	}
}

func (f *X402Facilitator) routeSettle(ctx context.Context, version int, payloadBytes, requirementsBytes []byte) (SettleResponse, error) {
	switch version {
	case ProtocolVersionV1:
		payload, err := types.ToPaymentPayloadV1(payloadBytes)
		if err != nil {
			return SettleResponse{Success: false, ErrorReason: ErrCodeInvalidPayload}, nil
		}
		requirements, err := types.ToPaymentRequirementsV1(requirementsBytes)
		if err != nil {
			return SettleResponse{Success: false, ErrorReason: ErrCodeInvalidPaymentRequirements}, nil
		}
		facilitator := f.findV1(requirements.Scheme, NormalizeNetwork(requirements.Network))
		if facilitator == nil {
			return SettleResponse{Success: false, ErrorReason: ErrCodeUnsupportedKind}, nil
		}
		return facilitator.Settle(ctx, *payload, *requirements)

	case ProtocolVersion:
		payload, requirements, reason := decodeV2(payloadBytes, requirementsBytes)
		if reason != "" {
			return SettleResponse{Success: false, ErrorReason: reason}, nil
		}
		facilitator := f.findV2(requirements.Scheme, NormalizeNetwork(string(requirements.Network)))
		if facilitator == nil {
			return SettleResponse{Success: false, ErrorReason: ErrCodeUnsupportedKind}, nil
		}
		return facilitator.Settle(ctx, *payload, *requirements)

	default:
		return SettleResponse{Success: false, ErrorReason: ErrCodeInvalidVersion}, nil
	}
}

func (f *X402Facilitator) findV1(scheme string, network Network) SchemeNetworkFacilitatorV1 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return findByNetworkAndScheme(f.schemesV1, scheme, network)
}

func (f *X402Facilitator) findV2(scheme string, network Network) SchemeNetworkFacilitator {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return findByNetworkAndScheme(f.schemes, scheme, network)
}

// GetSupported returns supported payment kinds
func (f *X402Facilitator) GetSupported() SupportedResponse {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var kinds []SupportedKind

	// V1 schemes
	for network, schemeMap := range f.schemesV1 {
		for scheme, facilitator := range schemeMap {
			kind := SupportedKind{
				X402Version: ProtocolVersionV1,
				Scheme:      scheme,
				Network:     network,
			}
			if extra := f.extrasV1[network][scheme]; extra != nil {
				if extraMap, ok := extra.(map[string]interface{}); ok {
					kind.Extra = extraMap
				}
			} else if extra := facilitator.GetExtra(network); extra != nil {
				kind.Extra = extra
			}
			kinds = append(kinds, kind)
		}
	}

	// V2 schemes (default)
	for network, schemeMap := range f.schemes {
		for scheme, facilitator := range schemeMap {
			kind := SupportedKind{
				X402Version: ProtocolVersion,
				Scheme:      scheme,
				Network:     network,
			}
			if extra := f.extras[network][scheme]; extra != nil {
				if extraMap, ok := extra.(map[string]interface{}); ok {
					kind.Extra = extraMap
				}
			} else if extra := facilitator.GetExtra(network); extra != nil {
				kind.Extra = extra
			}
			kinds = append(kinds, kind)
		}
	}

	return SupportedResponse{
		Kinds:      kinds,
		Extensions: f.extensions,
	}
}
