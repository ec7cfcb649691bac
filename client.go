package x402

import (
	"context"
	"fmt"
	"math/big"
	"sync"
)

// X402Client manages payment mechanisms and creates payment payloads
// This is used by applications that need to make payments (have wallets/signers)
type X402Client struct {
	mu sync.RWMutex

	// Nested map: version -> network -> scheme -> client implementation
	// This allows multiple versions and network patterns
	schemes map[int]map[Network]map[string]SchemeNetworkClient

	// Function to select payment requirements when multiple options exist
	requirementsSelector PaymentRequirementsSelector

	// Optional spend ceiling in atomic units, applied by the default selector
	// and enforced again before signing.
	maxValue *big.Int

	preferences PaymentPreferences

	extensions map[string]ClientExtension
}

// PaymentRequirementsSelector chooses which payment option to use
type PaymentRequirementsSelector func(version int, requirements []PaymentRequirements) PaymentRequirements

// PaymentPreferences orders candidate requirements by the client's preferred
// networks and assets. Earlier entries rank higher; unlisted values rank last.
type PaymentPreferences struct {
	Networks []Network
	Assets   []string
}

// ClientOption configures the client
type ClientOption func(*X402Client)

// WithPaymentSelector sets a custom payment requirements selector
func WithPaymentSelector(selector PaymentRequirementsSelector) ClientOption {
	return func(c *X402Client) {
		c.requirementsSelector = selector
	}
}

// WithMaxValue caps how much the client will pay, in atomic units of the
// selected asset. Requirements above the cap are filtered out during
// selection, and CreatePaymentPayload refuses them outright.
func WithMaxValue(maxValue *big.Int) ClientOption {
	return func(c *X402Client) {
		c.maxValue = maxValue
	}
}

// WithPaymentPreferences sets network/asset orderings for the default selector
func WithPaymentPreferences(prefs PaymentPreferences) ClientOption {
	return func(c *X402Client) {
		c.preferences = prefs
	}
}

// WithScheme registers a payment mechanism at creation time
func WithScheme(version int, network Network, client SchemeNetworkClient) ClientOption {
	return func(c *X402Client) {
		c.registerScheme(version, network, client)
	}
}

// WithClientExtension registers a client-side extension at creation time
func WithClientExtension(extension ClientExtension) ClientOption {
	return func(c *X402Client) {
		c.extensions[extension.Key()] = extension
	}
}

// NewX402Client creates a new x402 client
func NewX402Client(opts ...ClientOption) *X402Client {
	c := &X402Client{
		schemes:    make(map[int]map[Network]map[string]SchemeNetworkClient),
		extensions: make(map[string]ClientExtension),
	}
	c.requirementsSelector = c.defaultPaymentSelector

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// defaultPaymentSelector orders the candidates by the client's preferences
// and picks the first within budget. Candidates have already been filtered
// to schemes the client can sign for.
func (c *X402Client) defaultPaymentSelector(version int, requirements []PaymentRequirements) PaymentRequirements {
	best := -1
	bestRank := 0
	for i, req := range requirements {
		if !c.withinBudget(req) {
			continue
		}
		rank := c.preferenceRank(req)
		if best == -1 || rank < bestRank {
			best = i
			bestRank = rank
		}
	}
	if best == -1 {
		// Nothing within budget; surface the first candidate so the caller's
		// budget check produces a precise exceeds_max_value error.
		return requirements[0]
	}
	return requirements[best]
}

func (c *X402Client) preferenceRank(req PaymentRequirements) int {
	const unranked = 1 << 16
	rank := 0

	networkRank := unranked
	for i, n := range c.preferences.Networks {
		if req.Network.Match(n) {
			networkRank = i
			break
		}
	}
	rank += networkRank << 8

	assetRank := unranked
	for i, a := range c.preferences.Assets {
		if req.Asset == a {
			assetRank = i
			break
		}
	}
	rank += assetRank

	return rank
}

func (c *X402Client) withinBudget(req PaymentRequirements) bool {
	if c.maxValue == nil {
		return true
	}
	amount := req.Amount
	if amount == "" {
		amount = req.MaxAmountRequired
	}
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return false
	}
	return value.Cmp(c.maxValue) <= 0
}

// RegisterScheme registers a payment mechanism for protocol v2
func (c *X402Client) RegisterScheme(network Network, client SchemeNetworkClient) *X402Client {
	return c.registerScheme(ProtocolVersion, network, client)
}

// RegisterSchemeV1 registers a payment mechanism for protocol v1
func (c *X402Client) RegisterSchemeV1(network Network, client SchemeNetworkClient) *X402Client {
	return c.registerScheme(ProtocolVersionV1, network, client)
}

// RegisterExtension registers a client-side extension
func (c *X402Client) RegisterExtension(extension ClientExtension) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extensions[extension.Key()] = extension
	return c
}

// registerScheme internal method to register schemes
func (c *X402Client) registerScheme(version int, network Network, client SchemeNetworkClient) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	network = NormalizeNetwork(string(network))

	if c.schemes[version] == nil {
		c.schemes[version] = make(map[Network]map[string]SchemeNetworkClient)
	}
	if c.schemes[version][network] == nil {
		c.schemes[version][network] = make(map[string]SchemeNetworkClient)
	}

	c.schemes[version][network][client.Scheme()] = client

	return c
}

// SelectPaymentRequirements chooses which payment requirements to use
// This filters requirements to only those the client can fulfill
func (c *X402Client) SelectPaymentRequirements(version int, requirements []PaymentRequirements) (PaymentRequirements, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	versionSchemes, exists := c.schemes[version]
	if !exists {
		return PaymentRequirements{}, fmt.Errorf("no schemes registered for x402 version %d", version)
	}

	// Filter to only supported requirements
	var supported []PaymentRequirements
	for _, req := range requirements {
		schemeMap := findSchemesByNetwork(versionSchemes, NormalizeNetwork(string(req.Network)))
		if schemeMap != nil {
			if _, hasScheme := schemeMap[req.Scheme]; hasScheme {
				supported = append(supported, req)
			}
		}
	}

	if len(supported) == 0 {
		return PaymentRequirements{}, &PaymentError{
			Code:    ErrCodeUnsupportedScheme,
			Message: "no supported payment schemes available",
			Details: map[string]interface{}{
				"version":      version,
				"requirements": requirements,
			},
		}
	}

	// Use selector to choose from supported options
	return c.requirementsSelector(version, supported), nil
}

// CreatePaymentPayload creates a signed payment payload with accepted requirements
// For v2+: includes accepted, resource, and extensions fields
// For v1: includes accepted field
// The version parameter specifies which x402 protocol version to use
func (c *X402Client) CreatePaymentPayload(ctx context.Context, version int, requirements PaymentRequirements, resource *ResourceInfo, extensions map[string]interface{}) (PaymentPayload, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Validate requirements
	if err := ValidatePaymentRequirements(requirements); err != nil {
		return PaymentPayload{}, fmt.Errorf("invalid payment requirements: %w", err)
	}

	if !c.withinBudget(requirements) {
		return PaymentPayload{}, &PaymentError{
			Code:    ErrCodeExceedsMaxValue,
			Message: fmt.Sprintf("amount %s exceeds the configured maximum", requirements.Amount),
		}
	}

	// Find the appropriate client for the specified version
	versionSchemes, exists := c.schemes[version]
	if !exists {
		return PaymentPayload{}, fmt.Errorf("no schemes registered for x402 version %d", version)
	}

	network := NormalizeNetwork(string(requirements.Network))
	client := findByNetworkAndScheme(versionSchemes, requirements.Scheme, network)
	if client == nil {
		return PaymentPayload{}, &PaymentError{
			Code:    ErrCodeUnsupportedScheme,
			Message: fmt.Sprintf("no client registered for scheme %s on network %s for version %d", requirements.Scheme, requirements.Network, version),
		}
	}

	// Create the partial payment payload using the mechanism-specific client
	partialPayload, err := client.CreatePaymentPayload(ctx, version, requirements)
	if err != nil {
		return PaymentPayload{}, fmt.Errorf("failed to create payment payload: %w", err)
	}

	fullPayload := PaymentPayload{
		X402Version: partialPayload.X402Version,
		Payload:     partialPayload.Payload,
		Accepted:    requirements,
	}

	if partialPayload.X402Version == ProtocolVersionV1 {
		// V1 carries scheme/network at the top level, legacy network names
		fullPayload.Scheme = requirements.Scheme
		fullPayload.Network = ToV1NetworkName(network)
	} else {
		fullPayload.Resource = resource
		fullPayload.Extensions = extensions
	}

	// Validate the created payload
	if err := ValidatePaymentPayload(fullPayload); err != nil {
		return PaymentPayload{}, fmt.Errorf("invalid payment payload created: %w", err)
	}

	return fullPayload, nil
}

// GetRegisteredSchemes returns a list of registered schemes for debugging
func (c *X402Client) GetRegisteredSchemes() map[int][]struct {
	Network Network
	Scheme  string
} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[int][]struct {
		Network Network
		Scheme  string
	})

	for version, versionSchemes := range c.schemes {
		for network, schemes := range versionSchemes {
			for scheme := range schemes {
				result[version] = append(result[version], struct {
					Network Network
					Scheme  string
				}{
					Network: network,
					Scheme:  scheme,
				})
			}
		}
	}

	return result
}

// CanPay checks if the client can pay with any of the given requirements
func (c *X402Client) CanPay(version int, requirements []PaymentRequirements) bool {
	_, err := c.SelectPaymentRequirements(version, requirements)
	return err == nil
}

// CreatePaymentForRequired creates a payment for a PaymentRequired response
// This includes resource and extensions from the PaymentRequired response
func (c *X402Client) CreatePaymentForRequired(ctx context.Context, required PaymentRequired) (PaymentPayload, error) {
	// Select appropriate requirements
	selected, err := c.SelectPaymentRequirements(required.X402Version, required.Accepts)
	if err != nil {
		return PaymentPayload{}, err
	}

	// Create payment with version, resource and extensions from PaymentRequired
	payload, err := c.CreatePaymentPayload(ctx, required.X402Version, selected, required.Resource, nil)
	if err != nil {
		return PaymentPayload{}, err
	}

	// Run client extensions declared by the server
	c.mu.RLock()
	registered := make([]ClientExtension, 0, len(c.extensions))
	for key := range required.Extensions {
		if ext, ok := c.extensions[key]; ok {
			registered = append(registered, ext)
		}
	}
	c.mu.RUnlock()

	for _, ext := range registered {
		payload, err = ext.EnrichPaymentPayload(ctx, payload, required)
		if err != nil {
			return PaymentPayload{}, fmt.Errorf("extension %s: %w", ext.Key(), err)
		}
	}

	return payload, nil
}
