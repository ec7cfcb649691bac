package negotiated

import (
	"context"
	"fmt"
	"strconv"

	x402 "github.com/x402labs/x402-go"
)

// NegotiatedServer implements the SchemeNetworkServer interface on top of an
// inner scheme server. Every payment-required challenge opens a negotiation
// session and discloses the opening ask, the session id, and the iteration
// budget; the floor stays server-side.
type NegotiatedServer struct {
	inner         x402.SchemeNetworkServer
	negotiator    *Negotiator
	minRatio      float64
	maxIterations int
}

// NewNegotiatedServer creates a NegotiatedServer. minRatio is the hidden
// floor as a fraction of the base amount, maxIterations the counter-offer
// budget per session.
func NewNegotiatedServer(inner x402.SchemeNetworkServer, negotiator *Negotiator, minRatio float64, maxIterations int) (*NegotiatedServer, error) {
	if minRatio <= 0 || minRatio > 1 {
		return nil, fmt.Errorf("minRatio must be in (0, 1], got %v", minRatio)
	}
	if maxIterations <= 0 {
		return nil, fmt.Errorf("maxIterations must be positive, got %d", maxIterations)
	}
	return &NegotiatedServer{
		inner:         inner,
		negotiator:    negotiator,
		minRatio:      minRatio,
		maxIterations: maxIterations,
	}, nil
}

// Scheme returns the scheme identifier
func (s *NegotiatedServer) Scheme() string {
	return SchemeNegotiated
}

// ParsePrice delegates to the inner scheme
func (s *NegotiatedServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	return s.inner.ParsePrice(price, network)
}

// EnhancePaymentRequirements opens a negotiation session for the challenge
// and attaches the negotiation terms the client may see.
func (s *NegotiatedServer) EnhancePaymentRequirements(
	ctx context.Context,
	requirements x402.PaymentRequirements,
	supportedKind x402.SupportedKind,
	extensionKeys []string,
) (x402.PaymentRequirements, error) {
	requirements.Scheme = s.inner.Scheme()
	requirements, err := s.inner.EnhancePaymentRequirements(ctx, requirements, supportedKind, extensionKeys)
	requirements.Scheme = SchemeNegotiated
	if err != nil {
		return requirements, err
	}

	baseAmount, err := strconv.ParseUint(requirements.Amount, 10, 64)
	if err != nil || baseAmount == 0 {
		return requirements, fmt.Errorf("invalid base amount: %s", requirements.Amount)
	}

	sessionID, err := s.negotiator.Open(Terms{
		BaseAmount:    baseAmount,
		MinAcceptable: uint64(float64(baseAmount) * s.minRatio),
		MaxIterations: s.maxIterations,
	})
	if err != nil {
		return requirements, fmt.Errorf("failed to open negotiation: %w", err)
	}

	if requirements.Extra == nil {
		requirements.Extra = make(map[string]interface{})
	}
	requirements.Extra["sessionId"] = sessionID
	requirements.Extra["baseAmount"] = requirements.Amount
	requirements.Extra["maxIterations"] = s.maxIterations

	return requirements, nil
}
