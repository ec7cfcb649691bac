package negotiated

import (
	"context"
	"fmt"
	"strconv"

	x402 "github.com/x402labs/x402-go"
)

// NegotiationEnvelope is the negotiation part of the payment payload,
// carried alongside the inner scheme's fields.
type NegotiationEnvelope struct {
	SessionID string `json:"sessionId"`
	Amount    string `json:"amount"`
}

// envelopeFromPayload extracts the negotiation envelope from a payload map.
func envelopeFromPayload(data map[string]interface{}) (*NegotiationEnvelope, error) {
	raw, ok := data["negotiation"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing negotiation field")
	}
	envelope := &NegotiationEnvelope{}
	if sessionID, ok := raw["sessionId"].(string); ok && sessionID != "" {
		envelope.SessionID = sessionID
	} else {
		return nil, fmt.Errorf("missing or invalid sessionId field")
	}
	if amount, ok := raw["amount"].(string); ok && amount != "" {
		envelope.Amount = amount
	} else {
		return nil, fmt.Errorf("missing or invalid amount field")
	}
	return envelope, nil
}

// NegotiatedFacilitator implements the SchemeNetworkFacilitator interface by
// gating an inner scheme facilitator behind an accepted negotiation session.
// The inner scheme sees the agreed amount as the requirement.
type NegotiatedFacilitator struct {
	inner      x402.SchemeNetworkFacilitator
	negotiator *Negotiator
}

// NewNegotiatedFacilitator creates a new NegotiatedFacilitator
func NewNegotiatedFacilitator(inner x402.SchemeNetworkFacilitator, negotiator *Negotiator) *NegotiatedFacilitator {
	return &NegotiatedFacilitator{
		inner:      inner,
		negotiator: negotiator,
	}
}

// Scheme returns the scheme identifier
func (f *NegotiatedFacilitator) Scheme() string {
	return SchemeNegotiated
}

// CaipFamily returns the inner scheme's CAIP family
func (f *NegotiatedFacilitator) CaipFamily() string {
	return f.inner.CaipFamily()
}

// GetExtra returns the inner scheme's extra
func (f *NegotiatedFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	return f.inner.GetExtra(network)
}

// GetSigners returns the inner scheme's signers
func (f *NegotiatedFacilitator) GetSigners(network x402.Network) []string {
	return f.inner.GetSigners(network)
}

// Verify runs the payload's offer through the negotiation session. An open
// session advances one round: an acceptable offer delegates to the inner
// scheme at the agreed amount, a low one comes back invalid with the
// server's counter-offer in the response extensions.
func (f *NegotiatedFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	innerPayload, innerRequirements, resp := f.rewrite(payload, requirements)
	if resp != nil {
		return *resp, nil
	}
	return f.inner.Verify(ctx, innerPayload, innerRequirements)
}

// Settle checks the negotiation session and delegates to the inner scheme
// at the agreed amount.
func (f *NegotiatedFacilitator) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	innerPayload, innerRequirements, resp := f.rewrite(payload, requirements)
	if resp != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: resp.InvalidReason,
			Network:     requirements.Network,
		}, nil
	}
	return f.inner.Settle(ctx, innerPayload, innerRequirements)
}

// rewrite runs the payload's offer as a proposal and produces the payload
// and requirements the inner scheme sees. A non-nil response means the
// payment does not proceed: either a terminal rejection or a counter-offer
// the client may answer in the next round.
func (f *NegotiatedFacilitator) rewrite(
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.PaymentPayload, x402.PaymentRequirements, *x402.VerifyResponse) {
	reject := func(reason string) (x402.PaymentPayload, x402.PaymentRequirements, *x402.VerifyResponse) {
		return payload, requirements, &x402.VerifyResponse{IsValid: false, InvalidReason: reason}
	}

	if payload.Accepted.Scheme != SchemeNegotiated || requirements.Scheme != SchemeNegotiated {
		return reject(x402.ErrCodeUnsupportedScheme)
	}

	envelope, err := envelopeFromPayload(payload.Payload)
	if err != nil {
		return reject(ErrInvalidPayload)
	}

	amount, err := strconv.ParseUint(envelope.Amount, 10, 64)
	if err != nil {
		return reject(ErrInvalidPayload)
	}

	// An open session advances one iteration; an accepted session replays
	// idempotently at or above the agreed amount.
	outcome, err := f.negotiator.Propose(Proposal{SessionID: envelope.SessionID, Amount: amount})
	if err != nil {
		return reject(ErrUnknownSession)
	}

	switch outcome.Status {
	case StatusAccepted:
	case StatusCounter:
		return payload, requirements, &x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrCounterOffer,
			Extensions: map[string]interface{}{
				ExtensionNegotiation: map[string]interface{}{
					"status":              string(StatusCounter),
					"sessionId":           envelope.SessionID,
					"counterAmount":       strconv.FormatUint(outcome.CounterAmount, 10),
					"remainingIterations": outcome.RemainingIterations,
				},
			},
		}
	default:
		return reject(ErrNotAccepted)
	}

	innerPayload := payload
	innerPayload.Accepted.Scheme = f.inner.Scheme()
	innerPayload.Accepted.Amount = envelope.Amount

	innerRequirements := requirements
	innerRequirements.Scheme = f.inner.Scheme()
	innerRequirements.Amount = strconv.FormatUint(outcome.AgreedAmount, 10)

	return innerPayload, innerRequirements, nil
}
