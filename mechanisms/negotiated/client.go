package negotiated

import (
	"context"
	"fmt"
	"strconv"

	x402 "github.com/x402labs/x402-go"
)

// BidStrategy decides the client's offer for a negotiation round.
type BidStrategy interface {
	// Bid returns the amount to offer given the server's opening ask, the
	// latest counter-offer (zero when none), and the remaining iteration
	// budget the server disclosed.
	Bid(baseAmount, counterAmount uint64, remainingIterations int) uint64
}

// AcceptAsk meets the server's ask as stated: the counter-offer when one is
// on the table, otherwise the base amount.
type AcceptAsk struct{}

// Bid implements BidStrategy.
func (AcceptAsk) Bid(baseAmount, counterAmount uint64, _ int) uint64 {
	if counterAmount > 0 {
		return counterAmount
	}
	return baseAmount
}

// BudgetBid never offers more than Max: it takes a counter or the base
// amount when they fit the budget and otherwise holds at Max.
type BudgetBid struct {
	Max uint64
}

// Bid implements BidStrategy.
func (b BudgetBid) Bid(baseAmount, counterAmount uint64, _ int) uint64 {
	if counterAmount > 0 && counterAmount <= b.Max {
		return counterAmount
	}
	if baseAmount <= b.Max {
		return baseAmount
	}
	return b.Max
}

// NegotiatedClient implements the SchemeNetworkClient interface on top of an
// inner scheme client. It reads the session the server opened from the
// requirements extra, picks an offer through its strategy, and signs the
// inner payload at that amount with the negotiation envelope attached.
type NegotiatedClient struct {
	inner    x402.SchemeNetworkClient
	strategy BidStrategy
}

// NewNegotiatedClient creates a NegotiatedClient, defaulting to meeting the
// server's ask when no strategy is given.
func NewNegotiatedClient(inner x402.SchemeNetworkClient, strategy BidStrategy) *NegotiatedClient {
	if strategy == nil {
		strategy = AcceptAsk{}
	}
	return &NegotiatedClient{
		inner:    inner,
		strategy: strategy,
	}
}

// Scheme returns the scheme identifier
func (c *NegotiatedClient) Scheme() string {
	return SchemeNegotiated
}

// CreatePaymentPayload offers an amount for the session named in the
// requirements extra and creates the inner payment payload at that amount.
func (c *NegotiatedClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	sessionID, _ := requirements.Extra["sessionId"].(string)
	if sessionID == "" {
		return x402.PartialPaymentPayload{}, fmt.Errorf("missing sessionId in requirements extra")
	}

	baseStr, _ := requirements.Extra["baseAmount"].(string)
	if baseStr == "" {
		baseStr = requirements.Amount
	}
	baseAmount, err := strconv.ParseUint(baseStr, 10, 64)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid base amount %q: %w", baseStr, err)
	}

	// A re-challenge after a counter round carries the server's counter and
	// remaining budget alongside the session.
	var counterAmount uint64
	if counterStr, ok := requirements.Extra["counterAmount"].(string); ok {
		counterAmount, _ = strconv.ParseUint(counterStr, 10, 64)
	}
	remaining := 0
	switch v := requirements.Extra["remainingIterations"].(type) {
	case int:
		remaining = v
	case float64:
		remaining = int(v)
	}

	offer := c.strategy.Bid(baseAmount, counterAmount, remaining)
	offerStr := strconv.FormatUint(offer, 10)

	innerRequirements := requirements
	innerRequirements.Scheme = c.inner.Scheme()
	innerRequirements.Amount = offerStr

	partial, err := c.inner.CreatePaymentPayload(ctx, version, innerRequirements)
	if err != nil {
		return partial, err
	}

	if partial.Payload == nil {
		partial.Payload = make(map[string]interface{})
	}
	partial.Payload["negotiation"] = map[string]interface{}{
		"sessionId": sessionID,
		"amount":    offerStr,
	}
	return partial, nil
}
