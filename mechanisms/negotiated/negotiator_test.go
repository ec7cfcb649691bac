package negotiated

import (
	"context"
	"testing"

	x402 "github.com/x402labs/x402-go"
)

func TestLinearConcession(t *testing.T) {
	terms := Terms{BaseAmount: 1000, MinAcceptable: 600, MaxIterations: 5}
	strategy := LinearConcession{}

	want := []uint64{1000, 900, 800, 700, 600}
	for i, expected := range want {
		got := strategy.Acceptable(terms, i+1)
		if got != expected {
			t.Errorf("iteration %d: expected %d, got %d", i+1, expected, got)
		}
	}

	if got := strategy.Acceptable(terms, 99); got != 600 {
		t.Errorf("past budget: expected floor 600, got %d", got)
	}
}

func TestNegotiatorSession(t *testing.T) {
	n := NewNegotiator(nil)
	terms := Terms{BaseAmount: 1000, MinAcceptable: 600, MaxIterations: 5}

	t.Run("immediate accept at base", func(t *testing.T) {
		id, err := n.Open(terms)
		if err != nil {
			t.Fatalf("failed to open session: %v", err)
		}
		outcome, err := n.Propose(Proposal{SessionID: id, Amount: 1000})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if outcome.Status != StatusAccepted || outcome.AgreedAmount != 1000 {
			t.Fatalf("expected accepted at 1000, got %+v", outcome)
		}
		if agreed, ok := n.Agreed(id); !ok || agreed != 1000 {
			t.Errorf("expected agreed 1000, got %d ok=%v", agreed, ok)
		}
	})

	t.Run("counter then accept", func(t *testing.T) {
		id, _ := n.Open(terms)

		outcome, err := n.Propose(Proposal{SessionID: id, Amount: 500})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if outcome.Status != StatusCounter {
			t.Fatalf("expected counter, got %+v", outcome)
		}
		if outcome.CounterAmount != 900 {
			t.Errorf("expected counter 900, got %d", outcome.CounterAmount)
		}
		if outcome.RemainingIterations != 4 {
			t.Errorf("expected 4 remaining, got %d", outcome.RemainingIterations)
		}

		outcome, _ = n.Propose(Proposal{SessionID: id, Amount: 900})
		if outcome.Status != StatusAccepted || outcome.AgreedAmount != 900 {
			t.Fatalf("expected accepted at 900, got %+v", outcome)
		}
	})

	t.Run("lowball until rejected", func(t *testing.T) {
		id, _ := n.Open(terms)
		var outcome Outcome
		for i := 0; i < 5; i++ {
			outcome, _ = n.Propose(Proposal{SessionID: id, Amount: 1})
		}
		if outcome.Status != StatusRejected {
			t.Fatalf("expected rejected after budget, got %+v", outcome)
		}
		if _, ok := n.Agreed(id); ok {
			t.Error("rejected session must not report an agreed amount")
		}

		// Rejection is terminal.
		outcome, _ = n.Propose(Proposal{SessionID: id, Amount: 1000})
		if outcome.Status != StatusRejected {
			t.Fatalf("expected rejection to stick, got %+v", outcome)
		}
	})

	t.Run("floor accepted on final iteration", func(t *testing.T) {
		id, _ := n.Open(terms)
		var outcome Outcome
		for i := 0; i < 4; i++ {
			outcome, _ = n.Propose(Proposal{SessionID: id, Amount: 1})
		}
		outcome, _ = n.Propose(Proposal{SessionID: id, Amount: 600})
		if outcome.Status != StatusAccepted || outcome.AgreedAmount != 600 {
			t.Fatalf("expected floor accepted, got %+v", outcome)
		}
	})

	t.Run("unknown session errors", func(t *testing.T) {
		if _, err := n.Propose(Proposal{SessionID: "nope", Amount: 1000}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid terms rejected", func(t *testing.T) {
		if _, err := n.Open(Terms{BaseAmount: 100, MinAcceptable: 200, MaxIterations: 3}); err == nil {
			t.Fatal("expected error for floor above base")
		}
		if _, err := n.Open(Terms{BaseAmount: 100, MinAcceptable: 50, MaxIterations: 0}); err == nil {
			t.Fatal("expected error for zero iterations")
		}
	})
}

// stubFacilitator records what the inner scheme saw
type stubFacilitator struct {
	scheme      string
	sawAmount   string
	sawScheme   string
	verifyValid bool
}

func (s *stubFacilitator) Scheme() string     { return s.scheme }
func (s *stubFacilitator) CaipFamily() string { return "eip155:*" }

func (s *stubFacilitator) GetExtra(network x402.Network) map[string]interface{} { return nil }
func (s *stubFacilitator) GetSigners(network x402.Network) []string             { return nil }

func (s *stubFacilitator) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (x402.VerifyResponse, error) {
	s.sawAmount = requirements.Amount
	s.sawScheme = requirements.Scheme
	return x402.VerifyResponse{IsValid: s.verifyValid, Payer: "0xpayer"}, nil
}

func (s *stubFacilitator) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (x402.SettleResponse, error) {
	s.sawAmount = requirements.Amount
	s.sawScheme = requirements.Scheme
	return x402.SettleResponse{Success: s.verifyValid, Network: requirements.Network}, nil
}

func negotiatedPayload(sessionID, amount string) x402.PaymentPayload {
	return x402.PaymentPayload{
		X402Version: 2,
		Payload: map[string]interface{}{
			"negotiation": map[string]interface{}{
				"sessionId": sessionID,
				"amount":    amount,
			},
		},
		Accepted: x402.PaymentRequirements{
			Scheme:  SchemeNegotiated,
			Network: "eip155:84532",
		},
	}
}

func TestNegotiatedFacilitator(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Negotiator, *stubFacilitator, *NegotiatedFacilitator, string) {
		t.Helper()
		n := NewNegotiator(nil)
		inner := &stubFacilitator{scheme: "exact", verifyValid: true}
		f := NewNegotiatedFacilitator(inner, n)
		id, err := n.Open(Terms{BaseAmount: 1000, MinAcceptable: 600, MaxIterations: 5})
		if err != nil {
			t.Fatalf("failed to open session: %v", err)
		}
		return n, inner, f, id
	}

	requirements := x402.PaymentRequirements{
		Scheme:  SchemeNegotiated,
		Network: "eip155:84532",
		Amount:  "1000",
	}

	t.Run("accepted session delegates at agreed amount", func(t *testing.T) {
		n, inner, f, id := setup(t)
		if _, err := n.Propose(Proposal{SessionID: id, Amount: 900}); err != nil {
			t.Fatalf("propose failed: %v", err)
		}

		resp, err := f.Verify(ctx, negotiatedPayload(id, "900"), requirements)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !resp.IsValid {
			t.Fatalf("expected valid, got reason: %s", resp.InvalidReason)
		}
		if inner.sawAmount != "900" || inner.sawScheme != "exact" {
			t.Errorf("inner scheme saw amount=%s scheme=%s", inner.sawAmount, inner.sawScheme)
		}
	})

	t.Run("low offer on open session gets counter-offer", func(t *testing.T) {
		_, inner, f, id := setup(t)
		resp, err := f.Verify(ctx, negotiatedPayload(id, "500"), requirements)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if resp.IsValid || resp.InvalidReason != ErrCounterOffer {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrCounterOffer, resp.IsValid, resp.InvalidReason)
		}
		negotiation, ok := resp.Extensions[ExtensionNegotiation].(map[string]interface{})
		if !ok {
			t.Fatalf("expected negotiation extension, got %+v", resp.Extensions)
		}
		if negotiation["counterAmount"] != "900" {
			t.Errorf("expected counter 900, got %v", negotiation["counterAmount"])
		}
		if negotiation["remainingIterations"] != 4 {
			t.Errorf("expected 4 remaining, got %v", negotiation["remainingIterations"])
		}
		if inner.sawAmount != "" {
			t.Errorf("inner scheme must not run during a counter round, saw %s", inner.sawAmount)
		}
	})

	t.Run("unknown session rejected", func(t *testing.T) {
		_, _, f, _ := setup(t)
		resp, _ := f.Verify(ctx, negotiatedPayload("no-such-session", "1000"), requirements)
		if resp.IsValid || resp.InvalidReason != ErrUnknownSession {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrUnknownSession, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("payment below agreed amount blocked", func(t *testing.T) {
		n, _, f, id := setup(t)
		n.Propose(Proposal{SessionID: id, Amount: 900})
		resp, _ := f.Verify(ctx, negotiatedPayload(id, "800"), requirements)
		if resp.IsValid || resp.InvalidReason != ErrNotAccepted {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrNotAccepted, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("settle delegates", func(t *testing.T) {
		n, inner, f, id := setup(t)
		n.Propose(Proposal{SessionID: id, Amount: 1000})
		resp, err := f.Settle(ctx, negotiatedPayload(id, "1000"), requirements)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !resp.Success {
			t.Fatalf("expected success, got reason: %s", resp.ErrorReason)
		}
		if inner.sawAmount != "1000" {
			t.Errorf("inner scheme saw amount %s", inner.sawAmount)
		}
	})
}

// TestNegotiatedCounterOfferRound walks a full haggle over the wire path:
// a lowball offer comes back as a counter, meeting the counter settles at
// the agreed amount through the inner scheme.
func TestNegotiatedCounterOfferRound(t *testing.T) {
	ctx := context.Background()

	n := NewNegotiator(nil)
	inner := &stubFacilitator{scheme: "exact", verifyValid: true}
	f := NewNegotiatedFacilitator(inner, n)

	id, err := n.Open(Terms{BaseAmount: 100000, MinAcceptable: 50000, MaxIterations: 3})
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}

	requirements := x402.PaymentRequirements{
		Scheme:  SchemeNegotiated,
		Network: "eip155:84532",
		Amount:  "100000",
	}

	resp, err := f.Verify(ctx, negotiatedPayload(id, "30000"), requirements)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if resp.IsValid {
		t.Fatal("lowball offer must not verify")
	}
	if resp.InvalidReason != ErrCounterOffer {
		t.Fatalf("expected %s, got %s", ErrCounterOffer, resp.InvalidReason)
	}

	negotiation, ok := resp.Extensions[ExtensionNegotiation].(map[string]interface{})
	if !ok {
		t.Fatalf("expected negotiation extension, got %+v", resp.Extensions)
	}
	if negotiation["sessionId"] != id {
		t.Errorf("expected session %s, got %v", id, negotiation["sessionId"])
	}
	counterStr, _ := negotiation["counterAmount"].(string)
	if counterStr != "75000" {
		t.Errorf("expected counter 75000, got %q", counterStr)
	}
	if negotiation["remainingIterations"] != 2 {
		t.Errorf("expected 2 remaining, got %v", negotiation["remainingIterations"])
	}

	// Meeting the counter closes the deal.
	resp, err = f.Verify(ctx, negotiatedPayload(id, counterStr), requirements)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !resp.IsValid {
		t.Fatalf("expected valid after meeting counter, got reason: %s", resp.InvalidReason)
	}
	if inner.sawAmount != "75000" {
		t.Errorf("expected inner scheme to see agreed 75000, got %s", inner.sawAmount)
	}

	settlement, err := f.Settle(ctx, negotiatedPayload(id, "75000"), requirements)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !settlement.Success {
		t.Fatalf("expected settlement success, got reason: %s", settlement.ErrorReason)
	}
}

// stubClient records the requirements the inner scheme client signed for.
type stubClient struct {
	scheme    string
	sawAmount string
	sawScheme string
}

func (s *stubClient) Scheme() string { return s.scheme }

func (s *stubClient) CreatePaymentPayload(ctx context.Context, version int, requirements x402.PaymentRequirements) (x402.PartialPaymentPayload, error) {
	s.sawAmount = requirements.Amount
	s.sawScheme = requirements.Scheme
	return x402.PartialPaymentPayload{
		X402Version: version,
		Payload:     map[string]interface{}{"signature": "0xsigned"},
	}, nil
}

func TestNegotiatedClient(t *testing.T) {
	ctx := context.Background()

	requirementsWithSession := func(extra map[string]interface{}) x402.PaymentRequirements {
		return x402.PaymentRequirements{
			Scheme:  SchemeNegotiated,
			Network: "eip155:84532",
			Amount:  "100000",
			Extra:   extra,
		}
	}

	t.Run("offers within budget and attaches envelope", func(t *testing.T) {
		inner := &stubClient{scheme: "exact"}
		c := NewNegotiatedClient(inner, BudgetBid{Max: 60000})

		partial, err := c.CreatePaymentPayload(ctx, 2, requirementsWithSession(map[string]interface{}{
			"sessionId":  "session-1",
			"baseAmount": "100000",
		}))
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if inner.sawScheme != "exact" || inner.sawAmount != "60000" {
			t.Errorf("inner client saw scheme=%s amount=%s", inner.sawScheme, inner.sawAmount)
		}
		envelope, ok := partial.Payload["negotiation"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected negotiation envelope, got %+v", partial.Payload)
		}
		if envelope["sessionId"] != "session-1" || envelope["amount"] != "60000" {
			t.Errorf("unexpected envelope %+v", envelope)
		}
	})

	t.Run("meets counter-offer on re-challenge", func(t *testing.T) {
		inner := &stubClient{scheme: "exact"}
		c := NewNegotiatedClient(inner, BudgetBid{Max: 80000})

		partial, err := c.CreatePaymentPayload(ctx, 2, requirementsWithSession(map[string]interface{}{
			"sessionId":           "session-2",
			"baseAmount":          "100000",
			"counterAmount":       "75000",
			"remainingIterations": 2,
		}))
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if inner.sawAmount != "75000" {
			t.Errorf("expected offer at counter 75000, got %s", inner.sawAmount)
		}
		if envelope := partial.Payload["negotiation"].(map[string]interface{}); envelope["amount"] != "75000" {
			t.Errorf("unexpected envelope %+v", envelope)
		}
	})

	t.Run("defaults to meeting the ask", func(t *testing.T) {
		inner := &stubClient{scheme: "exact"}
		c := NewNegotiatedClient(inner, nil)

		if _, err := c.CreatePaymentPayload(ctx, 2, requirementsWithSession(map[string]interface{}{
			"sessionId": "session-3",
		})); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if inner.sawAmount != "100000" {
			t.Errorf("expected offer at base 100000, got %s", inner.sawAmount)
		}
	})

	t.Run("missing session errors", func(t *testing.T) {
		c := NewNegotiatedClient(&stubClient{scheme: "exact"}, nil)
		if _, err := c.CreatePaymentPayload(ctx, 2, requirementsWithSession(nil)); err == nil {
			t.Fatal("expected error")
		}
	})
}
