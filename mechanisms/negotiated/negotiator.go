// Package negotiated implements the negotiated payment scheme: instead of a
// fixed price, the server opens with a base amount and the client haggles
// within a bounded number of iterations. Accepted sessions settle through a
// wrapped inner scheme at the agreed amount.
package negotiated

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SchemeNegotiated is the scheme identifier.
const SchemeNegotiated = "negotiated"

// ExtensionNegotiation keys the negotiation state a counter-offer carries
// back to the client in the 402 body's extensions.
const ExtensionNegotiation = "negotiation"

// Stable error tags
const (
	ErrInvalidPayload   = "invalid_negotiated_payload"
	ErrUnknownSession   = "negotiated_unknown_session"
	ErrNotAccepted      = "negotiated_offer_not_accepted"
	ErrCounterOffer     = "negotiated_counter_offer"
	ErrSessionRejected  = "negotiated_session_rejected"
	ErrSessionExhausted = "negotiated_iterations_exhausted"
)

// OutcomeStatus is the server's answer to a proposal.
type OutcomeStatus string

const (
	StatusAccepted OutcomeStatus = "accepted"
	StatusCounter  OutcomeStatus = "counter"
	StatusRejected OutcomeStatus = "rejected"
)

// Terms are the server-side bounds of a negotiation.
type Terms struct {
	// BaseAmount is the opening ask, in the asset's smallest unit.
	BaseAmount uint64
	// MinAcceptable is the floor; offers below it after the final iteration
	// are rejected. It is never disclosed to the client.
	MinAcceptable uint64
	// MaxIterations bounds how many counter-offers the server will make.
	MaxIterations int
}

// Proposal is one client offer inside a session.
type Proposal struct {
	SessionID string
	Amount    uint64
}

// Outcome is the server's response to a proposal.
type Outcome struct {
	SessionID           string
	Status              OutcomeStatus
	AgreedAmount        uint64
	CounterAmount       uint64
	RemainingIterations int
}

// PricingStrategy decides how the server concedes across iterations.
type PricingStrategy interface {
	// Acceptable returns the lowest offer the server takes at the given
	// iteration, 1-based.
	Acceptable(terms Terms, iteration int) uint64
}

// LinearConcession walks the acceptable amount down from BaseAmount to
// MinAcceptable in equal steps, reaching the floor on the last iteration.
type LinearConcession struct{}

// Acceptable implements PricingStrategy.
func (LinearConcession) Acceptable(terms Terms, iteration int) uint64 {
	if iteration >= terms.MaxIterations {
		return terms.MinAcceptable
	}
	if terms.MaxIterations <= 1 {
		return terms.MinAcceptable
	}
	span := terms.BaseAmount - terms.MinAcceptable
	step := span / uint64(terms.MaxIterations-1)
	return terms.BaseAmount - step*uint64(iteration-1)
}

type session struct {
	terms     Terms
	iteration int
	agreed    uint64
	status    OutcomeStatus
}

// Negotiator runs negotiation sessions. It is safe for concurrent use.
type Negotiator struct {
	strategy PricingStrategy

	mu       sync.Mutex
	sessions map[string]*session
}

// NewNegotiator creates a Negotiator with the given strategy, defaulting to
// linear concession.
func NewNegotiator(strategy PricingStrategy) *Negotiator {
	if strategy == nil {
		strategy = LinearConcession{}
	}
	return &Negotiator{
		strategy: strategy,
		sessions: make(map[string]*session),
	}
}

// Open starts a session under the given terms and returns its id.
func (n *Negotiator) Open(terms Terms) (string, error) {
	if terms.MinAcceptable > terms.BaseAmount {
		return "", fmt.Errorf("minAcceptable %d exceeds baseAmount %d", terms.MinAcceptable, terms.BaseAmount)
	}
	if terms.MaxIterations <= 0 {
		return "", fmt.Errorf("maxIterations must be positive")
	}

	id := uuid.New().String()
	n.mu.Lock()
	n.sessions[id] = &session{terms: terms}
	n.mu.Unlock()
	return id, nil
}

// Propose submits a client offer and advances the session.
func (n *Negotiator) Propose(proposal Proposal) (Outcome, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	s, ok := n.sessions[proposal.SessionID]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown session %s", proposal.SessionID)
	}

	switch s.status {
	case StatusAccepted:
		// Idempotent: re-proposing at or above the agreed amount stays accepted.
		if proposal.Amount >= s.agreed {
			return n.accepted(proposal.SessionID, s, proposal.Amount), nil
		}
		return Outcome{SessionID: proposal.SessionID, Status: StatusRejected}, nil
	case StatusRejected:
		return Outcome{SessionID: proposal.SessionID, Status: StatusRejected}, nil
	}

	s.iteration++
	acceptable := n.strategy.Acceptable(s.terms, s.iteration)

	if proposal.Amount >= acceptable {
		return n.accepted(proposal.SessionID, s, proposal.Amount), nil
	}

	if s.iteration >= s.terms.MaxIterations {
		s.status = StatusRejected
		return Outcome{SessionID: proposal.SessionID, Status: StatusRejected}, nil
	}

	counter := n.strategy.Acceptable(s.terms, s.iteration+1)
	return Outcome{
		SessionID:           proposal.SessionID,
		Status:              StatusCounter,
		CounterAmount:       counter,
		RemainingIterations: s.terms.MaxIterations - s.iteration,
	}, nil
}

// Agreed returns the settled amount of an accepted session.
func (n *Negotiator) Agreed(sessionID string) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	s, ok := n.sessions[sessionID]
	if !ok || s.status != StatusAccepted {
		return 0, false
	}
	return s.agreed, true
}

func (n *Negotiator) accepted(id string, s *session, amount uint64) Outcome {
	s.status = StatusAccepted
	if s.agreed == 0 || amount < s.agreed {
		s.agreed = amount
	}
	return Outcome{
		SessionID:    id,
		Status:       StatusAccepted,
		AgreedAmount: s.agreed,
	}
}
