package cashu

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Proof is a single ecash note: the mint's blind signature C over a secret,
// under the keyset identified by ID, worth Amount sats.
type Proof struct {
	Amount uint64 `json:"amount"`
	ID     string `json:"id"`
	Secret string `json:"secret"`
	C      string `json:"C"`
}

// Validate checks structural well-formedness: a nonzero amount, a secret,
// and C being a valid compressed secp256k1 point.
func (p *Proof) Validate() error {
	if p.Amount == 0 {
		return fmt.Errorf("proof amount is zero")
	}
	if p.ID == "" {
		return fmt.Errorf("proof has no keyset id")
	}
	if p.Secret == "" {
		return fmt.Errorf("proof has no secret")
	}

	cBytes, err := hex.DecodeString(p.C)
	if err != nil {
		return fmt.Errorf("proof C is not hex: %w", err)
	}
	if _, err := secp256k1.ParsePubKey(cBytes); err != nil {
		return fmt.Errorf("proof C is not a curve point: %w", err)
	}
	return nil
}

// ExactCashuPayload is the scheme payload carried in PaymentPayload.Payload.
type ExactCashuPayload struct {
	Mint   string  `json:"mint"`
	Proofs []Proof `json:"proofs"`
}

// ToMap converts the payload to a map for JSON marshaling.
func (p *ExactCashuPayload) ToMap() map[string]interface{} {
	proofs := make([]interface{}, 0, len(p.Proofs))
	for _, proof := range p.Proofs {
		proofs = append(proofs, map[string]interface{}{
			"amount": float64(proof.Amount),
			"id":     proof.ID,
			"secret": proof.Secret,
			"C":      proof.C,
		})
	}
	return map[string]interface{}{
		"mint":   p.Mint,
		"proofs": proofs,
	}
}

// PayloadFromMap creates an ExactCashuPayload from a map.
func PayloadFromMap(data map[string]interface{}) (*ExactCashuPayload, error) {
	payload := &ExactCashuPayload{}

	if mint, ok := data["mint"].(string); ok && mint != "" {
		payload.Mint = mint
	} else {
		return nil, fmt.Errorf("missing or invalid mint field")
	}

	rawProofs, ok := data["proofs"].([]interface{})
	if !ok || len(rawProofs) == 0 {
		return nil, fmt.Errorf("missing or empty proofs field")
	}

	for i, raw := range rawProofs {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("proof %d is not an object", i)
		}
		proof := Proof{}
		if amount, ok := m["amount"].(float64); ok {
			proof.Amount = uint64(amount)
		}
		if id, ok := m["id"].(string); ok {
			proof.ID = id
		}
		if secret, ok := m["secret"].(string); ok {
			proof.Secret = secret
		}
		if c, ok := m["C"].(string); ok {
			proof.C = c
		}
		payload.Proofs = append(payload.Proofs, proof)
	}

	return payload, nil
}

// TotalAmount sums the proof values.
func (p *ExactCashuPayload) TotalAmount() uint64 {
	var total uint64
	for _, proof := range p.Proofs {
		total += proof.Amount
	}
	return total
}

// CashuMint abstracts the mint the facilitator trusts.
type CashuMint interface {
	// URL returns the mint's base URL, used to match payloads to the mint.
	URL() string

	// KeysetIDs returns the mint's active keyset ids.
	KeysetIDs(ctx context.Context) ([]string, error)

	// CheckSpent reports, per secret, whether the proof is already spent.
	CheckSpent(ctx context.Context, secrets []string) ([]bool, error)

	// Redeem swaps the proofs at the mint, consuming them, and returns a
	// redemption reference.
	Redeem(ctx context.Context, proofs []Proof) (string, error)
}

// ClientCashuWallet selects proofs from the payer's wallet.
type ClientCashuWallet interface {
	// Mint returns the URL of the mint the wallet holds proofs from.
	Mint() string

	// SelectProofs picks proofs totalling at least amount sats.
	SelectProofs(ctx context.Context, amount uint64) ([]Proof, error)
}
