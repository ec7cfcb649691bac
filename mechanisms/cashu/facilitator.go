package cashu

import (
	"context"
	"fmt"
	"strconv"

	x402 "github.com/x402labs/x402-go"
)

// ExactCashuFacilitator implements the SchemeNetworkFacilitator interface
// for Cashu ecash. Verification checks proof structure, keyset membership,
// value, and spent state; settlement redeems the proofs at the mint, which
// is what actually consumes them.
type ExactCashuFacilitator struct {
	mint CashuMint
}

// NewExactCashuFacilitator creates a new ExactCashuFacilitator
func NewExactCashuFacilitator(mint CashuMint) *ExactCashuFacilitator {
	return &ExactCashuFacilitator{
		mint: mint,
	}
}

// Scheme returns the scheme identifier
func (f *ExactCashuFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the CAIP family pattern for Cashu networks
func (f *ExactCashuFacilitator) CaipFamily() string {
	return "cashu:*"
}

// GetExtra advertises the mint clients must hold proofs from.
func (f *ExactCashuFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	return map[string]interface{}{
		"mint": f.mint.URL(),
	}
}

// GetSigners returns nothing; ecash is bearer, nobody signs.
func (f *ExactCashuFacilitator) GetSigners(network x402.Network) []string {
	return nil
}

// Verify verifies a Cashu payment payload against requirements
func (f *ExactCashuFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 2 {
		return invalid("v2 only supports x402 version 2"), nil
	}

	if payload.Accepted.Scheme != SchemeExact || requirements.Scheme != SchemeExact {
		return invalid(x402.ErrCodeUnsupportedScheme), nil
	}

	if payload.Accepted.Network != requirements.Network {
		return invalid("network_mismatch"), nil
	}

	if !IsValidNetwork(string(requirements.Network)) {
		return invalid(ErrInvalidNetwork), nil
	}

	cashuPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return invalid(ErrInvalidPayload), nil
	}

	if cashuPayload.Mint != f.mint.URL() {
		return invalid(ErrUnknownKeyset), nil
	}

	seen := make(map[string]bool, len(cashuPayload.Proofs))
	for _, proof := range cashuPayload.Proofs {
		if err := proof.Validate(); err != nil {
			return invalid(ErrInvalidProof), nil
		}
		if seen[proof.Secret] {
			return invalid(ErrDuplicateProof), nil
		}
		seen[proof.Secret] = true
	}

	keysetIDs, err := f.mint.KeysetIDs(ctx)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to fetch keysets: %w", err)
	}
	known := make(map[string]bool, len(keysetIDs))
	for _, id := range keysetIDs {
		known[id] = true
	}
	for _, proof := range cashuPayload.Proofs {
		if !known[proof.ID] {
			return invalid(ErrUnknownKeyset), nil
		}
	}

	requiredAmount, err := strconv.ParseUint(requirements.Amount, 10, 64)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("invalid required amount: %s", requirements.Amount)
	}
	if cashuPayload.TotalAmount() < requiredAmount {
		return invalid(ErrInsufficientValue), nil
	}

	secrets := make([]string, 0, len(cashuPayload.Proofs))
	for _, proof := range cashuPayload.Proofs {
		secrets = append(secrets, proof.Secret)
	}
	spent, err := f.mint.CheckSpent(ctx, secrets)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to check spent state: %w", err)
	}
	for _, isSpent := range spent {
		if isSpent {
			return invalid(ErrProofsSpent), nil
		}
	}

	return x402.VerifyResponse{
		IsValid: true,
	}, nil
}

// Settle redeems the proofs at the mint. Redemption is the spend; a proof
// that redeems cannot be double spent afterwards.
func (f *ExactCashuFacilitator) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	verifyResp, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	networkStr := string(requirements.Network)
	if !verifyResp.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResp.InvalidReason,
			Network:     x402.Network(networkStr),
		}, nil
	}

	cashuPayload, _ := PayloadFromMap(payload.Payload)

	reference, err := f.mint.Redeem(ctx, cashuPayload.Proofs)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrRedeemFailed,
			Network:     x402.Network(networkStr),
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: reference,
		Network:     x402.Network(networkStr),
	}, nil
}

func invalid(reason string) x402.VerifyResponse {
	return x402.VerifyResponse{
		IsValid:       false,
		InvalidReason: reason,
	}
}
