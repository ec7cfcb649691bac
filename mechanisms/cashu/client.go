package cashu

import (
	"context"
	"fmt"
	"strconv"

	x402 "github.com/x402labs/x402-go"
)

// ExactCashuClient implements the SchemeNetworkClient interface for Cashu
// ecash. It selects proofs from the wallet covering the required amount and
// hands them over; the transfer is the handover.
type ExactCashuClient struct {
	wallet ClientCashuWallet
}

// NewExactCashuClient creates a new ExactCashuClient
func NewExactCashuClient(wallet ClientCashuWallet) *ExactCashuClient {
	return &ExactCashuClient{
		wallet: wallet,
	}
}

// Scheme returns the scheme identifier
func (c *ExactCashuClient) Scheme() string {
	return SchemeExact
}

// CreatePaymentPayload selects proofs and creates the payment payload.
func (c *ExactCashuClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 2 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("cashu exact scheme only supports x402 version 2, got %d", version)
	}

	if requirements.Extra != nil {
		if mint, ok := requirements.Extra["mint"].(string); ok && mint != "" && mint != c.wallet.Mint() {
			return x402.PartialPaymentPayload{}, fmt.Errorf("wallet mint %s does not match required mint %s", c.wallet.Mint(), mint)
		}
	}

	amount, err := strconv.ParseUint(requirements.Amount, 10, 64)
	if err != nil || amount == 0 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount: %s", requirements.Amount)
	}

	proofs, err := c.wallet.SelectProofs(ctx, amount)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to select proofs: %w", err)
	}

	payload := &ExactCashuPayload{
		Mint:   c.wallet.Mint(),
		Proofs: proofs,
	}
	if payload.TotalAmount() < amount {
		return x402.PartialPaymentPayload{}, fmt.Errorf("wallet returned %d sats for a %d sat payment", payload.TotalAmount(), amount)
	}

	return x402.PartialPaymentPayload{
		X402Version: 2,
		Payload:     payload.ToMap(),
	}, nil
}
