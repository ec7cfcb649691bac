package hedera

import (
	"context"
	"fmt"
	"strconv"
	"time"

	hiero "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	x402 "github.com/x402labs/x402-go"
)

// ExactHederaClient implements the SchemeNetworkClient interface for the
// exact scheme on Hedera. It builds a transfer debiting the payer and
// crediting payTo, names the facilitator as the fee payer through the
// transaction id, signs, and freezes.
type ExactHederaClient struct {
	signer ClientHederaSigner
}

// NewExactHederaClient creates a new ExactHederaClient
func NewExactHederaClient(signer ClientHederaSigner) *ExactHederaClient {
	return &ExactHederaClient{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (c *ExactHederaClient) Scheme() string {
	return SchemeExact
}

// CreatePaymentPayload creates a signed payment payload for the given requirements
func (c *ExactHederaClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 2 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("hedera exact scheme only supports x402 version 2, got %d", version)
	}

	networkStr := string(requirements.Network)
	config, ok := GetNetworkConfig(networkStr)
	if !ok {
		return x402.PartialPaymentPayload{}, fmt.Errorf("unsupported network: %s", networkStr)
	}

	amount, err := strconv.ParseInt(requirements.Amount, 10, 64)
	if err != nil || amount <= 0 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount: %s", requirements.Amount)
	}

	payer, err := hiero.AccountIDFromString(c.signer.AccountID())
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid payer account: %w", err)
	}
	payTo, err := hiero.AccountIDFromString(requirements.PayTo)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid payTo account: %w", err)
	}

	feePayerStr, err := feePayerFromRequirements(requirements)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}
	feePayer, err := hiero.AccountIDFromString(feePayerStr)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid fee payer account: %w", err)
	}

	txn := hiero.NewTransferTransaction()

	asset := requirements.Asset
	if asset == "" {
		asset = config.DefaultAsset.TokenID
	}
	if asset == AssetHbar {
		txn.AddHbarTransfer(payer, hiero.HbarFromTinybar(-amount))
		txn.AddHbarTransfer(payTo, hiero.HbarFromTinybar(amount))
	} else {
		tokenID, err := hiero.TokenIDFromString(asset)
		if err != nil {
			return x402.PartialPaymentPayload{}, fmt.Errorf("invalid asset %q: %w", asset, err)
		}
		txn.AddTokenTransfer(tokenID, payer, -amount)
		txn.AddTokenTransfer(tokenID, payTo, amount)
	}

	validDuration := time.Duration(maxTimeout(requirements)) * time.Second
	if validDuration > 180*time.Second {
		// Network-imposed ceiling on transaction validity.
		validDuration = 180 * time.Second
	}

	txn.SetTransactionID(hiero.TransactionIDGenerate(feePayer))
	txn.SetNodeAccountIDs([]hiero.AccountID{{Account: 3}})
	txn.SetTransactionValidDuration(validDuration)

	frozen, err := txn.Freeze()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to freeze transaction: %w", err)
	}

	signed, err := c.signer.SignTransfer(ctx, frozen)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	payload, err := EncodeTransfer(signed)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	return x402.PartialPaymentPayload{
		X402Version: 2,
		Payload:     payload.ToMap(),
	}, nil
}

// feePayerFromRequirements pulls the facilitator's fee-payer account out of
// the requirements extra.
func feePayerFromRequirements(requirements x402.PaymentRequirements) (string, error) {
	if requirements.Extra != nil {
		if feePayer, ok := requirements.Extra["feePayer"].(string); ok && feePayer != "" {
			return feePayer, nil
		}
	}
	return "", fmt.Errorf("requirements carry no feePayer account")
}

func maxTimeout(requirements x402.PaymentRequirements) int {
	if requirements.MaxTimeoutSeconds > 0 {
		return requirements.MaxTimeoutSeconds
	}
	return 120
}
