package near

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	x402 "github.com/x402labs/x402-go"
)

// ExactNearClient implements the SchemeNetworkClient interface for the exact
// scheme on NEAR. It builds an ft_transfer delegate action, signs it, and
// leaves submission to the facilitator's relayer.
type ExactNearClient struct {
	signer ClientNearSigner
}

// NewExactNearClient creates a new ExactNearClient
func NewExactNearClient(signer ClientNearSigner) *ExactNearClient {
	return &ExactNearClient{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (c *ExactNearClient) Scheme() string {
	return SchemeExact
}

// CreatePaymentPayload creates a signed payment payload for the given requirements
func (c *ExactNearClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 2 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("near exact scheme only supports x402 version 2, got %d", version)
	}

	networkStr := string(requirements.Network)
	config, ok := GetNetworkConfig(networkStr)
	if !ok {
		return x402.PartialPaymentPayload{}, fmt.Errorf("unsupported network: %s", networkStr)
	}

	contractID := requirements.Asset
	if contractID == "" {
		contractID = config.DefaultAsset.ContractID
	}

	if _, ok := new(big.Int).SetString(requirements.Amount, 10); !ok {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount: %s", requirements.Amount)
	}

	args, err := json.Marshal(ftTransferArgs{
		ReceiverID: requirements.PayTo,
		Amount:     requirements.Amount,
	})
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to marshal ft_transfer args: %w", err)
	}

	nonce, err := c.signer.AccessKeyNonce(ctx)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to fetch access key nonce: %w", err)
	}

	maxBlockHeight, err := c.maxBlockHeight(ctx, requirements)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	call := Action{Enum: ActionFunctionCall}
	call.FunctionCall = FunctionCall{
		MethodName: MethodFtTransfer,
		Args:       args,
		Gas:        30_000_000_000_000,
		Deposit:    *big.NewInt(OneYocto),
	}

	delegate := DelegateAction{
		SenderID:       c.signer.AccountID(),
		ReceiverID:     contractID,
		Actions:        []Action{call},
		Nonce:          nonce + 1,
		MaxBlockHeight: maxBlockHeight,
	}
	delegate.PublicKey.KeyType = 0
	copy(delegate.PublicKey.Data[:], c.signer.PublicKey())

	hash, err := delegate.NEP461Hash()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to hash delegate action: %w", err)
	}
	signature, err := c.signer.Sign(ctx, hash)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign delegate action: %w", err)
	}
	if len(signature) != 64 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("unexpected signature length %d", len(signature))
	}

	signed := &SignedDelegateAction{DelegateAction: delegate}
	signed.Signature.KeyType = 0
	copy(signed.Signature.Data[:], signature)

	payload, err := Encode(signed)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	return x402.PartialPaymentPayload{
		X402Version: 2,
		Payload:     payload.ToMap(),
	}, nil
}

// maxBlockHeight derives the delegate action's validity window. NEAR produces
// roughly one block per second, so the requirements timeout doubles as a
// block count.
func (c *ExactNearClient) maxBlockHeight(ctx context.Context, requirements x402.PaymentRequirements) (uint64, error) {
	height, err := c.signer.BlockHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block height: %w", err)
	}
	return height + uint64(maxTimeout(requirements)), nil
}

func maxTimeout(requirements x402.PaymentRequirements) int {
	if requirements.MaxTimeoutSeconds > 0 {
		return requirements.MaxTimeoutSeconds
	}
	return 300
}
