package near

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	x402 "github.com/x402labs/x402-go"
)

// ExactNearFacilitator implements the SchemeNetworkFacilitator interface for
// the exact scheme on NEAR. It is the relayer: verification decodes the
// NEP-366 delegate action and checks the embedded ft_transfer; settlement
// wraps it in a relayer transaction and submits it, paying gas.
type ExactNearFacilitator struct {
	signer FacilitatorNearSigner
}

// NewExactNearFacilitator creates a new ExactNearFacilitator
func NewExactNearFacilitator(signer FacilitatorNearSigner) *ExactNearFacilitator {
	return &ExactNearFacilitator{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (f *ExactNearFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the CAIP family pattern for NEAR networks
func (f *ExactNearFacilitator) CaipFamily() string {
	return "near:*"
}

// GetExtra advertises the relayer account for clients that want it.
func (f *ExactNearFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	addresses := f.signer.GetAddresses()
	if len(addresses) == 0 {
		return nil
	}
	return map[string]interface{}{
		"relayer": addresses[0],
	}
}

// GetSigners returns the signer addresses this facilitator uses
func (f *ExactNearFacilitator) GetSigners(network x402.Network) []string {
	return f.signer.GetAddresses()
}

// Verify verifies a NEAR payment payload against requirements
func (f *ExactNearFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 2 {
		return invalid("v2 only supports x402 version 2", ""), nil
	}

	if payload.Accepted.Scheme != SchemeExact || requirements.Scheme != SchemeExact {
		return invalid(x402.ErrCodeUnsupportedScheme, ""), nil
	}

	if payload.Accepted.Network != requirements.Network {
		return invalid("network_mismatch", ""), nil
	}

	networkStr := string(requirements.Network)
	config, ok := GetNetworkConfig(networkStr)
	if !ok {
		return invalid(ErrInvalidNetwork, ""), nil
	}

	nearPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return invalid(ErrInvalidPayload, ""), nil
	}
	signed, err := nearPayload.Decode()
	if err != nil {
		return invalid(ErrInvalidPayload, ""), nil
	}

	delegate := &signed.DelegateAction
	payer := delegate.SenderID

	// Never relay our own accounts.
	for _, addr := range f.signer.GetAddresses() {
		if addr == payer {
			return invalid(ErrSelfRelay, payer), nil
		}
	}

	contractID := requirements.Asset
	if contractID == "" {
		contractID = config.DefaultAsset.ContractID
	}
	if delegate.ReceiverID != contractID {
		return invalid(ErrContractMismatch, payer), nil
	}

	if len(delegate.Actions) != 1 || delegate.Actions[0].Enum != ActionFunctionCall {
		return invalid(ErrDisallowedMethod, payer), nil
	}
	call := delegate.Actions[0].FunctionCall
	if call.MethodName != MethodFtTransfer {
		return invalid(ErrDisallowedMethod, payer), nil
	}
	if call.Gas > MaxDelegateGas {
		return invalid(ErrGasLimitExceeded, payer), nil
	}
	if call.Deposit.Cmp(big.NewInt(OneYocto)) != 0 {
		return invalid(ErrInvalidDeposit, payer), nil
	}

	var args ftTransferArgs
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return invalid(ErrInvalidPayload, payer), nil
	}
	if args.ReceiverID != requirements.PayTo {
		return invalid(ErrRecipientMismatch, payer), nil
	}

	amount, ok := new(big.Int).SetString(args.Amount, 10)
	if !ok {
		return invalid(ErrInvalidPayload, payer), nil
	}
	requiredAmount, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return x402.VerifyResponse{}, fmt.Errorf("invalid required amount: %s", requirements.Amount)
	}
	if amount.Cmp(requiredAmount) < 0 {
		return invalid(ErrInsufficientAmount, payer), nil
	}

	height, err := f.signer.GetBlockHeight(ctx)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to get block height: %w", err)
	}
	if delegate.MaxBlockHeight < height+MinBlockHeightSlack {
		return invalid(ErrDelegateExpired, payer), nil
	}

	valid, err := signed.VerifySignature()
	if err != nil || !valid {
		return invalid(ErrInvalidSignature, payer), nil
	}

	balance, err := f.signer.GetFtBalance(ctx, contractID, payer)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return invalid(x402.ErrCodeInsufficientFunds, payer), nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   payer,
	}, nil
}

// Settle relays the delegate action on-chain.
func (f *ExactNearFacilitator) Settle(
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
			Payer:       verifyResp.Payer,
		}, nil
	}

	nearPayload, _ := PayloadFromMap(payload.Payload)
	signed, _ := nearPayload.Decode()

	txHash, err := f.signer.SubmitDelegateAction(ctx, signed)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrSettlementFailed,
			Network:     x402.Network(networkStr),
			Payer:       verifyResp.Payer,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: txHash,
		Network:     x402.Network(networkStr),
		Payer:       verifyResp.Payer,
	}, nil
}

func invalid(reason, payer string) x402.VerifyResponse {
	return x402.VerifyResponse{
		IsValid:       false,
		InvalidReason: reason,
		Payer:         payer,
	}
}
