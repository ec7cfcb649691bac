package v1

import (
	"context"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/svm"
	"github.com/x402labs/x402-go/mechanisms/svm/exact/facilitator"
	"github.com/x402labs/x402-go/types"
)

// ExactSvmFacilitatorV1 implements the SchemeNetworkFacilitatorV1 interface
// for SVM exact payments (V1)
type ExactSvmFacilitatorV1 struct {
	signer svm.FacilitatorSvmSigner
}

// NewExactSvmFacilitatorV1 creates a new ExactSvmFacilitatorV1
func NewExactSvmFacilitatorV1(signer svm.FacilitatorSvmSigner) *ExactSvmFacilitatorV1 {
	return &ExactSvmFacilitatorV1{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (f *ExactSvmFacilitatorV1) Scheme() string {
	return svm.SchemeExact
}

// CaipFamily returns the CAIP family pattern for SVM networks
func (f *ExactSvmFacilitatorV1) CaipFamily() string {
	return "solana:*"
}

// GetExtra advertises the fee payer address clients must set on their
// transactions.
func (f *ExactSvmFacilitatorV1) GetExtra(network x402.Network) map[string]interface{} {
	addresses := f.signer.GetAddresses(context.Background(), string(network))
	if len(addresses) == 0 {
		return nil
	}
	return map[string]interface{}{
		"feePayer": addresses[0].String(),
	}
}

// GetSigners returns the signer addresses this facilitator uses
func (f *ExactSvmFacilitatorV1) GetSigners(network x402.Network) []string {
	addresses := f.signer.GetAddresses(context.Background(), string(network))
	result := make([]string, len(addresses))
	for i, addr := range addresses {
		result[i] = addr.String()
	}
	return result
}

// Verify verifies a payment payload against requirements (V1)
func (f *ExactSvmFacilitatorV1) Verify(
	ctx context.Context,
	payload types.PaymentPayloadV1,
	requirements types.PaymentRequirementsV1,
) (x402.VerifyResponse, error) {
	// V1 specific: only handle version 1
	if payload.X402Version != 1 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "v1 only supports x402 version 1",
		}, nil
	}

	if payload.Scheme != svm.SchemeExact || requirements.Scheme != svm.SchemeExact {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: facilitator.ErrUnsupportedScheme,
		}, nil
	}

	if payload.Network != requirements.Network {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: facilitator.ErrNetworkMismatch,
		}, nil
	}

	svmPayload, err := svm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: facilitator.ErrInvalidPayload,
		}, nil
	}

	_, payer, reason := facilitator.InspectAndSimulate(
		ctx, f.signer,
		requirements.Network,
		svmPayload.Transaction,
		requirements.Asset,
		requirements.PayTo,
		requirements.MaxAmountRequired,
	)
	if reason != "" {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: reason,
			Payer:         payer,
		}, nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   payer,
	}, nil
}

// Settle settles a payment by co-signing the transaction as fee payer and
// submitting it (V1)
func (f *ExactSvmFacilitatorV1) Settle(
	ctx context.Context,
	payload types.PaymentPayloadV1,
	requirements types.PaymentRequirementsV1,
) (x402.SettleResponse, error) {
	network := x402.Network(requirements.Network)

	verifyResp, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	if !verifyResp.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResp.InvalidReason,
			Network:     network,
			Payer:       verifyResp.Payer,
		}, nil
	}

	svmPayload, err := svm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: facilitator.ErrInvalidPayload,
			Network:     network,
		}, nil
	}

	tx, err := svm.DecodeTransaction(svmPayload.Transaction)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: facilitator.ErrFailedToDecodeTransaction,
			Network:     network,
		}, nil
	}

	sig, reason := facilitator.SubmitTransfer(ctx, f.signer, requirements.Network, tx)
	if reason != "" {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: reason,
			Network:     network,
			Payer:       verifyResp.Payer,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: sig.String(),
		Network:     network,
		Payer:       verifyResp.Payer,
	}, nil
}
