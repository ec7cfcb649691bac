// Package facilitator implements Permit2 verification and settlement for the
// exact EVM scheme, including the EIP-2612 and ERC-20 approval gas sponsoring
// extensions.
package facilitator

import (
	"context"
	"errors"
	"fmt"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// ExactPermit2Facilitator implements the SchemeNetworkFacilitator interface
// for Permit2-based exact EVM payments. Unlike the EIP-3009 facilitator it
// works with any ERC-20 token, at the cost of requiring a Permit2 allowance
// (established directly or through a gas sponsoring extension).
type ExactPermit2Facilitator struct {
	signer evm.FacilitatorEvmSigner
	fctx   *x402.FacilitatorContext
}

// NewExactPermit2Facilitator creates a new ExactPermit2Facilitator.
// The facilitator context is optional and carries extension configuration
// such as the smart wallet signer for ERC-20 approval gas sponsoring.
func NewExactPermit2Facilitator(signer evm.FacilitatorEvmSigner, fctx *x402.FacilitatorContext) *ExactPermit2Facilitator {
	return &ExactPermit2Facilitator{
		signer: signer,
		fctx:   fctx,
	}
}

// Scheme returns the scheme identifier
func (f *ExactPermit2Facilitator) Scheme() string {
	return evm.SchemeExact
}

// CaipFamily returns the CAIP family pattern for EVM networks
func (f *ExactPermit2Facilitator) CaipFamily() string {
	return "eip155:*"
}

// GetExtra returns extra data for the supported kinds endpoint
func (f *ExactPermit2Facilitator) GetExtra(network x402.Network) map[string]interface{} {
	return nil
}

// GetSigners returns the signer addresses this facilitator uses
func (f *ExactPermit2Facilitator) GetSigners(network x402.Network) []string {
	return f.signer.GetAddresses()
}

// Verify verifies a Permit2 payment payload against requirements
func (f *ExactPermit2Facilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 2 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "permit2 only supports x402 version 2",
		}, nil
	}

	permit2Payload, err := evm.Permit2PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("invalid payload: %v", err),
		}, nil
	}

	resp, err := VerifyPermit2(ctx, f.signer, f.fctx, payload, requirements, permit2Payload)
	if err != nil {
		ve := &x402.VerifyError{}
		if errors.As(err, &ve) {
			return x402.VerifyResponse{
				IsValid:       false,
				InvalidReason: ve.InvalidReason,
				Payer:         ve.Payer,
			}, nil
		}
		return x402.VerifyResponse{}, err
	}

	return *resp, nil
}

// Settle settles a Permit2 payment through x402ExactPermit2Proxy
func (f *ExactPermit2Facilitator) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	network := x402.Network(payload.Accepted.Network)

	if payload.X402Version != 2 {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: "permit2 only supports x402 version 2",
			Network:     network,
		}, nil
	}

	permit2Payload, err := evm.Permit2PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("invalid payload: %v", err),
			Network:     network,
		}, nil
	}

	resp, err := SettlePermit2(ctx, f.signer, f.fctx, payload, requirements, permit2Payload)
	if err != nil {
		se := &x402.SettleError{}
		if errors.As(err, &se) {
			return x402.SettleResponse{
				Success:     false,
				ErrorReason: se.ErrorReason,
				Network:     network,
				Payer:       se.Payer,
				Transaction: se.Transaction,
			}, nil
		}
		return x402.SettleResponse{}, err
	}

	return *resp, nil
}
