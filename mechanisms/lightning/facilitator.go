package lightning

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	x402 "github.com/x402labs/x402-go"
)

// ExactLightningFacilitator implements the SchemeNetworkFacilitator
// interface for the exact scheme on Lightning. Verification decodes the
// presented invoice and checks it against the requirements; settlement is a
// lookup, since the payment itself happens over the Lightning network rather
// than through the facilitator.
type ExactLightningFacilitator struct {
	backend LightningBackend
}

// NewExactLightningFacilitator creates a new ExactLightningFacilitator
func NewExactLightningFacilitator(backend LightningBackend) *ExactLightningFacilitator {
	return &ExactLightningFacilitator{
		backend: backend,
	}
}

// Scheme returns the scheme identifier
func (f *ExactLightningFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the CAIP family pattern for Lightning networks
func (f *ExactLightningFacilitator) CaipFamily() string {
	return "lightning:*"
}

// GetExtra returns nothing; the invoice travels in the requirements.
func (f *ExactLightningFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	return nil
}

// GetSigners returns nothing; the facilitator never signs on this rail.
func (f *ExactLightningFacilitator) GetSigners(network x402.Network) []string {
	return nil
}

// Verify verifies a Lightning payment payload against requirements
func (f *ExactLightningFacilitator) Verify(
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

	lightningPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return invalid(ErrInvalidPayload), nil
	}

	invoice, err := f.backend.DecodeInvoice(ctx, lightningPayload.Bolt11)
	if err != nil {
		return invalid(ErrInvoiceDecodeFailed), nil
	}

	requiredSats, err := strconv.ParseInt(requirements.Amount, 10, 64)
	if err != nil || requiredSats <= 0 {
		return x402.VerifyResponse{}, fmt.Errorf("invalid required amount: %s", requirements.Amount)
	}
	if invoice.NumSatoshis < requiredSats {
		return invalid(ErrAmountMismatch), nil
	}

	// payTo carries the node pubkey the invoice must pay out to.
	if requirements.PayTo != "" && !strings.EqualFold(invoice.Destination, requirements.PayTo) {
		return invalid(ErrDestinationMismatch), nil
	}

	if invoice.Timestamp+invoice.Expiry < time.Now().Unix()+MinExpirySkewSeconds {
		return invalid(ErrInvoiceExpired), nil
	}

	return x402.VerifyResponse{
		IsValid: true,
	}, nil
}

// Settle confirms the invoice is settled on the node for at least the
// required amount.
func (f *ExactLightningFacilitator) Settle(
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

	lightningPayload, _ := PayloadFromMap(payload.Payload)
	invoice, err := f.backend.DecodeInvoice(ctx, lightningPayload.Bolt11)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrInvoiceDecodeFailed,
			Network:     x402.Network(networkStr),
		}, nil
	}

	status, err := f.backend.LookupInvoice(ctx, invoice.PaymentHash)
	if err != nil {
		return x402.SettleResponse{}, fmt.Errorf("failed to look up invoice: %w", err)
	}

	if !status.Settled {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrInvoiceNotSettled,
			Network:     x402.Network(networkStr),
		}, nil
	}

	requiredSats, _ := strconv.ParseInt(requirements.Amount, 10, 64)
	if status.AmtPaidSat < requiredSats {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrUnderpaid,
			Network:     x402.Network(networkStr),
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: invoice.PaymentHash,
		Network:     x402.Network(networkStr),
	}, nil
}

func invalid(reason string) x402.VerifyResponse {
	return x402.VerifyResponse{
		IsValid:       false,
		InvalidReason: reason,
	}
}
