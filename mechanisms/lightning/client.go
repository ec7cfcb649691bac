package lightning

import (
	"context"
	"fmt"

	x402 "github.com/x402labs/x402-go"
)

// ExactLightningClient implements the SchemeNetworkClient interface for the
// exact scheme on Lightning. The invoice to pay arrives in the requirements
// extra; the client pays it through its wallet and echoes it back as proof
// of intent. The facilitator confirms actual settlement against its node.
type ExactLightningClient struct {
	signer ClientLightningSigner
}

// NewExactLightningClient creates a new ExactLightningClient
func NewExactLightningClient(signer ClientLightningSigner) *ExactLightningClient {
	return &ExactLightningClient{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (c *ExactLightningClient) Scheme() string {
	return SchemeExact
}

// CreatePaymentPayload pays the invoice in the requirements and creates the
// payment payload.
func (c *ExactLightningClient) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 2 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("lightning exact scheme only supports x402 version 2, got %d", version)
	}

	if requirements.Extra == nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("requirements carry no invoice")
	}
	bolt11, ok := requirements.Extra["bolt11"].(string)
	if !ok || bolt11 == "" {
		return x402.PartialPaymentPayload{}, fmt.Errorf("requirements carry no invoice")
	}

	if _, err := c.signer.PayInvoice(ctx, bolt11); err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to pay invoice: %w", err)
	}

	payload := &ExactLightningPayload{Bolt11: bolt11}
	if invoiceID, ok := requirements.Extra["invoiceId"].(string); ok {
		payload.InvoiceID = invoiceID
	}

	return x402.PartialPaymentPayload{
		X402Version: 2,
		Payload:     payload.ToMap(),
	}, nil
}
