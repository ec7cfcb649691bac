package lightning

import (
	"context"
	"fmt"
)

// ExactLightningPayload is the scheme payload carried in
// PaymentPayload.Payload. InvoiceID is the optional server-side id of the
// invoice from the requirements.
type ExactLightningPayload struct {
	Bolt11    string `json:"bolt11"`
	InvoiceID string `json:"invoiceId,omitempty"`
}

// ToMap converts the payload to a map for JSON marshaling.
func (p *ExactLightningPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"bolt11": p.Bolt11,
	}
	if p.InvoiceID != "" {
		m["invoiceId"] = p.InvoiceID
	}
	return m
}

// PayloadFromMap creates an ExactLightningPayload from a map.
func PayloadFromMap(data map[string]interface{}) (*ExactLightningPayload, error) {
	payload := &ExactLightningPayload{}

	if bolt11, ok := data["bolt11"].(string); ok && bolt11 != "" {
		payload.Bolt11 = bolt11
	} else {
		return nil, fmt.Errorf("missing or invalid bolt11 field")
	}

	if invoiceID, ok := data["invoiceId"].(string); ok {
		payload.InvoiceID = invoiceID
	}

	return payload, nil
}

// ClientLightningSigner pays invoices on the client side, through whatever
// wallet the integrator wires in.
type ClientLightningSigner interface {
	// PayInvoice pays a BOLT11 invoice and returns the preimage (hex).
	PayInvoice(ctx context.Context, bolt11 string) (string, error)
}
