package paymentidentifier

import (
	"fmt"
	"regexp"
)

// PAYMENT_IDENTIFIER is the extension key under which the payment identifier
// travels in PaymentRequired and PaymentPayload extensions maps.
const PAYMENT_IDENTIFIER = "payment-identifier"

// Payment ID format constraints.
const (
	PAYMENT_ID_MIN_LENGTH = 16
	PAYMENT_ID_MAX_LENGTH = 128
)

// PAYMENT_ID_PATTERN matches IDs made of alphanumerics, hyphens, and underscores.
var PAYMENT_ID_PATTERN = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// PaymentIdentifierInfo carries the identifier itself (client side) and the
// required flag (server side declaration).
type PaymentIdentifierInfo struct {
	ID       string `json:"id,omitempty"`
	Required bool   `json:"required"`
}

// PaymentIdentifierExtension is the wire shape of the payment-identifier
// extension object.
type PaymentIdentifierExtension struct {
	Info PaymentIdentifierInfo `json:"info"`
}

// ValidationResult reports the outcome of validating an extension object.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// DeclarePaymentIdentifierExtension builds the extension object a resource
// server advertises in its 402 response. When required is true, clients must
// attach a payment identifier to their payloads.
func DeclarePaymentIdentifierExtension(required bool) PaymentIdentifierExtension {
	return PaymentIdentifierExtension{
		Info: PaymentIdentifierInfo{Required: required},
	}
}

// AppendPaymentIdentifierToExtensions attaches a payment identifier to a
// client's outgoing extensions map. The ID is validated before it is added.
func AppendPaymentIdentifierToExtensions(extensions map[string]interface{}, id string) error {
	if extensions == nil {
		return fmt.Errorf("extensions map is nil")
	}
	if !IsValidPaymentID(id) {
		return fmt.Errorf("invalid payment ID format: must be %d-%d characters of alphanumerics, hyphens, and underscores",
			PAYMENT_ID_MIN_LENGTH, PAYMENT_ID_MAX_LENGTH)
	}
	extensions[PAYMENT_IDENTIFIER] = PaymentIdentifierExtension{
		Info: PaymentIdentifierInfo{ID: id},
	}
	return nil
}
