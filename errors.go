package x402

import (
	"errors"
	"fmt"
)

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes. These are stable wire tags: they appear verbatim in
// 402 bodies and in VerifyResponse.InvalidReason / SettleResponse.ErrorReason.
const (
	ErrCodeInvalidPayload             = "invalid_payload"
	ErrCodeInvalidVersion             = "invalid_x402_version"
	ErrCodeInvalidNetwork             = "invalid_network"
	ErrCodeInvalidPaymentRequirements = "invalid_payment_requirements"
	ErrCodeUnmatched                  = "unmatched"
	ErrCodeUnsupportedKind            = "unsupported_kind"
	ErrCodeUnsupportedScheme          = "unsupported_scheme"
	ErrCodeUnsupportedNetwork         = "unsupported_network"
	ErrCodePaymentRequired            = "payment_required"
	ErrCodePaymentRejected            = "payment_rejected"
	ErrCodePaymentExpired             = "payment_expired"
	ErrCodeInsufficientFunds          = "insufficient_funds"
	ErrCodeAssetMismatch              = "asset_mismatch"
	ErrCodeAmountMismatch             = "amount_mismatch"
	ErrCodeNonceMismatch              = "nonce_mismatch"
	ErrCodeExceedsMaxValue            = "exceeds_max_value"
	ErrCodeSettlementFailed           = "settlement_failed"
	ErrCodeInvalidTransactionState    = "invalid_transaction_state"
	ErrCodeUnexpectedVerifyError      = "unexpected_verify_error"
	ErrCodeUnexpectedSettleError      = "unexpected_settle_error"
)

// ErrAlreadyRegistered is returned when a (scheme, network) pair is
// registered twice on the same engine.
var ErrAlreadyRegistered = errors.New("already_registered")

// VerifyError is a structured rejection from a scheme facilitator's verify
// step. InvalidReason is the stable wire tag, InvalidMessage is contextual.
type VerifyError struct {
	InvalidReason  string
	InvalidMessage string
	Payer          string
}

func (e *VerifyError) Error() string {
	if e.InvalidMessage != "" {
		return fmt.Sprintf("%s: %s", e.InvalidReason, e.InvalidMessage)
	}
	return e.InvalidReason
}

// NewVerifyError creates a VerifyError with the given reason, payer and message.
func NewVerifyError(reason, payer, message string) *VerifyError {
	return &VerifyError{
		InvalidReason:  reason,
		InvalidMessage: message,
		Payer:          payer,
	}
}

// SettleError is a structured failure from a scheme facilitator's settle
// step. ErrorReason is the stable wire tag; Transaction is set when a
// transaction was broadcast before the failure.
type SettleError struct {
	ErrorReason  string
	ErrorMessage string
	Payer        string
	Network      Network
	Transaction  string
}

func (e *SettleError) Error() string {
	if e.ErrorMessage != "" {
		return fmt.Sprintf("%s: %s", e.ErrorReason, e.ErrorMessage)
	}
	return e.ErrorReason
}

// NewSettleError creates a SettleError with the given reason, payer, network,
// transaction hash and message.
func NewSettleError(reason, payer string, network Network, transaction, message string) *SettleError {
	return &SettleError{
		ErrorReason:  reason,
		ErrorMessage: message,
		Payer:        payer,
		Network:      network,
		Transaction:  transaction,
	}
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}
