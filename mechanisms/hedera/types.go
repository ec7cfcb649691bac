package hedera

import (
	"context"
	"encoding/base64"
	"fmt"

	hiero "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
)

// ExactHederaPayload is the scheme payload carried in PaymentPayload.Payload.
// Transaction is base64-encoded frozen transaction bytes, already signed by
// the paying account.
type ExactHederaPayload struct {
	Transaction string `json:"transaction"`
}

// ToMap converts the payload to a map for JSON marshaling.
func (p *ExactHederaPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"transaction": p.Transaction,
	}
}

// PayloadFromMap creates an ExactHederaPayload from a map.
func PayloadFromMap(data map[string]interface{}) (*ExactHederaPayload, error) {
	payload := &ExactHederaPayload{}

	if txn, ok := data["transaction"].(string); ok && txn != "" {
		payload.Transaction = txn
	} else {
		return nil, fmt.Errorf("missing or invalid transaction field")
	}

	return payload, nil
}

// DecodeTransfer decodes the payload into a TransferTransaction.
func (p *ExactHederaPayload) DecodeTransfer() (*hiero.TransferTransaction, error) {
	raw, err := base64.StdEncoding.DecodeString(p.Transaction)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction encoding: %w", err)
	}

	txn, err := hiero.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction bytes: %w", err)
	}

	switch t := txn.(type) {
	case hiero.TransferTransaction:
		return &t, nil
	case *hiero.TransferTransaction:
		return t, nil
	default:
		return nil, fmt.Errorf("not a transfer transaction")
	}
}

// EncodeTransfer serializes a frozen transfer into payload form.
func EncodeTransfer(txn *hiero.TransferTransaction) (*ExactHederaPayload, error) {
	raw, err := txn.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return &ExactHederaPayload{
		Transaction: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// ClientHederaSigner signs transfers on the client side.
type ClientHederaSigner interface {
	// AccountID returns the payer account in 0.0.x form.
	AccountID() string

	// SignTransfer signs a frozen transfer with the payer's key.
	SignTransfer(ctx context.Context, txn *hiero.TransferTransaction) (*hiero.TransferTransaction, error)
}

// FacilitatorHederaSigner abstracts network access and the fee-payer account
// so the facilitator logic stays testable without a node.
type FacilitatorHederaSigner interface {
	// GetAddresses returns the fee-payer accounts this facilitator signs with,
	// in 0.0.x form.
	GetAddresses() []string

	// GetBalance returns the account's balance in the token's smallest unit,
	// or tinybar when tokenID is empty.
	GetBalance(ctx context.Context, accountID string, tokenID string) (uint64, error)

	// SubmitTransfer co-signs the transfer as fee payer, executes it, waits
	// for the receipt, and returns the transaction id.
	SubmitTransfer(ctx context.Context, txn *hiero.TransferTransaction) (string, error)
}
