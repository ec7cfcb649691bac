package offerreceipt

import (
	"encoding/base64"
	"encoding/json"
	"time"

	x402 "github.com/x402labs/x402-go"
)

// ReceiptSigner is anything that can sign a receipt; JWSSigner and
// EIP712Signer both qualify.
type ReceiptSigner interface {
	SignReceipt(receipt Receipt) (*SignedEnvelope, error)
}

// SignedReceipt is the wire form a receipt header decodes to: the receipt
// terms plus the envelope a verifier checks them against.
type SignedReceipt struct {
	Receipt   Receipt       `json:"receipt"`
	Format    SigningFormat `json:"format"`
	Signer    string        `json:"signer"`
	Signature string        `json:"signature"`
}

// ReceiptIssuer turns settled payments into signed receipt headers. It plugs
// into the HTTP resource service, which attaches the header to every 200
// response that settled a payment.
type ReceiptIssuer struct {
	signer ReceiptSigner
}

// NewReceiptIssuer creates a ReceiptIssuer around the given signer.
func NewReceiptIssuer(signer ReceiptSigner) *ReceiptIssuer {
	return &ReceiptIssuer{signer: signer}
}

// IssueReceiptHeader signs the settlement into a receipt and returns it
// base64-encoded for the response header.
func (i *ReceiptIssuer) IssueReceiptHeader(
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
	settlement x402.SettleResponse,
) (string, error) {
	receipt := Receipt{
		Resource:    requirements.Resource,
		Network:     string(settlement.Network),
		Payer:       settlement.Payer,
		Transaction: settlement.Transaction,
		Amount:      requirements.Amount,
		Asset:       requirements.Asset,
		Timestamp:   time.Now().Unix(),
	}
	if receipt.Resource == "" && payload.Resource != nil {
		receipt.Resource = payload.Resource.URL
	}

	envelope, err := i.signer.SignReceipt(receipt)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(SignedReceipt{
		Receipt:   receipt,
		Format:    envelope.Format,
		Signer:    envelope.Signer,
		Signature: envelope.Signature,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeReceiptHeader parses a receipt header back into its wire form.
func DecodeReceiptHeader(header string) (*SignedReceipt, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, err
	}
	signed := &SignedReceipt{}
	if err := json.Unmarshal(data, signed); err != nil {
		return nil, err
	}
	return signed, nil
}
