// Package offerreceipt signs payment offers and settlement receipts so
// clients can hold servers to the terms they quoted. Offers ride inside 402
// challenges, receipts alongside 200 responses; both are detached-payload
// signatures a third party can verify against the signer's DID.
package offerreceipt

import (
	x402 "github.com/x402labs/x402-go"
)

// ExtensionKey identifies the extension in declarations and payloads.
const ExtensionKey = "offer-receipt"

// SigningFormat selects the signature encoding.
type SigningFormat string

const (
	// FormatJWS signs offers and receipts as compact JWS (ES256 or EdDSA).
	FormatJWS SigningFormat = "jws"
	// FormatEIP712 signs them as EIP-712 typed data with an EVM key.
	FormatEIP712 SigningFormat = "eip712"
)

// Offer is the server's commitment: these terms, for this resource, at this
// time.
type Offer struct {
	Resource  string                     `json:"resource"`
	Accepts   []x402.PaymentRequirements `json:"accepts"`
	Timestamp int64                      `json:"timestamp"`
	Nonce     string                     `json:"nonce"`
}

// Receipt is the server's acknowledgment of a settled payment.
type Receipt struct {
	Resource    string `json:"resource"`
	Network     string `json:"network"`
	Payer       string `json:"payer"`
	Transaction string `json:"transaction"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset"`
	Timestamp   int64  `json:"timestamp"`
}

// SignedEnvelope carries a signed offer or receipt plus the signer identity.
type SignedEnvelope struct {
	Format    SigningFormat `json:"format"`
	Signer    string        `json:"signer"`
	Signature string        `json:"signature"`
}
