// Package erc20approvalgassponsor provides types and helpers for the ERC-20 Approval Gas Sponsoring extension.
//
// This extension enables gasless approval of the Permit2 contract for ERC-20 tokens
// that do NOT implement EIP-2612. Instead of an off-chain signature, the client
// creates a signed (but unbroadcast) approve(Permit2, amount) transaction.
// The facilitator submits it in a batch transaction alongside the Permit2 settle.
package erc20approvalgassponsor

import (
	"context"

	evm "github.com/x402labs/x402-go/mechanisms/evm"
)

// ERC20ApprovalGasSponsoring is the extension identifier for the ERC-20 approval gas sponsoring extension.
const ERC20ApprovalGasSponsoring = "erc20ApprovalGasSponsoring"

// ERC20ApprovalGasSponsoringVersion is the current schema version for the extension info.
const ERC20ApprovalGasSponsoringVersion = "1"

// Info contains the signed approve transaction data populated by the client.
// The facilitator broadcasts this transaction before the Permit2 transfer.
type Info struct {
	// From is the address of the sender (token owner).
	From string `json:"from"`
	// Asset is the address of the ERC-20 token contract.
	Asset string `json:"asset"`
	// Spender is the address being approved (Canonical Permit2).
	Spender string `json:"spender"`
	// Amount is the approval amount (uint256 as decimal string). Typically MaxUint256.
	Amount string `json:"amount"`
	// SignedTransaction is the RLP-encoded signed approve transaction as a hex string (0x-prefixed).
	SignedTransaction string `json:"signedTransaction"`
	// Version is the schema version identifier.
	Version string `json:"version"`
}

// ServerInfo is the server-side info included in PaymentRequired.
// Contains a description and version; the client populates the rest.
type ServerInfo struct {
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Extension represents the full extension object as it appears in
// PaymentRequired.extensions and PaymentPayload.extensions.
type Extension struct {
	Info   interface{}            `json:"info"`
	Schema map[string]interface{} `json:"schema"`
}

// BatchCall is a single call in an atomic batch transaction.
type BatchCall struct {
	// To is the target contract address.
	To string
	// Data is the ABI-encoded calldata.
	Data []byte
}

// SmartWalletBatchSigner submits multiple calls atomically in one transaction.
// The approval and the Permit2 settle must land in the same transaction, so
// the facilitator needs a smart wallet (or equivalent batching mechanism).
type SmartWalletBatchSigner interface {
	// SendBatchTransaction submits the calls atomically and returns the transaction hash.
	SendBatchTransaction(ctx context.Context, calls []BatchCall) (string, error)
	// WaitForTransactionReceipt waits for the batch transaction to be mined.
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*evm.TransactionReceipt, error)
}

// FacilitatorExt carries the batch signer; registered with the facilitator.
// It implements x402.FacilitatorExtension so it can be registered and
// retrieved via FacilitatorContext.
type FacilitatorExt struct {
	SmartWalletSigner SmartWalletBatchSigner
}

// Key returns the extension identifier.
func (e *FacilitatorExt) Key() string {
	return ERC20ApprovalGasSponsoring
}

// NewFacilitatorExtension creates a FacilitatorExt wrapping the given batch signer.
func NewFacilitatorExtension(signer SmartWalletBatchSigner) *FacilitatorExt {
	return &FacilitatorExt{SmartWalletSigner: signer}
}
