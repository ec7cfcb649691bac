package svm

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// DefaultCommitment is the commitment level used for simulation, submission
// and confirmation.
const DefaultCommitment = rpc.CommitmentConfirmed

// ClientSvmSigner signs Solana transactions on the payer side.
type ClientSvmSigner interface {
	// Address returns the signer's public key.
	Address() solana.PublicKey

	// SignTransaction partially signs the transaction, placing the signature
	// at the signer's account index.
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// FacilitatorSvmSigner signs, simulates and submits transactions as the fee
// payer on the facilitator side.
type FacilitatorSvmSigner interface {
	// GetAddresses returns the fee payer public keys available on a network.
	GetAddresses(ctx context.Context, network string) []solana.PublicKey

	// SignTransaction adds the fee payer signature for the given key.
	SignTransaction(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, network string) error

	// SimulateTransaction runs the transaction against current state without
	// submitting it. Returns an error if the transaction would fail.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, network string) error

	// SendTransaction submits the fully signed transaction.
	SendTransaction(ctx context.Context, tx *solana.Transaction, network string) (solana.Signature, error)

	// ConfirmTransaction blocks until the signature is confirmed or the
	// attempt budget is exhausted.
	ConfirmTransaction(ctx context.Context, signature solana.Signature, network string) error
}

// ClientConfig holds optional client-side RPC configuration.
type ClientConfig struct {
	// RPCURL overrides the network's default RPC endpoint.
	RPCURL string
}

// AssetInfo describes an SPL token asset.
type AssetInfo struct {
	Address  string
	Symbol   string
	Decimals int
}

// NetworkConfig describes a supported Solana network.
type NetworkConfig struct {
	CAIP2        string
	V1Name       string
	RPCURL       string
	DefaultAsset AssetInfo
}

// ExactSvmPayload is the exact scheme wire payload: a base64-encoded,
// partially signed transaction.
type ExactSvmPayload struct {
	Transaction string `json:"transaction"`
}

// ToMap converts the payload to a map for JSON marshaling.
func (p *ExactSvmPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"transaction": p.Transaction,
	}
}

// PayloadFromMap creates an ExactSvmPayload from a map.
func PayloadFromMap(data map[string]interface{}) (*ExactSvmPayload, error) {
	tx, ok := data["transaction"].(string)
	if !ok || tx == "" {
		return nil, fmt.Errorf("missing or invalid transaction field")
	}
	return &ExactSvmPayload{Transaction: tx}, nil
}
