// Package client provides Permit2-based client flows for the exact EVM
// scheme: Permit2 payment payloads plus the EIP-2612 and raw ERC-20 approval
// gas sponsoring extensions for tokens without EIP-3009 support.
package client

import (
	"context"
	"fmt"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// ExactPermit2Client implements the SchemeNetworkClient interface for EVM
// exact payments settled through Permit2. Use it instead of the EIP-3009
// client for assets that do not implement transferWithAuthorization.
type ExactPermit2Client struct {
	signer evm.ClientEvmSigner
}

// NewExactPermit2Client creates a new ExactPermit2Client
func NewExactPermit2Client(signer evm.ClientEvmSigner) *ExactPermit2Client {
	return &ExactPermit2Client{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (c *ExactPermit2Client) Scheme() string {
	return evm.SchemeExact
}

// CreatePaymentPayload creates a Permit2 payment payload for the exact scheme.
// Returns a partial payload; the client engine wraps it with accepted,
// resource and extensions.
func (c *ExactPermit2Client) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 2 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("permit2 requires x402 version 2, got %d", version)
	}

	if !evm.IsValidNetwork(string(requirements.Network)) {
		return x402.PartialPaymentPayload{}, fmt.Errorf("unsupported network: %s", requirements.Network)
	}

	if !evm.IsValidAddress(requirements.Asset) {
		return x402.PartialPaymentPayload{}, fmt.Errorf("permit2 requires an asset address, got %q", requirements.Asset)
	}

	return CreatePermit2Payload(ctx, c.signer, requirements)
}
