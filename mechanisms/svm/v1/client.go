// Package v1 implements the legacy (x402 version 1) faces of the exact SVM
// scheme, where networks are identified by name ("solana", "solana-devnet")
// and the amount lives in maxAmountRequired.
package v1

import (
	"context"
	"fmt"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/svm"
	"github.com/x402labs/x402-go/mechanisms/svm/exact/client"
)

// ExactSvmClientV1 implements the SchemeNetworkClient interface for SVM exact
// payments (V1). The transaction shape is identical to V2, so it delegates to
// the V2 client.
type ExactSvmClientV1 struct {
	inner *client.ExactSvmScheme
}

// NewExactSvmClientV1 creates a new ExactSvmClientV1
func NewExactSvmClientV1(signer svm.ClientSvmSigner, config ...*svm.ClientConfig) *ExactSvmClientV1 {
	return &ExactSvmClientV1{
		inner: client.NewExactSvmScheme(signer, config...),
	}
}

// Scheme returns the scheme identifier
func (c *ExactSvmClientV1) Scheme() string {
	return svm.SchemeExact
}

// CreatePaymentPayload creates a payment payload for the exact scheme (V1)
func (c *ExactSvmClientV1) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	// V1 only supports version 1
	if version != 1 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("v1 only supports x402 version 1, got %d", version)
	}
	return c.inner.CreatePaymentPayload(ctx, version, requirements)
}
