package permit

import (
	"context"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// PermitEvmServer implements the SchemeNetworkServer interface for EIP-2612
// permit payments. Price parsing and requirement enhancement are identical to
// the exact scheme; only the scheme identifier differs.
type PermitEvmServer struct {
	inner *evm.ExactEvmServer
}

// NewPermitEvmServer creates a new PermitEvmServer
func NewPermitEvmServer() *PermitEvmServer {
	return &PermitEvmServer{
		inner: evm.NewExactEvmServer(),
	}
}

// Scheme returns the scheme identifier
func (s *PermitEvmServer) Scheme() string {
	return SchemePermit
}

// ParsePrice parses a price and converts it to an asset amount
func (s *PermitEvmServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	return s.inner.ParsePrice(price, network)
}

// EnhancePaymentRequirements adds token metadata and the facilitator's
// spender address to the requirements
func (s *PermitEvmServer) EnhancePaymentRequirements(
	ctx context.Context,
	requirements x402.PaymentRequirements,
	supportedKind x402.SupportedKind,
	extensionKeys []string,
) (x402.PaymentRequirements, error) {
	requirements, err := s.inner.EnhancePaymentRequirements(ctx, requirements, supportedKind, extensionKeys)
	if err != nil {
		return requirements, err
	}

	// Carry the facilitator's spender through to the client
	if supportedKind.Extra != nil {
		if spender, ok := supportedKind.Extra["spender"]; ok {
			if requirements.Extra == nil {
				requirements.Extra = make(map[string]interface{})
			}
			requirements.Extra["spender"] = spender
		}
	}

	return requirements, nil
}
