package x402

import (
	"context"

	"github.com/x402labs/x402-go/types"
)

// MoneyParser converts a decimal money amount to an atomic AssetAmount for a
// network. Parsers are tried in registration order; a parser that cannot
// handle the conversion returns nil. The default USDC parser is always the
// fallback.
type MoneyParser func(amount float64, network Network) (*AssetAmount, error)

// ============================================================================
// V1 Interfaces (Legacy - explicitly versioned)
// ============================================================================

// SchemeNetworkClientV1 is implemented by client-side V1 payment mechanisms
type SchemeNetworkClientV1 interface {
	Scheme() string
	CreatePaymentPayload(ctx context.Context, requirements types.PaymentRequirementsV1) (types.PaymentPayloadV1, error)
}

// SchemeNetworkFacilitatorV1 is implemented by facilitator-side V1 payment mechanisms
type SchemeNetworkFacilitatorV1 interface {
	Scheme() string

	// CaipFamily returns the CAIP family pattern this facilitator supports,
	// e.g. "eip155:*" for EVM or "solana:*" for SVM.
	CaipFamily() string

	// GetExtra returns mechanism-specific extra data for the supported kinds
	// endpoint, or nil when there is none (e.g. SVM returns the feePayer).
	GetExtra(network Network) map[string]interface{}

	// GetSigners returns the signer addresses this facilitator uses on the
	// given network. Multiple addresses support key rotation and load
	// balancing.
	GetSigners(network Network) []string

	Verify(ctx context.Context, payload types.PaymentPayloadV1, requirements types.PaymentRequirementsV1) (VerifyResponse, error)
	Settle(ctx context.Context, payload types.PaymentPayloadV1, requirements types.PaymentRequirementsV1) (SettleResponse, error)
}

// Note: No SchemeNetworkServerV1 - new SDK servers are V2 only

// ============================================================================
// V2 Interfaces (Current - default, no version suffix)
// ============================================================================

// SchemeNetworkClient is implemented by client-side payment mechanisms (V2).
// The version parameter selects the wire format of the produced payload so a
// single mechanism can serve both protocol generations.
type SchemeNetworkClient interface {
	Scheme() string
	CreatePaymentPayload(ctx context.Context, version int, requirements PaymentRequirements) (PartialPaymentPayload, error)
}

// ClientExtension can enrich payment payloads on the client side.
// Extensions run after the scheme creates the base payload but before it is
// returned, when the extension key appears in PaymentRequired.Extensions.
type ClientExtension interface {
	// Key returns the unique extension identifier (e.g. "eip2612GasSponsoring").
	Key() string

	// EnrichPaymentPayload may add extension data to the payload, for example
	// by signing an EIP-2612 permit.
	EnrichPaymentPayload(ctx context.Context, payload PaymentPayload, required PaymentRequired) (PaymentPayload, error)
}

// SchemeNetworkServer is implemented by server-side payment mechanisms (V2)
type SchemeNetworkServer interface {
	Scheme() string
	ParsePrice(price Price, network Network) (AssetAmount, error)
	EnhancePaymentRequirements(
		ctx context.Context,
		requirements PaymentRequirements,
		supportedKind SupportedKind,
		extensions []string,
	) (PaymentRequirements, error)
}

// SchemeNetworkFacilitator is implemented by facilitator-side payment mechanisms (V2)
type SchemeNetworkFacilitator interface {
	Scheme() string

	// CaipFamily returns the CAIP family pattern this facilitator supports,
	// e.g. "eip155:*" for EVM or "solana:*" for SVM.
	CaipFamily() string

	// GetExtra returns mechanism-specific extra data for the supported kinds
	// endpoint, or nil when there is none (e.g. SVM returns the feePayer).
	GetExtra(network Network) map[string]interface{}

	// GetSigners returns the signer addresses this facilitator uses on the
	// given network. Multiple addresses support key rotation and load
	// balancing.
	GetSigners(network Network) []string

	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (VerifyResponse, error)
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (SettleResponse, error)
}

// ResourceServerExtension enriches the extension declarations a resource
// server advertises in its 402 responses.
type ResourceServerExtension interface {
	Key() string
	EnrichDeclaration(declaration interface{}, transportContext interface{}) interface{}
}

// ============================================================================
// FacilitatorClient Interfaces (Network Boundary - uses bytes)
// ============================================================================

// FacilitatorClient is how a resource server talks to a facilitator, local or
// remote. Bytes at the boundary: implementations detect the protocol version
// from the payload and route internally to typed mechanisms.
type FacilitatorClient interface {
	// Verify a payment (detects version from bytes, routes internally)
	Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (VerifyResponse, error)

	// Settle a payment (detects version from bytes, routes internally)
	Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (SettleResponse, error)

	// GetSupported returns supported payment kinds in flat array format with
	// x402Version in each element.
	GetSupported(ctx context.Context) (SupportedResponse, error)
}
