package offerreceipt

import (
	"time"

	"github.com/google/uuid"

	x402 "github.com/x402labs/x402-go"
)

// OfferSigner is anything that can sign an offer; JWSSigner and
// EIP712Signer both qualify.
type OfferSigner interface {
	SignOffer(offer Offer) (*SignedEnvelope, error)
}

// offerResourceServerExtension signs every payment-required declaration the
// server emits, binding the quoted terms to the server's identity.
type offerResourceServerExtension struct {
	signer OfferSigner
}

// NewOfferExtension creates a ResourceServerExtension that attaches signed
// offers to 402 declarations.
func NewOfferExtension(signer OfferSigner) x402.ResourceServerExtension {
	return &offerResourceServerExtension{signer: signer}
}

// Key returns the extension key
func (e *offerResourceServerExtension) Key() string {
	return ExtensionKey
}

// EnrichDeclaration signs the declaration's terms and attaches the envelope.
// Declarations this extension does not understand pass through untouched.
func (e *offerResourceServerExtension) EnrichDeclaration(declaration interface{}, transportContext interface{}) interface{} {
	decl, ok := declaration.(map[string]interface{})
	if !ok {
		return declaration
	}

	offer := Offer{
		Timestamp: time.Now().Unix(),
		Nonce:     uuid.New().String(),
	}
	if resource, ok := decl["resource"].(string); ok {
		offer.Resource = resource
	}
	if accepts, ok := decl["accepts"].([]x402.PaymentRequirements); ok {
		offer.Accepts = accepts
	}

	envelope, err := e.signer.SignOffer(offer)
	if err != nil {
		// An unsignable offer is still a valid declaration.
		return declaration
	}

	decl["offer"] = map[string]interface{}{
		"format":    string(envelope.Format),
		"signer":    envelope.Signer,
		"signature": envelope.Signature,
		"timestamp": offer.Timestamp,
		"nonce":     offer.Nonce,
	}
	return decl
}
