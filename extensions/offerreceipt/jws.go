package offerreceipt

import (
	"context"
	"encoding/json"
	"fmt"

	jose "gopkg.in/square/go-jose.v2"
)

// JWSSigner signs offers and receipts as compact JWS, with the signer's DID
// in the kid header.
type JWSSigner struct {
	signer jose.Signer
	did    string
}

// NewJWSSigner creates a JWSSigner. key is the private key matching the DID:
// ed25519.PrivateKey for EdDSA, *ecdsa.PrivateKey for ES256.
func NewJWSSigner(key interface{}, algorithm jose.SignatureAlgorithm, did string) (*JWSSigner, error) {
	opts := (&jose.SignerOptions{}).WithHeader("kid", did)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: algorithm, Key: key}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to construct signer: %w", err)
	}
	return &JWSSigner{
		signer: signer,
		did:    did,
	}, nil
}

// DID returns the signer identity embedded in every signature.
func (s *JWSSigner) DID() string {
	return s.did
}

// SignOffer signs an offer.
func (s *JWSSigner) SignOffer(offer Offer) (*SignedEnvelope, error) {
	return s.sign(offer)
}

// SignReceipt signs a receipt.
func (s *JWSSigner) SignReceipt(receipt Receipt) (*SignedEnvelope, error) {
	return s.sign(receipt)
}

func (s *JWSSigner) sign(payload interface{}) (*SignedEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	object, err := s.signer.Sign(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	compact, err := object.CompactSerialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signature: %w", err)
	}
	return &SignedEnvelope{
		Format:    FormatJWS,
		Signer:    s.did,
		Signature: compact,
	}, nil
}

// VerifyOffer verifies a JWS envelope and decodes the offer it covers.
func VerifyOffer(ctx context.Context, envelope *SignedEnvelope, resolver DIDResolver) (*Offer, error) {
	raw, err := verifyJWS(ctx, envelope, resolver)
	if err != nil {
		return nil, err
	}
	offer := &Offer{}
	if err := json.Unmarshal(raw, offer); err != nil {
		return nil, fmt.Errorf("signed payload is not an offer: %w", err)
	}
	return offer, nil
}

// VerifyReceipt verifies a JWS envelope and decodes the receipt it covers.
func VerifyReceipt(ctx context.Context, envelope *SignedEnvelope, resolver DIDResolver) (*Receipt, error) {
	raw, err := verifyJWS(ctx, envelope, resolver)
	if err != nil {
		return nil, err
	}
	receipt := &Receipt{}
	if err := json.Unmarshal(raw, receipt); err != nil {
		return nil, fmt.Errorf("signed payload is not a receipt: %w", err)
	}
	return receipt, nil
}

func verifyJWS(ctx context.Context, envelope *SignedEnvelope, resolver DIDResolver) ([]byte, error) {
	if envelope.Format != FormatJWS {
		return nil, fmt.Errorf("unsupported signature format: %s", envelope.Format)
	}

	object, err := jose.ParseSigned(envelope.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid JWS: %w", err)
	}

	if len(object.Signatures) != 1 {
		return nil, fmt.Errorf("expected exactly one signature")
	}
	kid := object.Signatures[0].Header.KeyID
	if kid != "" && kid != envelope.Signer {
		return nil, fmt.Errorf("kid %s does not match envelope signer %s", kid, envelope.Signer)
	}

	key, err := resolver.Resolve(ctx, envelope.Signer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", envelope.Signer, err)
	}

	raw, err := object.Verify(key)
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}
	return raw, nil
}
