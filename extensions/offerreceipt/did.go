package offerreceipt

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	jose "gopkg.in/square/go-jose.v2"
)

// DIDResolver resolves a DID to the public key offers and receipts are
// verified against.
type DIDResolver interface {
	Resolve(ctx context.Context, did string) (interface{}, error)
}

// Resolver handles did:key, did:jwk, and did:web.
type Resolver struct {
	httpClient *http.Client
}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve dispatches on the DID method.
func (r *Resolver) Resolve(ctx context.Context, did string) (interface{}, error) {
	switch {
	case strings.HasPrefix(did, "did:key:"):
		return resolveDIDKey(did)
	case strings.HasPrefix(did, "did:jwk:"):
		return resolveDIDJWK(did)
	case strings.HasPrefix(did, "did:web:"):
		return r.resolveDIDWeb(ctx, did)
	default:
		return nil, fmt.Errorf("unsupported DID method: %s", did)
	}
}

// ed25519Multicodec is the multicodec prefix for Ed25519 public keys.
var ed25519Multicodec = []byte{0xed, 0x01}

// resolveDIDKey decodes a did:key Ed25519 identifier: base58btc multibase of
// the multicodec-prefixed key.
func resolveDIDKey(did string) (interface{}, error) {
	id := strings.TrimPrefix(did, "did:key:")
	if !strings.HasPrefix(id, "z") {
		return nil, fmt.Errorf("did:key must be base58btc multibase")
	}
	raw, err := base58.Decode(id[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid did:key encoding: %w", err)
	}
	if len(raw) != len(ed25519Multicodec)+ed25519.PublicKeySize ||
		raw[0] != ed25519Multicodec[0] || raw[1] != ed25519Multicodec[1] {
		return nil, fmt.Errorf("did:key is not an Ed25519 key")
	}
	return ed25519.PublicKey(raw[2:]), nil
}

// EncodeDIDKey renders an Ed25519 public key as a did:key identifier.
func EncodeDIDKey(key ed25519.PublicKey) string {
	raw := append(append([]byte{}, ed25519Multicodec...), key...)
	return "did:key:z" + base58.Encode(raw)
}

// resolveDIDJWK decodes a did:jwk identifier: base64url of the JWK itself.
func resolveDIDJWK(did string) (interface{}, error) {
	id := strings.TrimPrefix(did, "did:jwk:")
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("invalid did:jwk encoding: %w", err)
	}
	jwk := &jose.JSONWebKey{}
	if err := jwk.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("invalid did:jwk key: %w", err)
	}
	return jwk.Key, nil
}

// EncodeDIDJWK renders a JWK as a did:jwk identifier.
func EncodeDIDJWK(jwk jose.JSONWebKey) (string, error) {
	raw, err := jwk.MarshalJSON()
	if err != nil {
		return "", err
	}
	return "did:jwk:" + base64.RawURLEncoding.EncodeToString(raw), nil
}

// didDocument is the subset of a DID document did:web resolution needs.
type didDocument struct {
	VerificationMethod []struct {
		ID           string           `json:"id"`
		PublicKeyJwk *jose.JSONWebKey `json:"publicKeyJwk"`
	} `json:"verificationMethod"`
}

// resolveDIDWeb fetches the DID document from the domain's well-known
// location and returns the first JWK verification method.
func (r *Resolver) resolveDIDWeb(ctx context.Context, did string) (interface{}, error) {
	id := strings.TrimPrefix(did, "did:web:")
	parts := strings.Split(id, ":")
	domain := parts[0]

	url := "https://" + domain + "/.well-known/did.json"
	if len(parts) > 1 {
		url = "https://" + domain + "/" + strings.Join(parts[1:], "/") + "/did.json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch DID document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DID document fetch returned status %d", resp.StatusCode)
	}

	doc := &didDocument{}
	if err := json.NewDecoder(resp.Body).Decode(doc); err != nil {
		return nil, fmt.Errorf("invalid DID document: %w", err)
	}
	for _, method := range doc.VerificationMethod {
		if method.PublicKeyJwk != nil {
			return method.PublicKeyJwk.Key, nil
		}
	}
	return nil, fmt.Errorf("DID document carries no JWK verification method")
}
