package coinbasefacilitator

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	jose "gopkg.in/square/go-jose.v2"
)

func TestCreateAuthHeader(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	secret := base64.StdEncoding.EncodeToString(priv)

	header, err := CreateAuthHeader("key-id", secret, CoinbaseFacilitatorBaseURL, "/platform/v2/x402/verify", "POST")
	if err != nil {
		t.Fatalf("failed to create auth header: %v", err)
	}
	if !strings.HasPrefix(header, "Bearer ") {
		t.Fatalf("expected Bearer token, got %s", header)
	}

	object, err := jose.ParseSigned(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if kid := object.Signatures[0].Header.KeyID; kid != "key-id" {
		t.Errorf("unexpected kid: %s", kid)
	}

	raw, err := object.Verify(pub)
	if err != nil {
		t.Fatalf("signature verification failed: %v", err)
	}

	var claims authClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		t.Fatalf("failed to decode claims: %v", err)
	}
	if claims.Subject != "key-id" || claims.Issuer != jwtIssuer {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if len(claims.URIs) != 1 || claims.URIs[0] != "POST api.cdp.coinbase.com/platform/v2/x402/verify" {
		t.Errorf("unexpected uris: %v", claims.URIs)
	}
}

func TestCreateAuthHeaderRejectsBadSecret(t *testing.T) {
	if _, err := CreateAuthHeader("key-id", "not a key", CoinbaseFacilitatorBaseURL, "/verify", "POST"); err == nil {
		t.Fatal("expected error for malformed secret")
	}
}

func TestCreateCdpAuthHeadersMissingCredentials(t *testing.T) {
	t.Setenv("CDP_API_KEY_ID", "")
	t.Setenv("CDP_API_KEY_SECRET", "")

	if _, err := CreateCdpAuthHeaders("", "")(); err == nil {
		t.Fatal("expected error when credentials are absent")
	}
}
