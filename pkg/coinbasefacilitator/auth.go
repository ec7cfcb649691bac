package coinbasefacilitator

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	jose "gopkg.in/square/go-jose.v2"
)

const (
	jwtIssuer   = "cdp"
	jwtAudience = "cdp_service"
	jwtLifetime = 2 * time.Minute

	sdkLanguage = "go"
	sdkVersion  = "1.0.0"
)

type authClaims struct {
	Issuer    string   `json:"iss"`
	Subject   string   `json:"sub"`
	Audience  []string `json:"aud"`
	URIs      []string `json:"uris"`
	NotBefore int64    `json:"nbf"`
	Expiry    int64    `json:"exp"`
}

// CreateAuthHeader builds a Bearer token authorizing a single request to the
// hosted facilitator. The token is a JWT scoped to one method and path.
func CreateAuthHeader(apiKeyID, apiKeySecret, baseURL, path, method string) (string, error) {
	key, algorithm, err := parseAPIKeySecret(apiKeySecret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	opts := (&jose.SignerOptions{}).
		WithType("JWT").
		WithHeader("kid", apiKeyID).
		WithHeader("nonce", hex.EncodeToString(nonce))
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: algorithm, Key: key}, opts)
	if err != nil {
		return "", fmt.Errorf("failed to construct signer: %w", err)
	}

	host := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	now := time.Now()
	claims, err := json.Marshal(authClaims{
		Issuer:    jwtIssuer,
		Subject:   apiKeyID,
		Audience:  []string{jwtAudience},
		URIs:      []string{fmt.Sprintf("%s %s%s", method, host, path)},
		NotBefore: now.Unix(),
		Expiry:    now.Add(jwtLifetime).Unix(),
	})
	if err != nil {
		return "", err
	}

	object, err := signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign auth token: %w", err)
	}
	token, err := object.CompactSerialize()
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// parseAPIKeySecret accepts either a PEM-encoded EC private key or a
// base64-encoded Ed25519 private key.
func parseAPIKeySecret(secret string) (interface{}, jose.SignatureAlgorithm, error) {
	if strings.Contains(secret, "BEGIN") {
		block, _ := pem.Decode([]byte(secret))
		if block == nil {
			return nil, "", fmt.Errorf("invalid PEM in API key secret")
		}
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if pkcs8Err != nil {
				return nil, "", fmt.Errorf("failed to parse EC key: %w", err)
			}
			ecKey, ok := parsed.(*ecdsa.PrivateKey)
			if !ok {
				return nil, "", fmt.Errorf("unsupported key type in API key secret")
			}
			key = ecKey
		}
		return key, jose.ES256, nil
	}

	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, "", fmt.Errorf("API key secret is neither PEM nor base64: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, "", fmt.Errorf("unexpected Ed25519 key length %d", len(raw))
	}
	return ed25519.PrivateKey(raw), jose.EdDSA, nil
}

// CreateCorrelationHeader reports client metadata alongside authenticated
// requests.
func CreateCorrelationHeader() string {
	pairs := []string{
		"sdk_version=" + sdkVersion,
		"sdk_language=" + sdkLanguage,
		"source=x402",
	}
	return strings.Join(pairs, ",")
}
