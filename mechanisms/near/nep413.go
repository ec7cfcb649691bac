package near

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/near/borsh-go"
)

// NEP-413 off-chain message signing, used to authenticate a payer from an
// HTTP header without putting anything on chain.

// SignMessageParams is the Borsh payload a NEP-413 signer commits to.
type SignMessageParams struct {
	Message     string
	Nonce       [32]byte
	Recipient   string
	CallbackURL *string
}

// SignedMessage is the header-friendly form of a NEP-413 signature.
type SignedMessage struct {
	AccountID string `json:"accountId"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
	Recipient string `json:"recipient"`
}

// NEP413Hash computes the hash a NEP-413 signer signs: sha256 over the Borsh
// serialization of the NEP-413 discriminant followed by the params.
func NEP413Hash(params SignMessageParams) ([]byte, error) {
	prefix, err := borsh.Serialize(uint32(NEP413SignMessagePrefix))
	if err != nil {
		return nil, err
	}
	body, err := borsh.Serialize(params)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(append(prefix, body...))
	return hash[:], nil
}

// SignMessage produces a NEP-413 signature over message/nonce/recipient.
func SignMessage(key ed25519.PrivateKey, accountID string, params SignMessageParams) (*SignedMessage, error) {
	hash, err := NEP413Hash(params)
	if err != nil {
		return nil, err
	}
	signature := ed25519.Sign(key, hash)
	pubKey := key.Public().(ed25519.PublicKey)

	return &SignedMessage{
		AccountID: accountID,
		PublicKey: base64.StdEncoding.EncodeToString(pubKey),
		Signature: base64.StdEncoding.EncodeToString(signature),
		Message:   params.Message,
		Nonce:     base64.StdEncoding.EncodeToString(params.Nonce[:]),
		Recipient: params.Recipient,
	}, nil
}

// VerifySignedMessage checks a NEP-413 signature. The caller is responsible
// for checking that AccountID actually owns the key, typically against the
// account's access key list.
func VerifySignedMessage(signed *SignedMessage) (bool, error) {
	pubKeyBytes, err := base64.StdEncoding.DecodeString(signed.PublicKey)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key")
	}
	signatureBytes, err := base64.StdEncoding.DecodeString(signed.Signature)
	if err != nil || len(signatureBytes) != ed25519.SignatureSize {
		return false, fmt.Errorf("invalid signature")
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(signed.Nonce)
	if err != nil || len(nonceBytes) != 32 {
		return false, fmt.Errorf("invalid nonce")
	}

	params := SignMessageParams{
		Message:   signed.Message,
		Recipient: signed.Recipient,
	}
	copy(params.Nonce[:], nonceBytes)

	hash, err := NEP413Hash(params)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pubKeyBytes), hash, signatureBytes), nil
}
