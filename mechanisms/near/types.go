package near

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/near/borsh-go"
)

// Borsh wire types mirroring nearcore's transaction primitives. Only the
// action variants a payment can carry are modeled in full; anything else
// fails to decode and is rejected as an invalid payload.

// PublicKey is a curve-tagged public key. KeyType 0 is Ed25519.
type PublicKey struct {
	KeyType uint8
	Data    [32]byte
}

// Signature is a curve-tagged signature. KeyType 0 is Ed25519.
type Signature struct {
	KeyType uint8
	Data    [64]byte
}

// FunctionCall is the function_call action of a delegate action.
type FunctionCall struct {
	MethodName string
	Args       []byte
	Gas        uint64
	Deposit    big.Int
}

// Action is the nearcore Action enum. Variant order is part of the wire
// format; FunctionCall is variant 2.
type Action struct {
	Enum           borsh.Enum `borsh_enum:"true"`
	CreateAccount  struct{}
	DeployContract struct{ Code []byte }
	FunctionCall   FunctionCall
	Transfer       struct{ Deposit big.Int }
}

// ActionFunctionCall is the enum index of the FunctionCall variant.
const ActionFunctionCall = 2

// DelegateAction is the NEP-366 meta transaction body signed by the payer.
type DelegateAction struct {
	SenderID       string
	ReceiverID     string
	Actions        []Action
	Nonce          uint64
	MaxBlockHeight uint64
	PublicKey      PublicKey
}

// SignedDelegateAction couples a delegate action with the payer's signature
// over its NEP-461 hash.
type SignedDelegateAction struct {
	DelegateAction DelegateAction
	Signature      Signature
}

// NEP461Hash computes the hash the payer signs: sha256 over the Borsh
// serialization of the NEP-366 discriminant followed by the action.
func (d *DelegateAction) NEP461Hash() ([]byte, error) {
	prefix, err := borsh.Serialize(uint32(NEP366DelegateActionPrefix))
	if err != nil {
		return nil, err
	}
	body, err := borsh.Serialize(*d)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(append(prefix, body...))
	return hash[:], nil
}

// VerifySignature checks the Ed25519 signature against the embedded key.
func (s *SignedDelegateAction) VerifySignature() (bool, error) {
	if s.DelegateAction.PublicKey.KeyType != 0 || s.Signature.KeyType != 0 {
		return false, fmt.Errorf("unsupported key type")
	}
	hash, err := s.DelegateAction.NEP461Hash()
	if err != nil {
		return false, err
	}
	pubKey := ed25519.PublicKey(s.DelegateAction.PublicKey.Data[:])
	return ed25519.Verify(pubKey, hash, s.Signature.Data[:]), nil
}

// ExactNearPayload is the scheme payload carried in PaymentPayload.Payload.
// SignedDelegateAction is base64-encoded Borsh.
type ExactNearPayload struct {
	SignedDelegateAction string `json:"signedDelegateAction"`
}

// ToMap converts the payload to a map for JSON marshaling.
func (p *ExactNearPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"signedDelegateAction": p.SignedDelegateAction,
	}
}

// PayloadFromMap creates an ExactNearPayload from a map.
func PayloadFromMap(data map[string]interface{}) (*ExactNearPayload, error) {
	payload := &ExactNearPayload{}

	if sda, ok := data["signedDelegateAction"].(string); ok && sda != "" {
		payload.SignedDelegateAction = sda
	} else {
		return nil, fmt.Errorf("missing or invalid signedDelegateAction field")
	}

	return payload, nil
}

// Decode deserializes the Borsh signed delegate action.
func (p *ExactNearPayload) Decode() (*SignedDelegateAction, error) {
	raw, err := base64.StdEncoding.DecodeString(p.SignedDelegateAction)
	if err != nil {
		return nil, fmt.Errorf("invalid signedDelegateAction encoding: %w", err)
	}

	signed := &SignedDelegateAction{}
	if err := borsh.Deserialize(signed, raw); err != nil {
		return nil, fmt.Errorf("invalid signedDelegateAction Borsh: %w", err)
	}
	return signed, nil
}

// Encode serializes a signed delegate action into payload form.
func Encode(signed *SignedDelegateAction) (*ExactNearPayload, error) {
	raw, err := borsh.Serialize(*signed)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signedDelegateAction: %w", err)
	}
	return &ExactNearPayload{
		SignedDelegateAction: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// ftTransferArgs is the JSON argument shape of NEP-141 ft_transfer.
type ftTransferArgs struct {
	ReceiverID string  `json:"receiver_id"`
	Amount     string  `json:"amount"`
	Memo       *string `json:"memo,omitempty"`
}

// ClientNearSigner signs delegate actions on the client side.
type ClientNearSigner interface {
	// AccountID returns the payer's account id.
	AccountID() string

	// PublicKey returns the payer's Ed25519 public key.
	PublicKey() ed25519.PublicKey

	// Sign signs the NEP-461 hash of a delegate action.
	Sign(ctx context.Context, hash []byte) ([]byte, error)

	// AccessKeyNonce returns the current nonce of the signing access key.
	AccessKeyNonce(ctx context.Context) (uint64, error)

	// BlockHeight returns the current chain height.
	BlockHeight(ctx context.Context) (uint64, error)
}

// FacilitatorNearSigner abstracts RPC access and the relayer account so the
// facilitator logic stays testable without a node.
type FacilitatorNearSigner interface {
	// GetAddresses returns the relayer account ids this facilitator signs with.
	GetAddresses() []string

	// GetFtBalance returns the payer's NEP-141 balance on a token contract.
	GetFtBalance(ctx context.Context, contractID string, accountID string) (*big.Int, error)

	// GetBlockHeight returns the current chain height.
	GetBlockHeight(ctx context.Context) (uint64, error)

	// SubmitDelegateAction wraps the delegate action in a relayer transaction,
	// submits it, and waits for the outcome, returning the transaction hash.
	SubmitDelegateAction(ctx context.Context, signed *SignedDelegateAction) (string, error)
}
