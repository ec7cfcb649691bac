package aptos

import (
	"context"
	"encoding/base64"
	"fmt"

	aptossdk "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/aptos-labs/aptos-go-sdk/crypto"
)

// ExactAptosPayload is the scheme payload carried in PaymentPayload.Payload.
// Both fields are base64-encoded BCS.
type ExactAptosPayload struct {
	Transaction         string `json:"transaction"`
	SenderAuthenticator string `json:"senderAuthenticator"`
}

// ToMap converts the payload to a map for JSON marshaling.
func (p *ExactAptosPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"transaction":         p.Transaction,
		"senderAuthenticator": p.SenderAuthenticator,
	}
}

// PayloadFromMap creates an ExactAptosPayload from a map.
func PayloadFromMap(data map[string]interface{}) (*ExactAptosPayload, error) {
	payload := &ExactAptosPayload{}

	if txn, ok := data["transaction"].(string); ok && txn != "" {
		payload.Transaction = txn
	} else {
		return nil, fmt.Errorf("missing or invalid transaction field")
	}

	if auth, ok := data["senderAuthenticator"].(string); ok && auth != "" {
		payload.SenderAuthenticator = auth
	} else {
		return nil, fmt.Errorf("missing or invalid senderAuthenticator field")
	}

	return payload, nil
}

// DecodeTransaction decodes the base64 BCS RawTransaction.
func (p *ExactAptosPayload) DecodeTransaction() (*aptossdk.RawTransaction, error) {
	raw, err := base64.StdEncoding.DecodeString(p.Transaction)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction encoding: %w", err)
	}

	txn := &aptossdk.RawTransaction{}
	des := bcs.NewDeserializer(raw)
	txn.UnmarshalBCS(des)
	if des.Error() != nil {
		return nil, fmt.Errorf("invalid transaction BCS: %w", des.Error())
	}
	return txn, nil
}

// DecodeAuthenticator decodes the base64 BCS account authenticator.
func (p *ExactAptosPayload) DecodeAuthenticator() (*crypto.AccountAuthenticator, error) {
	raw, err := base64.StdEncoding.DecodeString(p.SenderAuthenticator)
	if err != nil {
		return nil, fmt.Errorf("invalid authenticator encoding: %w", err)
	}

	auth := &crypto.AccountAuthenticator{}
	des := bcs.NewDeserializer(raw)
	auth.UnmarshalBCS(des)
	if des.Error() != nil {
		return nil, fmt.Errorf("invalid authenticator BCS: %w", des.Error())
	}
	return auth, nil
}

// ClientAptosSigner signs raw transactions on the client side.
type ClientAptosSigner interface {
	// AccountAddress returns the sender address as 0x-prefixed hex.
	AccountAddress() string

	// SignTransaction produces the BCS-serialized account authenticator for
	// the given raw transaction.
	SignTransaction(ctx context.Context, rawTxn *aptossdk.RawTransaction) (*crypto.AccountAuthenticator, error)

	// SequenceNumber returns the sender's next sequence number.
	SequenceNumber(ctx context.Context) (uint64, error)
}

// FacilitatorAptosSigner abstracts fullnode access and fee-payer signing so
// the facilitator logic stays testable without a node.
type FacilitatorAptosSigner interface {
	// GetAddresses returns the fee-payer addresses this facilitator signs with.
	GetAddresses() []string

	// GetBalance returns the owner's balance of a fungible asset, by the
	// asset's metadata object address.
	GetBalance(ctx context.Context, owner string, metadataAddress string) (uint64, error)

	// Simulate runs the transaction against the node. A sponsored simulation
	// substitutes the facilitator as fee payer. Returns the VM status when
	// the simulation does not succeed.
	Simulate(ctx context.Context, rawTxn *aptossdk.RawTransaction, senderAuth *crypto.AccountAuthenticator, sponsored bool) (bool, string, error)

	// Submit signs as fee payer when sponsored and submits, returning the
	// transaction hash.
	Submit(ctx context.Context, rawTxn *aptossdk.RawTransaction, senderAuth *crypto.AccountAuthenticator, sponsored bool) (string, error)

	// WaitForTransaction blocks until the transaction is committed and
	// reports whether it executed successfully.
	WaitForTransaction(ctx context.Context, txHash string) (bool, error)
}

// transferCall is the decoded fungible asset transfer an entry function
// payload resolves to.
type transferCall struct {
	MetadataAddress aptossdk.AccountAddress
	Recipient       aptossdk.AccountAddress
	Amount          uint64
}

// decodeTransferCall validates that the entry function is one of the allowed
// fungible asset transfers and decodes its arguments.
func decodeTransferCall(entry *aptossdk.EntryFunction) (*transferCall, error) {
	if entry.Module.Address != aptossdk.AccountOne {
		return nil, fmt.Errorf("entry function module address %s not allowed", entry.Module.Address.StringLong())
	}
	if entry.Module.Name != ModulePrimaryFungibleStore && entry.Module.Name != ModuleFungibleAsset {
		return nil, fmt.Errorf("entry function module %s not allowed", entry.Module.Name)
	}
	if entry.Function != FunctionTransfer {
		return nil, fmt.Errorf("entry function %s not allowed", entry.Function)
	}
	if len(entry.Args) != 3 {
		return nil, fmt.Errorf("expected 3 arguments, got %d", len(entry.Args))
	}

	call := &transferCall{}

	des := bcs.NewDeserializer(entry.Args[0])
	call.MetadataAddress.UnmarshalBCS(des)
	if des.Error() != nil {
		return nil, fmt.Errorf("invalid metadata address argument: %w", des.Error())
	}

	des = bcs.NewDeserializer(entry.Args[1])
	call.Recipient.UnmarshalBCS(des)
	if des.Error() != nil {
		return nil, fmt.Errorf("invalid recipient argument: %w", des.Error())
	}

	des = bcs.NewDeserializer(entry.Args[2])
	call.Amount = des.U64()
	if des.Error() != nil {
		return nil, fmt.Errorf("invalid amount argument: %w", des.Error())
	}

	return call, nil
}

// parseAddress parses a 0x-prefixed hex address, accepting short forms.
func parseAddress(s string) (aptossdk.AccountAddress, error) {
	var addr aptossdk.AccountAddress
	if err := addr.ParseStringRelaxed(s); err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}
