package offerreceipt

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/x402labs/x402-go/mechanisms/evm"
)

// EIP712Signer signs offers and receipts as EIP-712 typed data with an EVM
// key. The signer identity is the signing address.
type EIP712Signer struct {
	signer  evm.ClientEvmSigner
	chainID *big.Int
}

// NewEIP712Signer creates an EIP712Signer.
func NewEIP712Signer(signer evm.ClientEvmSigner, chainID *big.Int) *EIP712Signer {
	return &EIP712Signer{
		signer:  signer,
		chainID: chainID,
	}
}

// offerReceiptDomain is the EIP-712 domain offers and receipts are signed
// under.
func (s *EIP712Signer) domain() evm.TypedDataDomain {
	return evm.TypedDataDomain{
		Name:    "x402 Offer Receipt",
		Version: "1",
		ChainID: s.chainID,
	}
}

var offerTypes = map[string][]evm.TypedDataField{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	"Offer": {
		{Name: "resource", Type: "string"},
		{Name: "accepts", Type: "string"},
		{Name: "timestamp", Type: "uint256"},
		{Name: "nonce", Type: "string"},
	},
}

var receiptTypes = map[string][]evm.TypedDataField{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	"Receipt": {
		{Name: "resource", Type: "string"},
		{Name: "network", Type: "string"},
		{Name: "payer", Type: "string"},
		{Name: "transaction", Type: "string"},
		{Name: "amount", Type: "string"},
		{Name: "asset", Type: "string"},
		{Name: "timestamp", Type: "uint256"},
	},
}

// SignOffer signs an offer. The accepts list is signed as canonical JSON.
func (s *EIP712Signer) SignOffer(offer Offer) (*SignedEnvelope, error) {
	accepts, err := json.Marshal(offer.Accepts)
	if err != nil {
		return nil, err
	}
	message := map[string]interface{}{
		"resource":  offer.Resource,
		"accepts":   string(accepts),
		"timestamp": big.NewInt(offer.Timestamp),
		"nonce":     offer.Nonce,
	}
	signature, err := s.signer.SignTypedData(context.Background(), s.domain(), offerTypes, "Offer", message)
	if err != nil {
		return nil, err
	}
	return &SignedEnvelope{
		Format:    FormatEIP712,
		Signer:    s.signer.Address(),
		Signature: evm.BytesToHex(signature),
	}, nil
}

// SignReceipt signs a receipt.
func (s *EIP712Signer) SignReceipt(receipt Receipt) (*SignedEnvelope, error) {
	message := map[string]interface{}{
		"resource":    receipt.Resource,
		"network":     receipt.Network,
		"payer":       receipt.Payer,
		"transaction": receipt.Transaction,
		"amount":      receipt.Amount,
		"asset":       receipt.Asset,
		"timestamp":   big.NewInt(receipt.Timestamp),
	}
	signature, err := s.signer.SignTypedData(context.Background(), s.domain(), receiptTypes, "Receipt", message)
	if err != nil {
		return nil, err
	}
	return &SignedEnvelope{
		Format:    FormatEIP712,
		Signer:    s.signer.Address(),
		Signature: evm.BytesToHex(signature),
	}, nil
}
