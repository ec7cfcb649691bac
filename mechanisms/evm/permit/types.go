// Package permit implements the EIP-2612 permit payment scheme for EVM
// networks. Unlike the exact scheme's single transferWithAuthorization call,
// settlement here is two calls: permit(...) grants the facilitator an
// allowance, then transferFrom moves the funds to payTo.
package permit

import (
	"fmt"
)

// SchemePermit is the scheme identifier.
const SchemePermit = "permit"

// DeadlineBufferSeconds is how much remaining validity a permit deadline must
// have at verification time.
const DeadlineBufferSeconds = 6

// Stable error tags
const (
	ErrInvalidPayload       = "invalid_permit_payload"
	ErrInvalidSignature     = "invalid_permit_signature"
	ErrInvalidSpender       = "invalid_permit_spender"
	ErrDeadlineExpired      = "permit_deadline_expired"
	ErrInsufficientAmount   = "permit_insufficient_amount"
	ErrNonceMismatch        = "permit_nonce_mismatch"
	ErrPermitCallFailed     = "permit_call_failed"
	ErrTransferFromFailed   = "permit_transfer_from_failed"
)

// PermitDomain is the EIP-712 domain the permit was signed over. ChainID is a
// decimal string so the payload survives JSON round-trips without float loss.
type PermitDomain struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

// PermitAuthorization is the signed Permit message.
type PermitAuthorization struct {
	Owner    string       `json:"owner"`
	Spender  string       `json:"spender"`
	Value    string       `json:"value"`
	Nonce    string       `json:"nonce"`
	Deadline string       `json:"deadline"`
	Domain   PermitDomain `json:"domain"`
}

// PermitPayload is the scheme payload carried in PaymentPayload.Payload.
type PermitPayload struct {
	Signature string              `json:"signature"`
	Permit    PermitAuthorization `json:"permit"`
}

// ToMap converts a PermitPayload to a map for JSON marshaling.
func (p *PermitPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"signature": p.Signature,
		"permit": map[string]interface{}{
			"owner":    p.Permit.Owner,
			"spender":  p.Permit.Spender,
			"value":    p.Permit.Value,
			"nonce":    p.Permit.Nonce,
			"deadline": p.Permit.Deadline,
			"domain": map[string]interface{}{
				"name":              p.Permit.Domain.Name,
				"version":           p.Permit.Domain.Version,
				"chainId":           p.Permit.Domain.ChainID,
				"verifyingContract": p.Permit.Domain.VerifyingContract,
			},
		},
	}
}

// PayloadFromMap creates a PermitPayload from a map.
// Returns an error if required fields are missing or malformed.
func PayloadFromMap(data map[string]interface{}) (*PermitPayload, error) {
	payload := &PermitPayload{}

	if sig, ok := data["signature"].(string); ok {
		payload.Signature = sig
	} else {
		return nil, fmt.Errorf("missing or invalid signature field")
	}

	permit, ok := data["permit"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid permit field")
	}

	if owner, ok := permit["owner"].(string); ok {
		payload.Permit.Owner = owner
	} else {
		return nil, fmt.Errorf("missing or invalid permit.owner field")
	}

	if spender, ok := permit["spender"].(string); ok {
		payload.Permit.Spender = spender
	} else {
		return nil, fmt.Errorf("missing or invalid permit.spender field")
	}

	if value, ok := permit["value"].(string); ok {
		payload.Permit.Value = value
	} else {
		return nil, fmt.Errorf("missing or invalid permit.value field")
	}

	if nonce, ok := permit["nonce"].(string); ok {
		payload.Permit.Nonce = nonce
	} else {
		return nil, fmt.Errorf("missing or invalid permit.nonce field")
	}

	if deadline, ok := permit["deadline"].(string); ok {
		payload.Permit.Deadline = deadline
	} else {
		return nil, fmt.Errorf("missing or invalid permit.deadline field")
	}

	domain, ok := permit["domain"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid permit.domain field")
	}

	if name, ok := domain["name"].(string); ok {
		payload.Permit.Domain.Name = name
	}
	if version, ok := domain["version"].(string); ok {
		payload.Permit.Domain.Version = version
	}
	if chainID, ok := domain["chainId"].(string); ok {
		payload.Permit.Domain.ChainID = chainID
	} else {
		return nil, fmt.Errorf("missing or invalid permit.domain.chainId field")
	}
	if contract, ok := domain["verifyingContract"].(string); ok {
		payload.Permit.Domain.VerifyingContract = contract
	} else {
		return nil, fmt.Errorf("missing or invalid permit.domain.verifyingContract field")
	}

	return payload, nil
}

// ERC20PermitABI covers the EIP-2612 permit entry point.
var ERC20PermitABI = []byte(`[
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "deadline", "type": "uint256"},
			{"name": "v", "type": "uint8"},
			{"name": "r", "type": "bytes32"},
			{"name": "s", "type": "bytes32"}
		],
		"name": "permit",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

// ERC20TransferFromABI covers the standard transferFrom entry point.
var ERC20TransferFromABI = []byte(`[
	{
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

const (
	FunctionPermit       = "permit"
	FunctionTransferFrom = "transferFrom"
)
