package client

import (
	"context"
	"fmt"
	"math/big"
	"time"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// ErrFailedToSignPermit2Authorization is the error prefix for Permit2 signing failures.
const ErrFailedToSignPermit2Authorization = "failed to sign permit2 authorization"

// CreatePermit2Payload creates a Permit2 payload using the x402Permit2Proxy witness pattern.
// The spender is set to x402Permit2Proxy, which enforces that funds
// can only be sent to the witness.to address.
func CreatePermit2Payload(
	ctx context.Context,
	signer evm.ClientEvmSigner,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	networkStr := string(requirements.Network)

	// Get chain ID
	chainID, err := evm.GetEvmChainId(networkStr)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	// Create nonce (uint256)
	nonce, err := evm.CreatePermit2Nonce()
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	now := time.Now().Unix()
	validAfter := fmt.Sprintf("%d", now-600) // 10 minutes buffer for clock skew
	timeout := int64(requirements.MaxTimeoutSeconds)
	if timeout <= 0 {
		timeout = 600
	}
	deadline := fmt.Sprintf("%d", now+timeout)

	// Normalize addresses
	tokenAddress := evm.NormalizeAddress(requirements.Asset)
	payTo := evm.NormalizeAddress(requirements.PayTo)

	// Build authorization
	authorization := evm.Permit2Authorization{
		From: signer.Address(),
		Permitted: evm.Permit2TokenPermissions{
			Token:  tokenAddress,
			Amount: requirements.Amount,
		},
		Spender:  evm.X402ExactPermit2ProxyAddress,
		Nonce:    nonce,
		Deadline: deadline,
		Witness: evm.Permit2Witness{
			To:         payTo,
			ValidAfter: validAfter,
			Extra:      "0x",
		},
	}

	// Sign the authorization
	signature, err := signPermit2Authorization(ctx, signer, authorization, chainID)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf(ErrFailedToSignPermit2Authorization+": %w", err)
	}

	// Create payload
	permit2Payload := &evm.ExactPermit2Payload{
		Signature:            evm.BytesToHex(signature),
		Permit2Authorization: authorization,
	}

	return x402.PartialPaymentPayload{
		X402Version: 2,
		Payload:     permit2Payload.ToMap(),
	}, nil
}

// signPermit2Authorization signs the Permit2 authorization using EIP-712.
func signPermit2Authorization(
	ctx context.Context,
	signer evm.ClientEvmSigner,
	authorization evm.Permit2Authorization,
	chainID *big.Int,
) ([]byte, error) {
	// Create EIP-712 domain (Permit2 uses fixed name, no version)
	domain := evm.TypedDataDomain{
		Name:              "Permit2",
		ChainID:           chainID,
		VerifyingContract: evm.PERMIT2Address,
	}

	// Use shared EIP-712 types to ensure consistency with on-chain contract
	types := evm.GetPermit2EIP712Types()

	// Parse values (these are set by us in CreatePermit2Payload, but validate for safety)
	amount, ok := new(big.Int).SetString(authorization.Permitted.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid permitted amount: %s", authorization.Permitted.Amount)
	}
	nonce, ok := new(big.Int).SetString(authorization.Nonce, 10)
	if !ok {
		return nil, fmt.Errorf("invalid nonce: %s", authorization.Nonce)
	}
	deadline, ok := new(big.Int).SetString(authorization.Deadline, 10)
	if !ok {
		return nil, fmt.Errorf("invalid deadline: %s", authorization.Deadline)
	}
	validAfter, ok := new(big.Int).SetString(authorization.Witness.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validAfter: %s", authorization.Witness.ValidAfter)
	}
	extraBytes, err := evm.HexToBytes(authorization.Witness.Extra)
	if err != nil {
		return nil, fmt.Errorf("invalid witness extra: %w", err)
	}

	// Create message with nested structs
	message := map[string]interface{}{
		"permitted": map[string]interface{}{
			"token":  authorization.Permitted.Token,
			"amount": amount,
		},
		"spender":  authorization.Spender,
		"nonce":    nonce,
		"deadline": deadline,
		"witness": map[string]interface{}{
			"extra":      extraBytes,
			"to":         authorization.Witness.To,
			"validAfter": validAfter,
		},
	}

	return signer.SignTypedData(ctx, domain, types, "PermitWitnessTransferFrom", message)
}

// Permit2AllowanceParams contains parameters for checking Permit2 allowance.
type Permit2AllowanceParams struct {
	TokenAddress string
	OwnerAddress string
}

// GetPermit2AllowanceReadParams returns contract read parameters for checking Permit2 allowance.
// Use with a signer's ReadContract method to check if the user has approved Permit2.
func GetPermit2AllowanceReadParams(params Permit2AllowanceParams) (address string, abi []byte, functionName string, args []interface{}) {
	return evm.NormalizeAddress(params.TokenAddress),
		evm.ERC20AllowanceABI,
		"allowance",
		[]interface{}{params.OwnerAddress, evm.PERMIT2Address}
}

// CreatePermit2ApprovalTxData creates transaction data to approve Permit2 to spend tokens.
// The user sends this transaction (paying gas) before using Permit2 flow.
// Returns the target address and calldata.
func CreatePermit2ApprovalTxData(tokenAddress string) (to string, abi []byte, functionName string, args []interface{}) {
	return evm.NormalizeAddress(tokenAddress),
		evm.ERC20ApproveABI,
		"approve",
		[]interface{}{evm.PERMIT2Address, evm.MaxUint256()}
}
