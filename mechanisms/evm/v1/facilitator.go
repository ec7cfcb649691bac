package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/evm"
	"github.com/x402labs/x402-go/types"
)

// ExactEvmFacilitatorV1 implements the SchemeNetworkFacilitatorV1 interface for EVM exact payments (V1)
type ExactEvmFacilitatorV1 struct {
	signer evm.FacilitatorEvmSigner
}

// NewExactEvmFacilitatorV1 creates a new ExactEvmFacilitatorV1
func NewExactEvmFacilitatorV1(signer evm.FacilitatorEvmSigner) *ExactEvmFacilitatorV1 {
	return &ExactEvmFacilitatorV1{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (f *ExactEvmFacilitatorV1) Scheme() string {
	return evm.SchemeExact
}

// CaipFamily returns the CAIP family pattern for EVM networks
func (f *ExactEvmFacilitatorV1) CaipFamily() string {
	return "eip155:*"
}

// GetExtra returns extra data for the supported kinds endpoint
func (f *ExactEvmFacilitatorV1) GetExtra(network x402.Network) map[string]interface{} {
	return nil
}

// GetSigners returns the signer addresses this facilitator uses
func (f *ExactEvmFacilitatorV1) GetSigners(network x402.Network) []string {
	return f.signer.GetAddresses()
}

// extraMap decodes the raw extra field of v1 requirements into a map.
func extraMap(raw *json.RawMessage) map[string]interface{} {
	if raw == nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(*raw, &m); err != nil {
		return nil
	}
	return m
}

// Verify verifies a payment payload against requirements (V1)
func (f *ExactEvmFacilitatorV1) Verify(
	ctx context.Context,
	payload types.PaymentPayloadV1,
	requirements types.PaymentRequirementsV1,
) (x402.VerifyResponse, error) {
	// V1 specific: only handle version 1
	if payload.X402Version != 1 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "v1 only supports x402 version 1",
		}, nil
	}

	// Validate scheme
	if payload.Scheme != evm.SchemeExact || requirements.Scheme != evm.SchemeExact {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: x402.ErrCodeUnsupportedScheme,
		}, nil
	}

	// Validate network
	if payload.Network != requirements.Network {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: evm.ErrNetworkMismatch,
		}, nil
	}

	// Parse EVM payload
	evmPayload, err := evm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("invalid payload: %v", err),
		}, nil
	}

	// Validate signature exists
	if evmPayload.Signature == "" {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: evm.ErrInvalidSignature,
		}, nil
	}

	// Get network configuration
	config, err := GetNetworkConfig(requirements.Network)
	if err != nil {
		return x402.VerifyResponse{}, err
	}

	// Get asset info
	assetInfo, err := GetAssetInfo(requirements.Network, requirements.Asset)
	if err != nil {
		return x402.VerifyResponse{}, err
	}

	// Check EIP-712 domain parameters
	extra := extraMap(requirements.Extra)
	if extra == nil || extra["name"] == nil || extra["version"] == nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "missing_eip712_domain",
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Validate authorization matches requirements
	if !strings.EqualFold(evmPayload.Authorization.To, requirements.PayTo) {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: evm.ErrRecipientMismatch,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Parse and validate amount
	authValue, ok := new(big.Int).SetString(evmPayload.Authorization.Value, 10)
	if !ok || evmPayload.Authorization.Value == "" {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("invalid authorization value: %s", evmPayload.Authorization.Value),
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	requiredValue, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("invalid required amount: %s", requirements.MaxAmountRequired),
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	if authValue.Cmp(requiredValue) < 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: evm.ErrAuthorizationValue,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// V1 specific: Check validBefore is in the future (with 6 second buffer for block time)
	now := time.Now().Unix()
	validBefore, _ := new(big.Int).SetString(evmPayload.Authorization.ValidBefore, 10)
	if validBefore == nil || validBefore.Cmp(big.NewInt(now+evm.ValidBeforeBuffer)) < 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: evm.ErrValidBeforeExpired,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// V1 specific: Check validAfter is not in the future
	validAfter, _ := new(big.Int).SetString(evmPayload.Authorization.ValidAfter, 10)
	if validAfter == nil || validAfter.Cmp(big.NewInt(now)) > 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: evm.ErrValidAfterInFuture,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Check balance
	balance, err := f.signer.GetBalance(ctx, evmPayload.Authorization.From, assetInfo.Address)
	if err == nil && balance.Cmp(requiredValue) < 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: x402.ErrCodeInsufficientFunds,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Extract token info from requirements
	tokenName, _ := extra["name"].(string)
	tokenVersion, _ := extra["version"].(string)

	// Verify signature
	signatureBytes, err := evm.HexToBytes(evmPayload.Signature)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "invalid signature format",
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	valid, err := f.verifySignature(
		ctx,
		evmPayload.Authorization,
		signatureBytes,
		config.ChainID,
		assetInfo.Address,
		tokenName,
		tokenVersion,
	)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to verify signature: %w", err)
	}

	if !valid {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: evm.ErrInvalidSignature,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   evmPayload.Authorization.From,
	}, nil
}

// Settle settles a payment on-chain (V1)
func (f *ExactEvmFacilitatorV1) Settle(
	ctx context.Context,
	payload types.PaymentPayloadV1,
	requirements types.PaymentRequirementsV1,
) (x402.SettleResponse, error) {
	// First verify the payment
	verifyResp, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	if !verifyResp.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResp.InvalidReason,
			Network:     x402.Network(requirements.Network),
		}, nil
	}

	// Parse EVM payload
	evmPayload, err := evm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("invalid payload: %v", err),
			Network:     x402.Network(requirements.Network),
		}, nil
	}

	// Get asset info
	assetInfo, err := GetAssetInfo(requirements.Network, requirements.Asset)
	if err != nil {
		return x402.SettleResponse{}, err
	}

	// Parse signature components (v, r, s)
	signatureBytes, err := evm.HexToBytes(evmPayload.Signature)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: "invalid signature format",
			Network:     x402.Network(requirements.Network),
		}, nil
	}

	if len(signatureBytes) != 65 {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: "invalid signature length",
			Network:     x402.Network(requirements.Network),
		}, nil
	}

	r := signatureBytes[0:32]
	s := signatureBytes[32:64]
	v := signatureBytes[64]

	// Parse values
	value, _ := new(big.Int).SetString(evmPayload.Authorization.Value, 10)
	validAfter, _ := new(big.Int).SetString(evmPayload.Authorization.ValidAfter, 10)
	validBefore, _ := new(big.Int).SetString(evmPayload.Authorization.ValidBefore, 10)
	nonceBytes, _ := evm.HexToBytes(evmPayload.Authorization.Nonce)

	// Execute transferWithAuthorization
	txHash, err := f.signer.WriteContract(
		ctx,
		assetInfo.Address,
		evm.TransferWithAuthorizationVRSABI,
		evm.FunctionTransferWithAuthorization,
		evmPayload.Authorization.From,
		evmPayload.Authorization.To,
		value,
		validAfter,
		validBefore,
		[32]byte(nonceBytes),
		v,
		[32]byte(r),
		[32]byte(s),
	)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("transaction_failed: %v", err),
			Network:     x402.Network(requirements.Network),
			Payer:       evmPayload.Authorization.From,
		}, nil
	}

	// Wait for transaction confirmation
	receipt, err := f.signer.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("failed to get receipt: %v", err),
			Transaction: txHash,
			Network:     x402.Network(requirements.Network),
			Payer:       evmPayload.Authorization.From,
		}, nil
	}

	if receipt.Status != evm.TxStatusSuccess {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: x402.ErrCodeInvalidTransactionState,
			Transaction: txHash,
			Network:     x402.Network(requirements.Network),
			Payer:       evmPayload.Authorization.From,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: txHash,
		Network:     x402.Network(requirements.Network),
		Payer:       evmPayload.Authorization.From,
	}, nil
}

// verifySignature verifies the EIP-712 signature
func (f *ExactEvmFacilitatorV1) verifySignature(
	ctx context.Context,
	authorization evm.ExactEIP3009Authorization,
	signature []byte,
	chainID *big.Int,
	verifyingContract string,
	tokenName string,
	tokenVersion string,
) (bool, error) {
	// Create EIP-712 domain
	domain := evm.TypedDataDomain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}

	// Define EIP-712 types
	types := map[string][]evm.TypedDataField{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"TransferWithAuthorization": {
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "validAfter", Type: "uint256"},
			{Name: "validBefore", Type: "uint256"},
			{Name: "nonce", Type: "bytes32"},
		},
	}

	// Parse values for message
	value, _ := new(big.Int).SetString(authorization.Value, 10)
	validAfter, _ := new(big.Int).SetString(authorization.ValidAfter, 10)
	validBefore, _ := new(big.Int).SetString(authorization.ValidBefore, 10)
	nonceBytes, _ := evm.HexToBytes(authorization.Nonce)

	// Create message
	message := map[string]interface{}{
		"from":        authorization.From,
		"to":          authorization.To,
		"value":       value,
		"validAfter":  validAfter,
		"validBefore": validBefore,
		"nonce":       nonceBytes,
	}

	// Verify the signature
	return f.signer.VerifyTypedData(
		ctx,
		authorization.From,
		domain,
		types,
		"TransferWithAuthorization",
		message,
		signature,
	)
}
