package evm

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	x402 "github.com/x402labs/x402-go"
)

// ExactEvmFacilitator implements the SchemeNetworkFacilitator interface for EVM exact payments (V2)
type ExactEvmFacilitator struct {
	signer FacilitatorEvmSigner
}

// NewExactEvmFacilitator creates a new ExactEvmFacilitator
func NewExactEvmFacilitator(signer FacilitatorEvmSigner) *ExactEvmFacilitator {
	return &ExactEvmFacilitator{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (f *ExactEvmFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the CAIP family pattern for EVM networks
func (f *ExactEvmFacilitator) CaipFamily() string {
	return "eip155:*"
}

// GetExtra returns extra data for the supported kinds endpoint
func (f *ExactEvmFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	return nil
}

// GetSigners returns the signer addresses this facilitator uses
func (f *ExactEvmFacilitator) GetSigners(network x402.Network) []string {
	return f.signer.GetAddresses()
}

// Verify verifies a payment payload against requirements (V2)
func (f *ExactEvmFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	// V2 specific: only handle version 2
	if payload.X402Version != 2 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "v2 only supports x402 version 2",
		}, nil
	}

	// Validate scheme
	if payload.Accepted.Scheme != SchemeExact || requirements.Scheme != SchemeExact {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: x402.ErrCodeUnsupportedScheme,
		}, nil
	}

	// Validate network
	if payload.Accepted.Network != requirements.Network {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrNetworkMismatch,
		}, nil
	}

	// Parse EVM payload
	evmPayload, err := PayloadFromMap(payload.Payload)
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
			InvalidReason: ErrInvalidSignature,
		}, nil
	}

	// Get network configuration
	networkStr := string(requirements.Network)
	config, err := GetNetworkConfig(networkStr)
	if err != nil {
		return x402.VerifyResponse{}, err
	}

	// Get asset info
	assetInfo, err := GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.VerifyResponse{}, err
	}

	// Validate authorization matches requirements
	if !strings.EqualFold(evmPayload.Authorization.To, requirements.PayTo) {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrRecipientMismatch,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Parse and validate amount
	authValue, ok := new(big.Int).SetString(evmPayload.Authorization.Value, 10)
	if !ok {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "invalid authorization value",
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Requirements.Amount is already in the smallest unit
	requiredValue, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("invalid required amount: %s", requirements.Amount),
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	if authValue.Cmp(requiredValue) < 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrAuthorizationValue,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Validate the authorization validity window
	now := big.NewInt(time.Now().Unix())
	validAfter, okAfter := new(big.Int).SetString(evmPayload.Authorization.ValidAfter, 10)
	validBefore, okBefore := new(big.Int).SetString(evmPayload.Authorization.ValidBefore, 10)
	if !okAfter || !okBefore {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "invalid authorization validity window",
			Payer:         evmPayload.Authorization.From,
		}, nil
	}
	if validAfter.Cmp(now) > 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrValidAfterInFuture,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}
	// validBefore must leave room for the settlement transaction to land.
	cutoff := new(big.Int).Add(now, big.NewInt(ValidBeforeBuffer))
	if validBefore.Cmp(cutoff) < 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrValidBeforeExpired,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Check if nonce has been used
	nonceUsed, err := f.checkNonceUsed(ctx, evmPayload.Authorization.From, evmPayload.Authorization.Nonce, assetInfo.Address)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to check nonce: %w", err)
	}
	if nonceUsed {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrNonceAlreadyUsed,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Check balance
	balance, err := f.signer.GetBalance(ctx, evmPayload.Authorization.From, assetInfo.Address)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Cmp(authValue) < 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: x402.ErrCodeInsufficientFunds,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	// Extract token info from requirements
	tokenName := assetInfo.Name
	tokenVersion := assetInfo.Version
	if requirements.Extra != nil {
		if name, ok := requirements.Extra["name"].(string); ok {
			tokenName = name
		}
		if version, ok := requirements.Extra["version"].(string); ok {
			tokenVersion = version
		}
	}

	// Verify signature
	signatureBytes, err := HexToBytes(evmPayload.Signature)
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
			InvalidReason: ErrInvalidSignature,
			Payer:         evmPayload.Authorization.From,
		}, nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   evmPayload.Authorization.From,
	}, nil
}

// Settle settles a payment on-chain (V2)
func (f *ExactEvmFacilitator) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
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
			Network:     requirements.Network,
		}, nil
	}

	// Parse EVM payload
	evmPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("invalid payload: %v", err),
		}, nil
	}

	// Get asset info
	networkStr := string(requirements.Network)
	assetInfo, err := GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.SettleResponse{}, err
	}

	signatureBytes, err := HexToBytes(evmPayload.Signature)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: "invalid signature format",
		}, nil
	}

	// ERC-6492 wrapped signatures need the wallet deployed before settlement
	if IsERC6492Signature(signatureBytes) {
		sigData, err := ParseERC6492Signature(signatureBytes)
		if err != nil {
			return x402.SettleResponse{
				Success:     false,
				ErrorReason: ErrInvalidSignature,
			}, nil
		}
		if err := f.ensureWalletDeployed(ctx, evmPayload.Authorization.From, sigData); err != nil {
			return x402.SettleResponse{
				Success:     false,
				ErrorReason: ErrSmartWalletDeploymentFailed,
				Network:     x402.Network(networkStr),
				Payer:       evmPayload.Authorization.From,
			}, nil
		}
		signatureBytes = sigData.InnerSignature
	}

	// Parse values
	value, _ := new(big.Int).SetString(evmPayload.Authorization.Value, 10)
	validAfter, _ := new(big.Int).SetString(evmPayload.Authorization.ValidAfter, 10)
	validBefore, _ := new(big.Int).SetString(evmPayload.Authorization.ValidBefore, 10)
	nonceBytes, _ := HexToBytes(evmPayload.Authorization.Nonce)

	// Execute transferWithAuthorization. EOA signatures on split-signature
	// networks go through the (v, r, s) overload; everything else uses the
	// bytes overload, which also covers smart wallet signatures.
	var txHash string
	if len(signatureBytes) == 65 && UseSplitSignatureNetworks[networkStr] {
		r := signatureBytes[0:32]
		s := signatureBytes[32:64]
		v := signatureBytes[64]
		txHash, err = f.signer.WriteContract(
			ctx,
			assetInfo.Address,
			TransferWithAuthorizationVRSABI,
			FunctionTransferWithAuthorization,
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
	} else {
		txHash, err = f.signer.WriteContract(
			ctx,
			assetInfo.Address,
			TransferWithAuthorizationBytesABI,
			FunctionTransferWithAuthorization,
			evmPayload.Authorization.From,
			evmPayload.Authorization.To,
			value,
			validAfter,
			validBefore,
			[32]byte(nonceBytes),
			signatureBytes,
		)
	}
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: fmt.Sprintf("failed to execute transfer: %v", err),
			Network:     x402.Network(networkStr),
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
			Network:     x402.Network(networkStr),
			Payer:       evmPayload.Authorization.From,
		}, nil
	}

	if receipt.Status != TxStatusSuccess {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: "transaction failed",
			Transaction: txHash,
			Network:     x402.Network(networkStr),
			Payer:       evmPayload.Authorization.From,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: txHash,
		Network:     x402.Network(networkStr),
		Payer:       evmPayload.Authorization.From,
	}, nil
}

// ensureWalletDeployed deploys an ERC-6492 counterfactual wallet if no code
// exists at the address yet.
func (f *ExactEvmFacilitator) ensureWalletDeployed(ctx context.Context, address string, sigData *ERC6492SignatureData) error {
	code, err := f.signer.GetCode(ctx, address)
	if err != nil {
		return err
	}
	if len(code) > 0 {
		return nil
	}

	factory := BytesToHex(sigData.Factory[:])
	txHash, err := f.signer.SendTransaction(ctx, factory, sigData.FactoryCalldata)
	if err != nil {
		return err
	}
	receipt, err := f.signer.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return err
	}
	if receipt.Status != TxStatusSuccess {
		return fmt.Errorf("wallet deployment transaction failed")
	}
	return nil
}

// checkNonceUsed checks if a nonce has already been used
func (f *ExactEvmFacilitator) checkNonceUsed(ctx context.Context, from string, nonce string, tokenAddress string) (bool, error) {
	nonceBytes, err := HexToBytes(nonce)
	if err != nil {
		return false, err
	}

	result, err := f.signer.ReadContract(
		ctx,
		tokenAddress,
		AuthorizationStateABI,
		FunctionAuthorizationState,
		from,
		[32]byte(nonceBytes),
	)
	if err != nil {
		return false, err
	}

	used, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected result type from authorizationState")
	}

	return used, nil
}

// verifySignature verifies the EIP-712 signature. ERC-6492 wrapped
// signatures are routed through the universal validator; everything else
// goes through the signer, which handles both EOA and EIP-1271.
func (f *ExactEvmFacilitator) verifySignature(
	ctx context.Context,
	authorization ExactEIP3009Authorization,
	signature []byte,
	chainID *big.Int,
	verifyingContract string,
	tokenName string,
	tokenVersion string,
) (bool, error) {
	if IsERC6492Signature(signature) {
		hash, err := HashEIP3009Authorization(authorization, chainID, verifyingContract, tokenName, tokenVersion)
		if err != nil {
			return false, err
		}
		return VerifyERC6492Signature(ctx, f.signer, authorization.From, [32]byte(hash), signature)
	}

	// Create EIP-712 domain
	domain := TypedDataDomain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}

	// Define EIP-712 types
	types := map[string][]TypedDataField{
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
	nonceBytes, _ := HexToBytes(authorization.Nonce)

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

// IsERC6492Signature reports whether the signature carries the ERC-6492
// magic suffix.
func IsERC6492Signature(signature []byte) bool {
	magic, _ := HexToBytes(ERC6492MagicValue)
	if len(signature) < len(magic) {
		return false
	}
	return bytes.Equal(signature[len(signature)-len(magic):], magic)
}
