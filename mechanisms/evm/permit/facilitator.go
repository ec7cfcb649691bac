package permit

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// PermitEvmFacilitator implements the SchemeNetworkFacilitator interface for
// EIP-2612 permit payments.
type PermitEvmFacilitator struct {
	signer evm.FacilitatorEvmSigner
}

// NewPermitEvmFacilitator creates a new PermitEvmFacilitator
func NewPermitEvmFacilitator(signer evm.FacilitatorEvmSigner) *PermitEvmFacilitator {
	return &PermitEvmFacilitator{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (f *PermitEvmFacilitator) Scheme() string {
	return SchemePermit
}

// CaipFamily returns the CAIP family pattern for EVM networks
func (f *PermitEvmFacilitator) CaipFamily() string {
	return "eip155:*"
}

// GetExtra advertises the spender address clients must sign the permit for.
func (f *PermitEvmFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	addresses := f.signer.GetAddresses()
	if len(addresses) == 0 {
		return nil
	}
	return map[string]interface{}{
		"spender": addresses[0],
	}
}

// GetSigners returns the signer addresses this facilitator uses
func (f *PermitEvmFacilitator) GetSigners(network x402.Network) []string {
	return f.signer.GetAddresses()
}

// Verify verifies a permit payload against requirements
func (f *PermitEvmFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 2 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "v2 only supports x402 version 2",
		}, nil
	}

	if payload.Accepted.Scheme != SchemePermit || requirements.Scheme != SchemePermit {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: x402.ErrCodeUnsupportedScheme,
		}, nil
	}

	if payload.Accepted.Network != requirements.Network {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: "network_mismatch",
		}, nil
	}

	permitPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrInvalidPayload,
		}, nil
	}

	networkStr := string(requirements.Network)
	config, err := evm.GetNetworkConfig(networkStr)
	if err != nil {
		return x402.VerifyResponse{}, err
	}

	assetInfo, err := evm.GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.VerifyResponse{}, err
	}

	owner := permitPayload.Permit.Owner

	// The spender must be one of our signers, or payTo when no facilitator
	// signer is configured in the requirements flow.
	if !f.isAcceptableSpender(permitPayload.Permit.Spender, requirements.PayTo) {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrInvalidSpender,
			Payer:         owner,
		}, nil
	}

	// Deadline with buffer
	deadline, ok := new(big.Int).SetString(permitPayload.Permit.Deadline, 10)
	if !ok || deadline.Int64() < time.Now().Unix()+DeadlineBufferSeconds {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrDeadlineExpired,
			Payer:         owner,
		}, nil
	}

	// Value covers the requirement
	value, ok := new(big.Int).SetString(permitPayload.Permit.Value, 10)
	if !ok {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrInvalidPayload,
			Payer:         owner,
		}, nil
	}
	requiredValue, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return x402.VerifyResponse{}, fmt.Errorf("invalid required amount: %s", requirements.Amount)
	}
	if value.Cmp(requiredValue) < 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrInsufficientAmount,
			Payer:         owner,
		}, nil
	}

	// Nonce must match the token's current on-chain nonce
	currentNonce, err := f.readNonce(ctx, assetInfo.Address, owner)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to read permit nonce: %w", err)
	}
	payloadNonce, ok := new(big.Int).SetString(permitPayload.Permit.Nonce, 10)
	if !ok || currentNonce.Cmp(payloadNonce) != 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrNonceMismatch,
			Payer:         owner,
		}, nil
	}

	// Balance check
	balance, err := f.signer.GetBalance(ctx, owner, assetInfo.Address)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Cmp(value) < 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: x402.ErrCodeInsufficientFunds,
			Payer:         owner,
		}, nil
	}

	// Signature recovery over the Permit typed data
	signatureBytes, err := evm.HexToBytes(permitPayload.Signature)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrInvalidSignature,
			Payer:         owner,
		}, nil
	}

	chainID, ok := new(big.Int).SetString(permitPayload.Permit.Domain.ChainID, 10)
	if !ok || chainID.Cmp(config.ChainID) != 0 {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrInvalidPayload,
			Payer:         owner,
		}, nil
	}

	domain := evm.TypedDataDomain{
		Name:              permitPayload.Permit.Domain.Name,
		Version:           permitPayload.Permit.Domain.Version,
		ChainID:           chainID,
		VerifyingContract: permitPayload.Permit.Domain.VerifyingContract,
	}

	message := map[string]interface{}{
		"owner":    owner,
		"spender":  permitPayload.Permit.Spender,
		"value":    value,
		"nonce":    payloadNonce,
		"deadline": deadline,
	}

	valid, err := f.signer.VerifyTypedData(ctx, owner, domain, evm.GetEIP2612EIP712Types(), "Permit", message, signatureBytes)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to verify signature: %w", err)
	}
	if !valid {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrInvalidSignature,
			Payer:         owner,
		}, nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   owner,
	}, nil
}

// Settle applies the permit on-chain and then pulls the funds with
// transferFrom. Either call reverting is a failure.
func (f *PermitEvmFacilitator) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	verifyResp, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	if !verifyResp.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResp.InvalidReason,
			Network:     requirements.Network,
			Payer:       verifyResp.Payer,
		}, nil
	}

	permitPayload, _ := PayloadFromMap(payload.Payload)
	networkStr := string(requirements.Network)

	assetInfo, err := evm.GetAssetInfo(networkStr, requirements.Asset)
	if err != nil {
		return x402.SettleResponse{}, err
	}

	signatureBytes, _ := evm.HexToBytes(permitPayload.Signature)
	if len(signatureBytes) != 65 {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrInvalidSignature,
			Network:     x402.Network(networkStr),
			Payer:       permitPayload.Permit.Owner,
		}, nil
	}

	value, _ := new(big.Int).SetString(permitPayload.Permit.Value, 10)
	deadline, _ := new(big.Int).SetString(permitPayload.Permit.Deadline, 10)
	r := signatureBytes[0:32]
	s := signatureBytes[32:64]
	v := signatureBytes[64]

	// permit(owner, spender, value, deadline, v, r, s)
	permitTx, err := f.signer.WriteContract(
		ctx,
		assetInfo.Address,
		ERC20PermitABI,
		FunctionPermit,
		permitPayload.Permit.Owner,
		permitPayload.Permit.Spender,
		value,
		deadline,
		v,
		[32]byte(r),
		[32]byte(s),
	)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrPermitCallFailed,
			Network:     x402.Network(networkStr),
			Payer:       permitPayload.Permit.Owner,
		}, nil
	}

	receipt, err := f.signer.WaitForTransactionReceipt(ctx, permitTx)
	if err != nil || receipt.Status != evm.TxStatusSuccess {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrPermitCallFailed,
			Transaction: permitTx,
			Network:     x402.Network(networkStr),
			Payer:       permitPayload.Permit.Owner,
		}, nil
	}

	// transferFrom(owner, payTo, value)
	transferTx, err := f.signer.WriteContract(
		ctx,
		assetInfo.Address,
		ERC20TransferFromABI,
		FunctionTransferFrom,
		permitPayload.Permit.Owner,
		requirements.PayTo,
		value,
	)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrTransferFromFailed,
			Network:     x402.Network(networkStr),
			Payer:       permitPayload.Permit.Owner,
		}, nil
	}

	receipt, err = f.signer.WaitForTransactionReceipt(ctx, transferTx)
	if err != nil || receipt.Status != evm.TxStatusSuccess {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrTransferFromFailed,
			Transaction: transferTx,
			Network:     x402.Network(networkStr),
			Payer:       permitPayload.Permit.Owner,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: transferTx,
		Network:     x402.Network(networkStr),
		Payer:       permitPayload.Permit.Owner,
	}, nil
}

// isAcceptableSpender accepts any of our signer addresses, or payTo as the
// no-facilitator fallback.
func (f *PermitEvmFacilitator) isAcceptableSpender(spender, payTo string) bool {
	for _, addr := range f.signer.GetAddresses() {
		if strings.EqualFold(spender, addr) {
			return true
		}
	}
	return strings.EqualFold(spender, payTo)
}

// readNonce reads the token's current nonces(owner)
func (f *PermitEvmFacilitator) readNonce(ctx context.Context, tokenAddress, owner string) (*big.Int, error) {
	result, err := f.signer.ReadContract(ctx, tokenAddress, evm.EIP2612NoncesABI, "nonces", owner)
	if err != nil {
		return nil, err
	}
	nonce, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from nonces")
	}
	return nonce, nil
}
