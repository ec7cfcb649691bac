package facilitator

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/extensions/eip2612gassponsor"
	"github.com/x402labs/x402-go/extensions/erc20approvalgassponsor"
	"github.com/x402labs/x402-go/mechanisms/evm"
)

// VerifyPermit2 verifies a Permit2 payment payload.
func VerifyPermit2(
	ctx context.Context,
	signer evm.FacilitatorEvmSigner,
	fctx *x402.FacilitatorContext,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
	permit2Payload *evm.ExactPermit2Payload,
) (*x402.VerifyResponse, error) {
	payer := permit2Payload.Permit2Authorization.From

	// Verify scheme matches
	if payload.Accepted.Scheme != evm.SchemeExact || requirements.Scheme != evm.SchemeExact {
		return nil, x402.NewVerifyError(ErrUnsupportedPayloadType, payer, "scheme mismatch")
	}

	// Verify network matches
	if payload.Accepted.Network != requirements.Network {
		return nil, x402.NewVerifyError(ErrNetworkMismatch, payer, "network mismatch")
	}

	chainID, err := evm.GetEvmChainId(string(requirements.Network))
	if err != nil {
		return nil, x402.NewVerifyError(ErrFailedToGetNetworkConfig, payer, err.Error())
	}

	tokenAddress := evm.NormalizeAddress(requirements.Asset)

	// Verify spender is x402ExactPermit2Proxy
	if !strings.EqualFold(permit2Payload.Permit2Authorization.Spender, evm.X402ExactPermit2ProxyAddress) {
		return nil, x402.NewVerifyError(ErrPermit2InvalidSpender, payer, "invalid spender")
	}

	// Verify witness.to matches payTo
	if !strings.EqualFold(permit2Payload.Permit2Authorization.Witness.To, requirements.PayTo) {
		return nil, x402.NewVerifyError(ErrPermit2RecipientMismatch, payer, "recipient mismatch")
	}

	// Parse and verify deadline not expired (with buffer for block time)
	now := time.Now().Unix()
	deadline, ok := new(big.Int).SetString(permit2Payload.Permit2Authorization.Deadline, 10)
	if !ok {
		return nil, x402.NewVerifyError(ErrInvalidPayload, payer, "invalid deadline format")
	}
	deadlineThreshold := big.NewInt(now + evm.Permit2DeadlineBuffer)
	if deadline.Cmp(deadlineThreshold) < 0 {
		return nil, x402.NewVerifyError(ErrPermit2DeadlineExpired, payer, "deadline expired")
	}

	// Parse and verify validAfter is not in the future
	validAfter, ok := new(big.Int).SetString(permit2Payload.Permit2Authorization.Witness.ValidAfter, 10)
	if !ok {
		return nil, x402.NewVerifyError(ErrInvalidPayload, payer, "invalid validAfter format")
	}
	nowBig := big.NewInt(now)
	if validAfter.Cmp(nowBig) > 0 {
		return nil, x402.NewVerifyError(ErrPermit2NotYetValid, payer, "not yet valid")
	}

	// Parse and verify amount is sufficient
	authAmount, ok := new(big.Int).SetString(permit2Payload.Permit2Authorization.Permitted.Amount, 10)
	if !ok {
		return nil, x402.NewVerifyError(ErrInvalidPayload, payer, "invalid permitted amount format")
	}
	requiredAmount, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return nil, x402.NewVerifyError(ErrInvalidRequiredAmount, payer, "invalid required amount format")
	}
	if authAmount.Cmp(requiredAmount) < 0 {
		return nil, x402.NewVerifyError(ErrPermit2InsufficientAmount, payer, "insufficient amount")
	}

	// Verify token matches
	if !strings.EqualFold(permit2Payload.Permit2Authorization.Permitted.Token, requirements.Asset) {
		return nil, x402.NewVerifyError(ErrPermit2TokenMismatch, payer, "token mismatch")
	}

	// Verify signature
	signatureBytes, err := evm.HexToBytes(permit2Payload.Signature)
	if err != nil {
		return nil, x402.NewVerifyError(ErrInvalidSignatureFormat, payer, err.Error())
	}

	valid, err := verifyPermit2Signature(ctx, signer, permit2Payload.Permit2Authorization, signatureBytes, chainID)
	if err != nil || !valid {
		return nil, x402.NewVerifyError(ErrPermit2InvalidSignature, payer, "invalid signature")
	}

	// Check Permit2 allowance
	allowance, err := signer.ReadContract(ctx, tokenAddress, evm.ERC20AllowanceABI, "allowance",
		common.HexToAddress(payer), common.HexToAddress(evm.PERMIT2Address))
	if err == nil {
		if allowanceBig, ok := allowance.(*big.Int); ok && allowanceBig.Cmp(requiredAmount) < 0 {
			// Allowance insufficient: a gas sponsoring extension can set it
			// during settlement.
			if reason := checkGasSponsoringExtensions(ctx, signer, fctx, payload, payer, tokenAddress, chainID); reason != "" {
				return nil, x402.NewVerifyError(reason, payer, "permit2 allowance required")
			}
		}
	}

	// Check balance
	balance, err := signer.GetBalance(ctx, payer, tokenAddress)
	if err == nil && balance.Cmp(requiredAmount) < 0 {
		return nil, x402.NewVerifyError(ErrInsufficientBalance, payer, "insufficient balance")
	}

	return &x402.VerifyResponse{
		IsValid: true,
		Payer:   payer,
	}, nil
}

// checkGasSponsoringExtensions checks whether an attached gas sponsoring
// extension can establish the missing Permit2 allowance at settle time.
// Returns an empty string when a usable extension is attached and valid.
func checkGasSponsoringExtensions(
	ctx context.Context,
	signer evm.FacilitatorEvmSigner,
	fctx *x402.FacilitatorContext,
	payload x402.PaymentPayload,
	payer string,
	tokenAddress string,
	chainID *big.Int,
) string {
	eip2612Info, _ := eip2612gassponsor.ExtractEip2612GasSponsoringInfo(payload.Extensions)
	if eip2612Info != nil {
		return validateEip2612PermitForPayment(eip2612Info, payer, tokenAddress)
	}

	erc20Info, _ := erc20approvalgassponsor.ExtractInfo(payload.Extensions)
	if erc20Info != nil {
		if batchSignerFromContext(fctx) == nil {
			return ErrErc20GasSponsoringNotConfigured
		}
		return validateErc20ApprovalForPayment(ctx, signer, erc20Info, payer, tokenAddress, chainID)
	}

	return ErrPermit2AllowanceRequired
}

// batchSignerFromContext extracts the ERC-20 approval batch signer from the
// facilitator context, or nil when the extension is not configured.
func batchSignerFromContext(fctx *x402.FacilitatorContext) erc20approvalgassponsor.SmartWalletBatchSigner {
	ext := fctx.GetExtension(erc20approvalgassponsor.ERC20ApprovalGasSponsoring)
	facilitatorExt, ok := ext.(*erc20approvalgassponsor.FacilitatorExt)
	if !ok || facilitatorExt.SmartWalletSigner == nil {
		return nil
	}
	return facilitatorExt.SmartWalletSigner
}

// SettlePermit2 settles a Permit2 payment by calling x402ExactPermit2Proxy.settle().
//
// When an EIP-2612 gas sponsoring extension is attached, the settlement uses
// settleWithPermit so the allowance is established in the same transaction.
// When a raw ERC-20 approval extension is attached, the approval and the
// settle are submitted as an atomic batch through the configured smart wallet.
func SettlePermit2(
	ctx context.Context,
	signer evm.FacilitatorEvmSigner,
	fctx *x402.FacilitatorContext,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
	permit2Payload *evm.ExactPermit2Payload,
) (*x402.SettleResponse, error) {
	network := x402.Network(payload.Accepted.Network)
	payer := permit2Payload.Permit2Authorization.From

	// Re-verify before settling
	verifyResp, err := VerifyPermit2(ctx, signer, fctx, payload, requirements, permit2Payload)
	if err != nil {
		ve := &x402.VerifyError{}
		if errors.As(err, &ve) {
			return nil, x402.NewSettleError(ve.InvalidReason, ve.Payer, network, "", ve.InvalidMessage)
		}
		return nil, x402.NewSettleError(ErrVerificationFailed, payer, network, "", err.Error())
	}

	// Parse values for contract call (validated during verify, but check again for safety)
	amount, ok := new(big.Int).SetString(permit2Payload.Permit2Authorization.Permitted.Amount, 10)
	if !ok {
		return nil, x402.NewSettleError(ErrInvalidPayload, payer, network, "", "invalid permitted amount")
	}
	nonce, ok := new(big.Int).SetString(permit2Payload.Permit2Authorization.Nonce, 10)
	if !ok {
		return nil, x402.NewSettleError(ErrInvalidPayload, payer, network, "", "invalid nonce")
	}
	deadline, ok := new(big.Int).SetString(permit2Payload.Permit2Authorization.Deadline, 10)
	if !ok {
		return nil, x402.NewSettleError(ErrInvalidPayload, payer, network, "", "invalid deadline")
	}
	validAfter, ok := new(big.Int).SetString(permit2Payload.Permit2Authorization.Witness.ValidAfter, 10)
	if !ok {
		return nil, x402.NewSettleError(ErrInvalidPayload, payer, network, "", "invalid validAfter")
	}
	extraBytes, err := evm.HexToBytes(permit2Payload.Permit2Authorization.Witness.Extra)
	if err != nil {
		return nil, x402.NewSettleError(ErrInvalidPayload, payer, network, "", "invalid witness extra")
	}
	signatureBytes, err := evm.HexToBytes(permit2Payload.Signature)
	if err != nil {
		return nil, x402.NewSettleError(ErrInvalidSignatureFormat, payer, network, "", "invalid signature format")
	}

	// Create struct args for the settle call
	// The ABI expects: settle(permit, owner, witness, signature)
	permitStruct := struct {
		Permitted struct {
			Token  common.Address
			Amount *big.Int
		}
		Nonce    *big.Int
		Deadline *big.Int
	}{
		Permitted: struct {
			Token  common.Address
			Amount *big.Int
		}{
			Token:  common.HexToAddress(permit2Payload.Permit2Authorization.Permitted.Token),
			Amount: amount,
		},
		Nonce:    nonce,
		Deadline: deadline,
	}

	witnessStruct := struct {
		To         common.Address
		ValidAfter *big.Int
		Extra      []byte
	}{
		To:         common.HexToAddress(permit2Payload.Permit2Authorization.Witness.To),
		ValidAfter: validAfter,
		Extra:      extraBytes,
	}

	// Check for gas sponsoring extensions
	eip2612Info, _ := eip2612gassponsor.ExtractEip2612GasSponsoringInfo(payload.Extensions)
	erc20Info, _ := erc20approvalgassponsor.ExtractInfo(payload.Extensions)

	var txHash string
	var receiptErr error

	switch {
	case eip2612Info != nil:
		// Use settleWithPermit - includes the EIP-2612 permit
		v, r, s, splitErr := splitEip2612Signature(eip2612Info.Signature)
		if splitErr != nil {
			return nil, x402.NewSettleError(ErrInvalidPayload, payer, network, "", "invalid eip2612 signature format")
		}

		eip2612Value, ok := new(big.Int).SetString(eip2612Info.Amount, 10)
		if !ok {
			return nil, x402.NewSettleError(ErrInvalidPayload, payer, network, "", "invalid eip2612 amount")
		}
		eip2612Deadline, ok := new(big.Int).SetString(eip2612Info.Deadline, 10)
		if !ok {
			return nil, x402.NewSettleError(ErrInvalidPayload, payer, network, "", "invalid eip2612 deadline")
		}

		permit2612Struct := struct {
			Value    *big.Int
			Deadline *big.Int
			R        [32]byte
			S        [32]byte
			V        uint8
		}{
			Value:    eip2612Value,
			Deadline: eip2612Deadline,
			R:        r,
			S:        s,
			V:        v,
		}

		txHash, err = signer.WriteContract(
			ctx,
			evm.X402ExactPermit2ProxyAddress,
			evm.X402ExactPermit2ProxySettleWithPermitABI,
			evm.FunctionSettleWithPermit,
			permit2612Struct,
			permitStruct,
			common.HexToAddress(payer),
			witnessStruct,
			signatureBytes,
		)
		if err == nil {
			receiptErr = waitForSettleReceipt(ctx, signer, txHash)
		}

	case erc20Info != nil:
		// Batch the raw approval and the settle into one atomic transaction
		batchSigner := batchSignerFromContext(fctx)
		if batchSigner == nil {
			return nil, x402.NewSettleError(ErrErc20GasSponsoringNotConfigured, payer, network, "", "no smart wallet batch signer configured")
		}

		approveCalldata, cdErr := extractCalldataFromSignedTx(erc20Info.SignedTransaction)
		if cdErr != nil {
			return nil, x402.NewSettleError(ErrErc20InvalidSignedTx, payer, network, "", cdErr.Error())
		}

		settleABI, abiErr := ethabi.JSON(bytes.NewReader(evm.X402ExactPermit2ProxySettleABI))
		if abiErr != nil {
			return nil, x402.NewSettleError(ErrFailedToExecuteTransfer, payer, network, "", abiErr.Error())
		}
		settleCalldata, packErr := settleABI.Pack(
			evm.FunctionSettle,
			permitStruct,
			common.HexToAddress(payer),
			witnessStruct,
			signatureBytes,
		)
		if packErr != nil {
			return nil, x402.NewSettleError(ErrFailedToExecuteTransfer, payer, network, "", packErr.Error())
		}

		calls := []erc20approvalgassponsor.BatchCall{
			{To: evm.NormalizeAddress(permit2Payload.Permit2Authorization.Permitted.Token), Data: approveCalldata},
			{To: evm.X402ExactPermit2ProxyAddress, Data: settleCalldata},
		}

		txHash, err = batchSigner.SendBatchTransaction(ctx, calls)
		if err == nil {
			var receipt *evm.TransactionReceipt
			receipt, receiptErr = batchSigner.WaitForTransactionReceipt(ctx, txHash)
			if receiptErr == nil && receipt.Status != evm.TxStatusSuccess {
				return nil, x402.NewSettleError(ErrTransactionFailed, payer, network, txHash, "")
			}
		}

	default:
		// Standard settle - no gas sponsoring extension
		txHash, err = signer.WriteContract(
			ctx,
			evm.X402ExactPermit2ProxyAddress,
			evm.X402ExactPermit2ProxySettleABI,
			evm.FunctionSettle,
			permitStruct,
			common.HexToAddress(payer),
			witnessStruct,
			signatureBytes,
		)
		if err == nil {
			receiptErr = waitForSettleReceipt(ctx, signer, txHash)
		}
	}

	if err != nil {
		errorReason := parsePermit2Error(err)
		return nil, x402.NewSettleError(errorReason, payer, network, "", err.Error())
	}
	if receiptErr != nil {
		ve := &x402.SettleError{}
		if errors.As(receiptErr, &ve) {
			return nil, receiptErr
		}
		return nil, x402.NewSettleError(ErrFailedToGetReceipt, payer, network, txHash, receiptErr.Error())
	}

	return &x402.SettleResponse{
		Success:     true,
		Transaction: txHash,
		Network:     network,
		Payer:       verifyResp.Payer,
	}, nil
}

// waitForSettleReceipt waits for the settle transaction and checks its status.
func waitForSettleReceipt(ctx context.Context, signer evm.FacilitatorEvmSigner, txHash string) error {
	receipt, err := signer.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return err
	}
	if receipt.Status != evm.TxStatusSuccess {
		return x402.NewSettleError(ErrTransactionFailed, "", "", txHash, "")
	}
	return nil
}

// verifyPermit2Signature verifies the Permit2 EIP-712 signature.
func verifyPermit2Signature(
	ctx context.Context,
	signer evm.FacilitatorEvmSigner,
	authorization evm.Permit2Authorization,
	signature []byte,
	chainID *big.Int,
) (bool, error) {
	hash, err := evm.HashPermit2Authorization(authorization, chainID)
	if err != nil {
		return false, err
	}

	var hash32 [32]byte
	copy(hash32[:], hash)

	// Use universal verification (supports EOA and EIP-1271)
	valid, _, err := evm.VerifyUniversalSignature(ctx, signer, authorization.From, hash32, signature, true)
	return valid, err
}

// validateEip2612PermitForPayment validates the EIP-2612 extension data.
// Returns an empty string if valid, or an error reason string.
func validateEip2612PermitForPayment(info *eip2612gassponsor.Info, payer string, tokenAddress string) string {
	if !eip2612gassponsor.ValidateEip2612GasSponsoringInfo(info) {
		return "invalid_eip2612_extension_format"
	}

	// Verify from matches payer
	if !strings.EqualFold(info.From, payer) {
		return "eip2612_from_mismatch"
	}

	// Verify asset matches token
	if !strings.EqualFold(info.Asset, tokenAddress) {
		return "eip2612_asset_mismatch"
	}

	// Verify spender is Permit2
	if !strings.EqualFold(info.Spender, evm.PERMIT2Address) {
		return "eip2612_spender_not_permit2"
	}

	// Verify deadline not expired
	// Use 6 second buffer consistent with Permit2 deadline check
	now := time.Now().Unix()
	deadline, ok := new(big.Int).SetString(info.Deadline, 10)
	if !ok || deadline.Int64() < now+evm.Permit2DeadlineBuffer {
		return "eip2612_deadline_expired"
	}

	return ""
}

// splitEip2612Signature splits a 65-byte hex signature into v, r, s.
func splitEip2612Signature(signature string) (uint8, [32]byte, [32]byte, error) {
	sigBytes, err := evm.HexToBytes(signature)
	if err != nil {
		return 0, [32]byte{}, [32]byte{}, err
	}

	if len(sigBytes) != 65 {
		return 0, [32]byte{}, [32]byte{}, errors.New("signature must be 65 bytes")
	}

	var r, s [32]byte
	copy(r[:], sigBytes[0:32])
	copy(s[:], sigBytes[32:64])
	v := sigBytes[64]

	return v, r, s, nil
}

// parsePermit2Error extracts meaningful error codes from contract reverts.
func parsePermit2Error(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "AmountExceedsPermitted"):
		return ErrPermit2AmountExceedsPermitted
	case strings.Contains(msg, "InvalidDestination"):
		return ErrPermit2InvalidDestination
	case strings.Contains(msg, "InvalidOwner"):
		return ErrPermit2InvalidOwner
	case strings.Contains(msg, "PaymentTooEarly"):
		return ErrPermit2PaymentTooEarly
	case strings.Contains(msg, "InvalidSignature"), strings.Contains(msg, "SignatureExpired"):
		return ErrPermit2InvalidSignature
	case strings.Contains(msg, "InvalidNonce"):
		return ErrPermit2InvalidNonce
	default:
		return ErrFailedToExecuteTransfer
	}
}
