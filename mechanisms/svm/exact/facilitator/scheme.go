// Package facilitator implements verification and settlement for the exact
// SVM scheme. The facilitator inspects the client's partially signed
// transaction, co-signs it as fee payer and submits it.
package facilitator

import (
	"context"
	"encoding/binary"
	"strconv"

	solana "github.com/gagliardetto/solana-go"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/svm"
)

// ExactSvmScheme implements the SchemeNetworkFacilitator interface for SVM
// exact payments (V2).
type ExactSvmScheme struct {
	signer svm.FacilitatorSvmSigner
}

// NewExactSvmScheme creates a new ExactSvmScheme
func NewExactSvmScheme(signer svm.FacilitatorSvmSigner) *ExactSvmScheme {
	return &ExactSvmScheme{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (f *ExactSvmScheme) Scheme() string {
	return svm.SchemeExact
}

// CaipFamily returns the CAIP family pattern for SVM networks
func (f *ExactSvmScheme) CaipFamily() string {
	return "solana:*"
}

// GetExtra advertises the fee payer address clients must set on their
// transactions.
func (f *ExactSvmScheme) GetExtra(network x402.Network) map[string]interface{} {
	addresses := f.signer.GetAddresses(context.Background(), string(network))
	if len(addresses) == 0 {
		return nil
	}
	return map[string]interface{}{
		"feePayer": addresses[0].String(),
	}
}

// GetSigners returns the signer addresses this facilitator uses
func (f *ExactSvmScheme) GetSigners(network x402.Network) []string {
	addresses := f.signer.GetAddresses(context.Background(), string(network))
	result := make([]string, len(addresses))
	for i, addr := range addresses {
		result[i] = addr.String()
	}
	return result
}

// Verify verifies a payment payload against requirements (V2)
func (f *ExactSvmScheme) Verify(
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

	if payload.Accepted.Scheme != svm.SchemeExact || requirements.Scheme != svm.SchemeExact {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrUnsupportedScheme,
		}, nil
	}

	if payload.Accepted.Network != requirements.Network {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrNetworkMismatch,
		}, nil
	}

	svmPayload, err := svm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrInvalidPayload,
		}, nil
	}

	_, payer, reason := InspectAndSimulate(
		ctx, f.signer,
		string(requirements.Network),
		svmPayload.Transaction,
		requirements.Asset,
		requirements.PayTo,
		requirements.Amount,
	)
	if reason != "" {
		return x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: reason,
			Payer:         payer,
		}, nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   payer,
	}, nil
}

// Settle settles a payment by co-signing the transaction as fee payer and
// submitting it (V2)
func (f *ExactSvmScheme) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	network := x402.Network(payload.Accepted.Network)

	verifyResp, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	if !verifyResp.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResp.InvalidReason,
			Network:     network,
			Payer:       verifyResp.Payer,
		}, nil
	}

	svmPayload, err := svm.PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrInvalidPayload,
			Network:     network,
		}, nil
	}

	tx, err := svm.DecodeTransaction(svmPayload.Transaction)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrFailedToDecodeTransaction,
			Network:     network,
		}, nil
	}

	sig, reason := SubmitTransfer(ctx, f.signer, string(requirements.Network), tx)
	if reason != "" {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: reason,
			Network:     network,
			Payer:       verifyResp.Payer,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: sig.String(),
		Network:     network,
		Payer:       verifyResp.Payer,
	}, nil
}

// InspectAndSimulate decodes and statically validates a payment transaction,
// then simulates it with the fee payer signature attached. Returns the
// decoded transaction, the payer address and an empty reason on success.
//
// Shared by the V1 and V2 facilitator faces.
func InspectAndSimulate(
	ctx context.Context,
	signer svm.FacilitatorSvmSigner,
	network string,
	base64Tx string,
	asset string,
	payTo string,
	requiredAmount string,
) (*solana.Transaction, string, string) {
	caip2, err := svm.NormalizeNetwork(network)
	if err != nil {
		return nil, "", ErrNetworkMismatch
	}

	tx, err := svm.DecodeTransaction(base64Tx)
	if err != nil {
		return nil, "", ErrFailedToDecodeTransaction
	}

	payer, reason := inspectTransfer(ctx, signer, caip2, tx, asset, payTo, requiredAmount)
	if reason != "" {
		return nil, payer, reason
	}

	// Sign a fresh copy as fee payer so simulation passes signature checks
	simTx, err := svm.DecodeTransaction(base64Tx)
	if err != nil {
		return nil, payer, ErrFailedToDecodeTransaction
	}
	feePayer := simTx.Message.AccountKeys[0]
	if err := signer.SignTransaction(ctx, simTx, feePayer, caip2); err != nil {
		return nil, payer, ErrFailedToSignTransaction
	}
	if err := signer.SimulateTransaction(ctx, simTx, caip2); err != nil {
		return nil, payer, ErrSimulationFailed
	}

	return tx, payer, ""
}

// SubmitTransfer co-signs the transaction as fee payer, submits it and waits
// for confirmation. Returns the transaction signature and an empty reason on
// success.
func SubmitTransfer(
	ctx context.Context,
	signer svm.FacilitatorSvmSigner,
	network string,
	tx *solana.Transaction,
) (solana.Signature, string) {
	caip2, err := svm.NormalizeNetwork(network)
	if err != nil {
		return solana.Signature{}, ErrNetworkMismatch
	}

	feePayer := tx.Message.AccountKeys[0]
	if err := signer.SignTransaction(ctx, tx, feePayer, caip2); err != nil {
		return solana.Signature{}, ErrFailedToSignTransaction
	}

	sig, err := signer.SendTransaction(ctx, tx, caip2)
	if err != nil {
		return solana.Signature{}, ErrFailedToSendTransaction
	}

	if err := signer.ConfirmTransaction(ctx, sig, caip2); err != nil {
		return sig, ErrTransactionConfirmationFailed
	}

	return sig, ""
}

// inspectTransfer statically validates the transaction layout and the
// embedded TransferChecked against the payment requirements. Returns the
// payer address and an empty reason string when valid.
func inspectTransfer(
	ctx context.Context,
	signer svm.FacilitatorSvmSigner,
	caip2 string,
	tx *solana.Transaction,
	asset string,
	payTo string,
	requiredAmount string,
) (string, string) {
	instructions := tx.Message.Instructions
	payerOverride := ""

	// Swig smart wallet transactions embed the real instructions inside a
	// signV2 instruction; flatten them before inspection.
	isSwig := svm.IsSwigTransaction(tx)
	if isSwig {
		parsed, err := svm.ParseSwigTransaction(tx)
		if err != nil {
			return "", ErrNoTransferInstruction
		}
		instructions = parsed.Instructions
		payerOverride = parsed.SwigPDA
	}

	if len(instructions) < svm.MinTransactionInstructions || len(instructions) > svm.MaxTransactionInstructions {
		return "", ErrTransactionInstructionsLength
	}

	keys := tx.Message.AccountKeys
	programAt := func(ix solana.CompiledInstruction) (solana.PublicKey, bool) {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return solana.PublicKey{}, false
		}
		return keys[ix.ProgramIDIndex], true
	}

	// [0] SetComputeUnitLimit
	prog, ok := programAt(instructions[0])
	if !ok || !prog.Equals(solana.ComputeBudget) || len(instructions[0].Data) < 5 ||
		instructions[0].Data[0] != svm.ComputeUnitLimitDiscriminator {
		return "", ErrTransactionInstructionsType
	}
	if binary.LittleEndian.Uint32(instructions[0].Data[1:5]) > svm.MaxComputeUnitLimit {
		return "", ErrComputeUnitLimitTooHigh
	}

	// [1] SetComputeUnitPrice
	prog, ok = programAt(instructions[1])
	if !ok || !prog.Equals(solana.ComputeBudget) || len(instructions[1].Data) < 1 ||
		instructions[1].Data[0] != svm.ComputeUnitPriceDiscriminator {
		return "", ErrTransactionInstructionsType
	}

	// Optional middle instructions: Lighthouse assertions or memos only
	lighthouse := solana.MustPublicKeyFromBase58(svm.LighthouseProgramAddress)
	memo := solana.MustPublicKeyFromBase58(svm.MemoProgramAddress)
	for i := 2; i < len(instructions)-1; i++ {
		prog, ok = programAt(instructions[i])
		if !ok || (!prog.Equals(lighthouse) && !prog.Equals(memo)) {
			return "", ErrTransactionInstructionsType
		}
	}

	// Last instruction: SPL Token TransferChecked
	transferIx := instructions[len(instructions)-1]
	prog, ok = programAt(transferIx)
	if !ok || (!prog.Equals(solana.TokenProgramID) && !prog.Equals(solana.Token2022ProgramID)) {
		return "", ErrNoTransferInstruction
	}
	if len(transferIx.Data) < 10 || transferIx.Data[0] != svm.TransferCheckedDiscriminator {
		return "", ErrNoTransferInstruction
	}
	if len(transferIx.Accounts) < 4 {
		return "", ErrNoTransferInstruction
	}
	accountAt := func(idx uint16) (solana.PublicKey, bool) {
		if int(idx) >= len(keys) {
			return solana.PublicKey{}, false
		}
		return keys[idx], true
	}
	mint, ok1 := accountAt(transferIx.Accounts[1])
	destination, ok2 := accountAt(transferIx.Accounts[2])
	owner, ok3 := accountAt(transferIx.Accounts[3])
	if !ok1 || !ok2 || !ok3 {
		return "", ErrNoTransferInstruction
	}

	payer := owner.String()
	if payerOverride != "" {
		payer = payerOverride
	}

	// Asset must match requirements (default USDC when unspecified)
	expectedAsset := asset
	if expectedAsset == "" {
		config, err := svm.GetNetworkConfig(caip2)
		if err != nil {
			return payer, ErrNetworkMismatch
		}
		expectedAsset = config.DefaultAsset.Address
	}
	if mint.String() != expectedAsset {
		return payer, ErrAssetMismatch
	}

	// Destination must be the payee's associated token account
	payToPubkey, err := solana.PublicKeyFromBase58(payTo)
	if err != nil {
		return payer, ErrRecipientMismatch
	}
	expectedDest, _, err := solana.FindAssociatedTokenAddress(payToPubkey, mint)
	if err != nil || !destination.Equals(expectedDest) {
		return payer, ErrRecipientMismatch
	}

	// Amount must cover the required amount
	amount := binary.LittleEndian.Uint64(transferIx.Data[1:9])
	required, err := strconv.ParseUint(requiredAmount, 10, 64)
	if err != nil {
		return payer, ErrInvalidRequiredAmount
	}
	if amount < required {
		return payer, ErrInsufficientAmount
	}

	// Fee payer must be one of this facilitator's signers
	if len(keys) == 0 {
		return payer, ErrFeePayerMismatch
	}
	feePayer := keys[0]
	sponsored := false
	for _, addr := range signer.GetAddresses(ctx, caip2) {
		if feePayer.Equals(addr) {
			sponsored = true
			break
		}
	}
	if !sponsored {
		return payer, ErrFeePayerMismatch
	}

	// The client's signature must already be attached. Swig wallets
	// authorize through the secp256r1 precompile instead of an Ed25519
	// signature slot.
	if !isSwig {
		idx := -1
		for i := 0; i < int(tx.Message.Header.NumRequiredSignatures) && i < len(keys); i++ {
			if keys[i].Equals(owner) {
				idx = i
				break
			}
		}
		if idx < 0 || idx >= len(tx.Signatures) || tx.Signatures[idx].IsZero() {
			return payer, ErrMissingClientSignature
		}
	}

	return payer, ""
}
