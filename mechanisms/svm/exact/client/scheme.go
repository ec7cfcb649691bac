// Package client implements the client side of the exact SVM scheme: it
// builds an SPL Token TransferChecked transaction sponsored by the
// facilitator's fee payer and partially signs it.
package client

import (
	"context"
	"fmt"
	"strconv"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/mechanisms/svm"
)

// ExactSvmScheme implements the SchemeNetworkClient interface for SVM exact
// payments. The same transaction shape serves both protocol versions.
type ExactSvmScheme struct {
	signer svm.ClientSvmSigner
	config *svm.ClientConfig
}

// NewExactSvmScheme creates a new ExactSvmScheme. The optional config
// overrides the network's default RPC endpoint.
func NewExactSvmScheme(signer svm.ClientSvmSigner, config ...*svm.ClientConfig) *ExactSvmScheme {
	c := &ExactSvmScheme{signer: signer}
	if len(config) > 0 {
		c.config = config[0]
	}
	return c
}

// Scheme returns the scheme identifier
func (c *ExactSvmScheme) Scheme() string {
	return svm.SchemeExact
}

// CreatePaymentPayload builds and partially signs the payment transaction.
func (c *ExactSvmScheme) CreatePaymentPayload(
	ctx context.Context,
	version int,
	requirements x402.PaymentRequirements,
) (x402.PartialPaymentPayload, error) {
	if version != 1 && version != 2 {
		return x402.PartialPaymentPayload{}, fmt.Errorf("unsupported x402 version: %d", version)
	}

	networkStr := string(requirements.Network)
	if !svm.IsValidNetwork(networkStr) {
		return x402.PartialPaymentPayload{}, fmt.Errorf("unsupported network: %s", networkStr)
	}

	config, err := svm.GetNetworkConfig(networkStr)
	if err != nil {
		return x402.PartialPaymentPayload{}, err
	}

	rpcURL := config.RPCURL
	if c.config != nil && c.config.RPCURL != "" {
		rpcURL = c.config.RPCURL
	}
	rpcClient := rpc.New(rpcURL)

	asset := requirements.Asset
	if asset == "" {
		asset = config.DefaultAsset.Address
	}
	mintPubkey, err := solana.PublicKeyFromBase58(asset)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid asset address: %w", err)
	}

	mintAccount, err := rpcClient.GetAccountInfo(ctx, mintPubkey)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to get mint account: %w", err)
	}
	tokenProgramID := mintAccount.Value.Owner
	if tokenProgramID != solana.TokenProgramID && tokenProgramID != solana.Token2022ProgramID {
		return x402.PartialPaymentPayload{}, fmt.Errorf("asset was not created by a known token program")
	}

	payToPubkey, err := solana.PublicKeyFromBase58(requirements.PayTo)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid payTo address: %w", err)
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(c.signer.Address(), mintPubkey)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to derive source ATA: %w", err)
	}
	destinationATA, _, err := solana.FindAssociatedTokenAddress(payToPubkey, mintPubkey)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to derive destination ATA: %w", err)
	}

	// Both token accounts must already exist: the fee payer only sponsors the
	// transfer, not account creation.
	sourceAccount, err := rpcClient.GetAccountInfo(ctx, sourceATA)
	if err != nil || sourceAccount == nil || sourceAccount.Value == nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf(
			"invalid_exact_solana_payload_ata_not_found: source ATA does not exist for client %s",
			c.signer.Address(),
		)
	}
	destAccount, err := rpcClient.GetAccountInfo(ctx, destinationATA)
	if err != nil || destAccount == nil || destAccount.Value == nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf(
			"invalid_exact_solana_payload_ata_not_found: destination ATA does not exist for recipient %s",
			requirements.PayTo,
		)
	}

	// V1 carries the amount in maxAmountRequired
	amountStr := requirements.Amount
	if version == 1 && requirements.MaxAmountRequired != "" {
		amountStr = requirements.MaxAmountRequired
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid amount: %w", err)
	}

	feePayerAddr, ok := requirements.Extra["feePayer"].(string)
	if !ok {
		return x402.PartialPaymentPayload{}, fmt.Errorf("feePayer is required in paymentRequirements.extra for Solana transactions")
	}
	feePayer, err := solana.PublicKeyFromBase58(feePayerAddr)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("invalid feePayer address: %w", err)
	}

	var mintData token.Mint
	if err := bin.NewBinDecoder(mintAccount.Value.Data.GetBinary()).Decode(&mintData); err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to decode mint data: %w", err)
	}

	latestBlockhash, err := rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	cuLimit, err := computebudget.NewSetComputeUnitLimitInstructionBuilder().
		SetUnits(svm.DefaultComputeUnitLimit).
		ValidateAndBuild()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to build compute limit instruction: %w", err)
	}
	cuPrice, err := computebudget.NewSetComputeUnitPriceInstructionBuilder().
		SetMicroLamports(svm.DefaultComputeUnitPrice).
		ValidateAndBuild()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to build compute price instruction: %w", err)
	}

	transferIx, err := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(mintData.Decimals).
		SetSourceAccount(sourceATA).
		SetMintAccount(mintPubkey).
		SetDestinationAccount(destinationATA).
		SetOwnerAccount(c.signer.Address()).
		ValidateAndBuild()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to build transfer instruction: %w", err)
	}

	tx, err := solana.NewTransactionBuilder().
		AddInstruction(cuLimit).
		AddInstruction(cuPrice).
		AddInstruction(transferIx).
		SetRecentBlockHash(latestBlockhash.Value.Blockhash).
		SetFeePayer(feePayer).
		Build()
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	// Cross-platform facilitators expect versioned (v0) messages
	tx.Message.SetVersion(solana.MessageVersionV0)

	if err := c.signer.SignTransaction(ctx, tx); err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	base64Tx, err := svm.EncodeTransaction(tx)
	if err != nil {
		return x402.PartialPaymentPayload{}, fmt.Errorf("failed to encode transaction: %w", err)
	}

	svmPayload := &svm.ExactSvmPayload{Transaction: base64Tx}
	return x402.PartialPaymentPayload{
		X402Version: version,
		Payload:     svmPayload.ToMap(),
	}, nil
}
