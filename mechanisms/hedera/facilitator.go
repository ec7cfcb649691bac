package hedera

import (
	"context"
	"fmt"
	"strconv"
	"time"

	hiero "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	x402 "github.com/x402labs/x402-go"
)

// ExactHederaFacilitator implements the SchemeNetworkFacilitator interface
// for the exact scheme on Hedera. The client-signed transfer names the
// facilitator account in its transaction id, so settlement is a co-sign and
// submit; the facilitator pays the network fee.
type ExactHederaFacilitator struct {
	signer FacilitatorHederaSigner
}

// NewExactHederaFacilitator creates a new ExactHederaFacilitator
func NewExactHederaFacilitator(signer FacilitatorHederaSigner) *ExactHederaFacilitator {
	return &ExactHederaFacilitator{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (f *ExactHederaFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the CAIP family pattern for Hedera networks
func (f *ExactHederaFacilitator) CaipFamily() string {
	return "hedera:*"
}

// GetExtra advertises the fee-payer account clients must build against.
func (f *ExactHederaFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	addresses := f.signer.GetAddresses()
	if len(addresses) == 0 {
		return nil
	}
	return map[string]interface{}{
		"feePayer": addresses[0],
	}
}

// GetSigners returns the signer addresses this facilitator uses
func (f *ExactHederaFacilitator) GetSigners(network x402.Network) []string {
	return f.signer.GetAddresses()
}

// Verify verifies a Hedera payment payload against requirements
func (f *ExactHederaFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 2 {
		return invalid("v2 only supports x402 version 2", ""), nil
	}

	if payload.Accepted.Scheme != SchemeExact || requirements.Scheme != SchemeExact {
		return invalid(x402.ErrCodeUnsupportedScheme, ""), nil
	}

	if payload.Accepted.Network != requirements.Network {
		return invalid("network_mismatch", ""), nil
	}

	networkStr := string(requirements.Network)
	config, ok := GetNetworkConfig(networkStr)
	if !ok {
		return invalid(ErrInvalidNetwork, ""), nil
	}

	hederaPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return invalid(ErrInvalidPayload, ""), nil
	}
	txn, err := hederaPayload.DecodeTransfer()
	if err != nil {
		return invalid(ErrNotTransfer, ""), nil
	}

	// The transaction id account is the account that pays the fee. It must
	// be ours, otherwise we would be submitting on someone else's dime or
	// failing with an unauthorized fee payer.
	txnID := txn.GetTransactionID()
	if txnID.AccountID == nil || !f.isOurAccount(txnID.AccountID.String()) {
		return invalid(ErrFeePayerMismatch, ""), nil
	}

	if txnID.ValidStart != nil {
		expiry := txnID.ValidStart.Add(txn.GetTransactionValidDuration())
		if expiry.Before(time.Now().Add(MinValiditySeconds * time.Second)) {
			return invalid(ErrTransactionExpired, ""), nil
		}
	}

	requiredAmount, err := strconv.ParseInt(requirements.Amount, 10, 64)
	if err != nil || requiredAmount <= 0 {
		return x402.VerifyResponse{}, fmt.Errorf("invalid required amount: %s", requirements.Amount)
	}

	asset := requirements.Asset
	if asset == "" {
		asset = config.DefaultAsset.TokenID
	}

	payer, reason := checkTransfers(txn, asset, requirements.PayTo, requiredAmount)
	if reason != "" {
		return invalid(reason, payer), nil
	}

	tokenForBalance := asset
	if tokenForBalance == AssetHbar {
		tokenForBalance = ""
	}
	balance, err := f.signer.GetBalance(ctx, payer, tokenForBalance)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance < uint64(requiredAmount) {
		return invalid(x402.ErrCodeInsufficientFunds, payer), nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   payer,
	}, nil
}

// checkTransfers validates that the transfer credits payTo with exactly the
// required amount and debits a single payer by the same amount. Returns the
// payer and an error reason, empty when valid.
func checkTransfers(txn *hiero.TransferTransaction, asset string, payTo string, required int64) (string, string) {
	credits := map[string]int64{}
	debits := map[string]int64{}

	if asset == AssetHbar {
		for account, amount := range txn.GetHbarTransfers() {
			tinybar := amount.AsTinybar()
			if tinybar > 0 {
				credits[account.String()] += tinybar
			} else {
				debits[account.String()] += -tinybar
			}
		}
	} else {
		tokenTransfers := txn.GetTokenTransfers()
		tokenID, err := hiero.TokenIDFromString(asset)
		if err != nil {
			return "", ErrInvalidPayload
		}
		transfers, ok := tokenTransfers[tokenID]
		if !ok {
			return "", ErrAmountMismatch
		}
		for _, transfer := range transfers {
			if transfer.Amount > 0 {
				credits[transfer.AccountID.String()] += transfer.Amount
			} else {
				debits[transfer.AccountID.String()] += -transfer.Amount
			}
		}
	}

	if credits[payTo] != required {
		return "", ErrAmountMismatch
	}
	if len(credits) != 1 {
		return "", ErrRecipientMismatch
	}

	if len(debits) != 1 {
		return "", ErrPayerDebitMismatch
	}
	for account, amount := range debits {
		if amount != required {
			return account, ErrPayerDebitMismatch
		}
		return account, ""
	}
	return "", ErrPayerDebitMismatch
}

// Settle co-signs the transfer as fee payer and submits it.
func (f *ExactHederaFacilitator) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	verifyResp, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	networkStr := string(requirements.Network)
	if !verifyResp.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResp.InvalidReason,
			Network:     x402.Network(networkStr),
			Payer:       verifyResp.Payer,
		}, nil
	}

	hederaPayload, _ := PayloadFromMap(payload.Payload)
	txn, _ := hederaPayload.DecodeTransfer()

	txID, err := f.signer.SubmitTransfer(ctx, txn)
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrSettlementFailed,
			Network:     x402.Network(networkStr),
			Payer:       verifyResp.Payer,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: txID,
		Network:     x402.Network(networkStr),
		Payer:       verifyResp.Payer,
	}, nil
}

func (f *ExactHederaFacilitator) isOurAccount(accountID string) bool {
	for _, addr := range f.signer.GetAddresses() {
		if addr == accountID {
			return true
		}
	}
	return false
}

func invalid(reason, payer string) x402.VerifyResponse {
	return x402.VerifyResponse{
		IsValid:       false,
		InvalidReason: reason,
		Payer:         payer,
	}
}
