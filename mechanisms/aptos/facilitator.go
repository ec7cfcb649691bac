package aptos

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	aptossdk "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/crypto"

	x402 "github.com/x402labs/x402-go"
)

// ExactAptosFacilitator implements the SchemeNetworkFacilitator interface for
// the exact scheme on Aptos. Verification decodes the BCS transaction and
// checks it against the requirements before simulating it on the node;
// settlement submits it, signing as fee payer when the payment is sponsored.
type ExactAptosFacilitator struct {
	signer FacilitatorAptosSigner
}

// NewExactAptosFacilitator creates a new ExactAptosFacilitator
func NewExactAptosFacilitator(signer FacilitatorAptosSigner) *ExactAptosFacilitator {
	return &ExactAptosFacilitator{
		signer: signer,
	}
}

// Scheme returns the scheme identifier
func (f *ExactAptosFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the CAIP family pattern for Aptos networks
func (f *ExactAptosFacilitator) CaipFamily() string {
	return "aptos:*"
}

// GetExtra advertises the fee payer address for sponsored payments.
func (f *ExactAptosFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	addresses := f.signer.GetAddresses()
	if len(addresses) == 0 {
		return nil
	}
	return map[string]interface{}{
		"feePayer": addresses[0],
	}
}

// GetSigners returns the signer addresses this facilitator uses
func (f *ExactAptosFacilitator) GetSigners(network x402.Network) []string {
	return f.signer.GetAddresses()
}

// Verify verifies an Aptos payment payload against requirements
func (f *ExactAptosFacilitator) Verify(
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

	aptosPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return invalid(ErrInvalidPayload, ""), nil
	}

	rawTxn, err := aptosPayload.DecodeTransaction()
	if err != nil {
		return invalid(ErrInvalidPayload, ""), nil
	}
	senderAuth, err := aptosPayload.DecodeAuthenticator()
	if err != nil {
		return invalid(ErrInvalidPayload, ""), nil
	}

	payer := rawTxn.Sender.StringLong()
	sponsored := f.isSponsored(requirements)

	if rawTxn.ChainId != config.ChainID {
		return invalid(ErrChainIDMismatch, payer), nil
	}

	// Refuse to sponsor our own accounts.
	if sponsored {
		for _, addr := range f.signer.GetAddresses() {
			if strings.EqualFold(normalizeAddress(addr), payer) {
				return invalid(ErrSelfSponsorship, payer), nil
			}
		}
		if rawTxn.MaxGasAmount > MaxSponsoredGasAmount {
			return invalid(ErrGasLimitExceeded, payer), nil
		}
	}

	if rawTxn.ExpirationTimestampSeconds < uint64(time.Now().Unix()+MinExpirySkewSeconds) {
		return invalid(ErrTransactionExpired, payer), nil
	}

	// The sender's Ed25519 key must authenticate the sender account. Other
	// key schemes are left to simulation, which rejects bad authenticators.
	if senderAuth.Variant == crypto.AccountAuthenticatorEd25519 {
		ed, ok := senderAuth.Auth.(*crypto.Ed25519Authenticator)
		if !ok || !bytes.Equal(ed.PubKey.AuthKey()[:], rawTxn.Sender[:]) {
			return invalid(ErrSenderMismatch, payer), nil
		}
	}

	entry, ok := rawTxn.Payload.Payload.(*aptossdk.EntryFunction)
	if !ok {
		return invalid(ErrDisallowedFunction, payer), nil
	}
	call, err := decodeTransferCall(entry)
	if err != nil {
		return invalid(ErrDisallowedFunction, payer), nil
	}

	asset := requirements.Asset
	if asset == "" {
		asset = config.DefaultAsset.MetadataAddress
	}
	expectedAsset, err := parseAddress(asset)
	if err != nil {
		return x402.VerifyResponse{}, err
	}
	if call.MetadataAddress != expectedAsset {
		return invalid(ErrAssetMismatch, payer), nil
	}

	expectedRecipient, err := parseAddress(requirements.PayTo)
	if err != nil {
		return x402.VerifyResponse{}, err
	}
	if call.Recipient != expectedRecipient {
		return invalid(ErrRecipientMismatch, payer), nil
	}

	requiredAmount, err := strconv.ParseUint(requirements.Amount, 10, 64)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("invalid required amount: %s", requirements.Amount)
	}
	if call.Amount < requiredAmount {
		return invalid(ErrInsufficientAmount, payer), nil
	}

	balance, err := f.signer.GetBalance(ctx, payer, expectedAsset.StringLong())
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance < call.Amount {
		return invalid(x402.ErrCodeInsufficientFunds, payer), nil
	}

	success, vmStatus, err := f.signer.Simulate(ctx, rawTxn, senderAuth, sponsored)
	if err != nil {
		return x402.VerifyResponse{}, fmt.Errorf("simulation failed: %w", err)
	}
	if !success {
		return invalid(fmt.Sprintf("%s: %s", ErrSimulationFailed, vmStatus), payer), nil
	}

	return x402.VerifyResponse{
		IsValid: true,
		Payer:   payer,
	}, nil
}

// Settle submits the payment transaction and waits for commitment.
func (f *ExactAptosFacilitator) Settle(
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

	aptosPayload, _ := PayloadFromMap(payload.Payload)
	rawTxn, _ := aptosPayload.DecodeTransaction()
	senderAuth, _ := aptosPayload.DecodeAuthenticator()

	txHash, err := f.signer.Submit(ctx, rawTxn, senderAuth, f.isSponsored(requirements))
	if err != nil {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrSettlementFailed,
			Network:     x402.Network(networkStr),
			Payer:       verifyResp.Payer,
		}, nil
	}

	success, err := f.signer.WaitForTransaction(ctx, txHash)
	if err != nil || !success {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrSettlementFailed,
			Transaction: txHash,
			Network:     x402.Network(networkStr),
			Payer:       verifyResp.Payer,
		}, nil
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: txHash,
		Network:     x402.Network(networkStr),
		Payer:       verifyResp.Payer,
	}, nil
}

// isSponsored reports whether the requirements ask for a fee-payer settlement.
func (f *ExactAptosFacilitator) isSponsored(requirements x402.PaymentRequirements) bool {
	if requirements.Extra == nil {
		return false
	}
	feePayer, ok := requirements.Extra["feePayer"]
	if !ok {
		return false
	}
	switch v := feePayer.(type) {
	case bool:
		return v
	case string:
		return v != ""
	default:
		return false
	}
}

func invalid(reason, payer string) x402.VerifyResponse {
	return x402.VerifyResponse{
		IsValid:       false,
		InvalidReason: reason,
		Payer:         payer,
	}
}

// normalizeAddress converts a 0x address to its canonical long form.
func normalizeAddress(s string) string {
	addr, err := parseAddress(s)
	if err != nil {
		return s
	}
	return addr.StringLong()
}
