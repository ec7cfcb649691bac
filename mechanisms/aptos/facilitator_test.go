package aptos

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	aptossdk "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/aptos-labs/aptos-go-sdk/crypto"

	x402 "github.com/x402labs/x402-go"
)

const (
	testRecipient = "0x50a35c1c12c65a26bd00e29cf75e5e1c03a2b33ad5eeb7a5ea15e5e72c027b55"
	testMetadata  = "0x69091fbab5f7d635ee7ac5098cf0c1efbe31d68fec0f2cd565e8d168daf52832"
	testFeePayer  = "0x7deeb4b41689188e643acb1c4c6b13138f0b8cb84980bbcfd826cc23d019a755"
)

// testAccount bundles a generated Ed25519 key with its derived address
type testAccount struct {
	key     *crypto.Ed25519PrivateKey
	address aptossdk.AccountAddress
}

func newTestAccount(t *testing.T) *testAccount {
	t.Helper()
	key, err := crypto.GenerateEd25519PrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	account := &testAccount{key: key}
	authKey := key.PubKey().AuthKey()
	copy(account.address[:], authKey[:])
	return account
}

// mockNode is a configurable FacilitatorAptosSigner
type mockNode struct {
	addresses []string
	balance   uint64
	simOK     bool
	simStatus string
	submitErr error
	waitOK    bool
	submitted int
}

func newMockNode() *mockNode {
	return &mockNode{
		addresses: []string{testFeePayer},
		balance:   10_000_000,
		simOK:     true,
		waitOK:    true,
	}
}

func (m *mockNode) GetAddresses() []string { return m.addresses }

func (m *mockNode) GetBalance(ctx context.Context, owner string, metadataAddress string) (uint64, error) {
	return m.balance, nil
}

func (m *mockNode) Simulate(ctx context.Context, rawTxn *aptossdk.RawTransaction, senderAuth *crypto.AccountAuthenticator, sponsored bool) (bool, string, error) {
	return m.simOK, m.simStatus, nil
}

func (m *mockNode) Submit(ctx context.Context, rawTxn *aptossdk.RawTransaction, senderAuth *crypto.AccountAuthenticator, sponsored bool) (string, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.submitted++
	return "0xaptostx", nil
}

func (m *mockNode) WaitForTransaction(ctx context.Context, txHash string) (bool, error) {
	return m.waitOK, nil
}

type payloadOverrides struct {
	chainID uint8
	expiry  uint64
	maxGas  uint64
	sender  *aptossdk.AccountAddress
	entry   *aptossdk.EntryFunction
}

func buildTestPayload(t *testing.T, account *testAccount, amount uint64, overrides payloadOverrides) x402.PaymentPayload {
	t.Helper()

	metadataAddr, err := parseAddress(testMetadata)
	if err != nil {
		t.Fatalf("bad metadata address: %v", err)
	}
	recipient, err := parseAddress(testRecipient)
	if err != nil {
		t.Fatalf("bad recipient address: %v", err)
	}

	sender := account.address
	if overrides.sender != nil {
		sender = *overrides.sender
	}
	expiry := overrides.expiry
	if expiry == 0 {
		expiry = uint64(time.Now().Unix()) + 300
	}

	rawTxn, err := buildTransferTransaction(sender, 7, metadataAddr, recipient, amount, 2, expiry)
	if err != nil {
		t.Fatalf("failed to build transaction: %v", err)
	}
	if overrides.chainID != 0 {
		rawTxn.ChainId = overrides.chainID
	}
	if overrides.maxGas != 0 {
		rawTxn.MaxGasAmount = overrides.maxGas
	}
	if overrides.entry != nil {
		rawTxn.Payload = aptossdk.TransactionPayload{Payload: overrides.entry}
	}

	auth, err := account.key.Sign([]byte("authenticated by simulation"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	txnBytes, err := bcs.Serialize(rawTxn)
	if err != nil {
		t.Fatalf("failed to serialize transaction: %v", err)
	}
	authBytes, err := bcs.Serialize(auth)
	if err != nil {
		t.Fatalf("failed to serialize authenticator: %v", err)
	}

	payload := &ExactAptosPayload{
		Transaction:         base64.StdEncoding.EncodeToString(txnBytes),
		SenderAuthenticator: base64.StdEncoding.EncodeToString(authBytes),
	}

	return x402.PaymentPayload{
		X402Version: 2,
		Payload:     payload.ToMap(),
		Accepted: x402.PaymentRequirements{
			Scheme:  SchemeExact,
			Network: NetworkTestnet,
		},
	}
}

func testRequirements() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:  SchemeExact,
		Network: NetworkTestnet,
		Asset:   testMetadata,
		Amount:  "1000000",
		PayTo:   testRecipient,
	}
}

func TestAptosVerify(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t)

	t.Run("valid payment", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		resp, err := f.Verify(ctx, buildTestPayload(t, account, 1_000_000, payloadOverrides{}), testRequirements())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !resp.IsValid {
			t.Fatalf("expected valid, got reason: %s", resp.InvalidReason)
		}
		if resp.Payer != account.address.StringLong() {
			t.Errorf("expected payer %s, got %s", account.address.StringLong(), resp.Payer)
		}
	})

	t.Run("rejects chain id mismatch", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		payload := buildTestPayload(t, account, 1_000_000, payloadOverrides{chainID: 1})
		resp, _ := f.Verify(ctx, payload, testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrChainIDMismatch {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrChainIDMismatch, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects expired transaction", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		payload := buildTestPayload(t, account, 1_000_000, payloadOverrides{expiry: uint64(time.Now().Unix()) + 1})
		resp, _ := f.Verify(ctx, payload, testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrTransactionExpired {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrTransactionExpired, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects sender not matching key", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		other, _ := parseAddress(testRecipient)
		payload := buildTestPayload(t, account, 1_000_000, payloadOverrides{sender: &other})
		resp, _ := f.Verify(ctx, payload, testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrSenderMismatch {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrSenderMismatch, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects disallowed entry function", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		entry := &aptossdk.EntryFunction{
			Module:   aptossdk.ModuleId{Address: aptossdk.AccountOne, Name: "coin"},
			Function: "transfer",
			Args:     [][]byte{},
		}
		payload := buildTestPayload(t, account, 1_000_000, payloadOverrides{entry: entry})
		resp, _ := f.Verify(ctx, payload, testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrDisallowedFunction {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrDisallowedFunction, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects wrong recipient", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		requirements := testRequirements()
		requirements.PayTo = testFeePayer
		resp, _ := f.Verify(ctx, buildTestPayload(t, account, 1_000_000, payloadOverrides{}), requirements)
		if resp.IsValid || resp.InvalidReason != ErrRecipientMismatch {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrRecipientMismatch, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects wrong asset", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		requirements := testRequirements()
		requirements.Asset = "0xa"
		resp, _ := f.Verify(ctx, buildTestPayload(t, account, 1_000_000, payloadOverrides{}), requirements)
		if resp.IsValid || resp.InvalidReason != ErrAssetMismatch {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrAssetMismatch, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects amount below requirement", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		resp, _ := f.Verify(ctx, buildTestPayload(t, account, 999_999, payloadOverrides{}), testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrInsufficientAmount {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrInsufficientAmount, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects insufficient balance", func(t *testing.T) {
		node := newMockNode()
		node.balance = 10
		f := NewExactAptosFacilitator(node)
		resp, _ := f.Verify(ctx, buildTestPayload(t, account, 1_000_000, payloadOverrides{}), testRequirements())
		if resp.IsValid || resp.InvalidReason != x402.ErrCodeInsufficientFunds {
			t.Fatalf("expected %s, got valid=%v reason=%s", x402.ErrCodeInsufficientFunds, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects failed simulation", func(t *testing.T) {
		node := newMockNode()
		node.simOK = false
		node.simStatus = "OUT_OF_GAS"
		f := NewExactAptosFacilitator(node)
		resp, _ := f.Verify(ctx, buildTestPayload(t, account, 1_000_000, payloadOverrides{}), testRequirements())
		if resp.IsValid {
			t.Fatal("expected invalid")
		}
	})

	t.Run("sponsored caps max gas", func(t *testing.T) {
		f := NewExactAptosFacilitator(newMockNode())
		requirements := testRequirements()
		requirements.Extra = map[string]interface{}{"feePayer": testFeePayer}
		payload := buildTestPayload(t, account, 1_000_000, payloadOverrides{maxGas: MaxSponsoredGasAmount + 1})
		resp, _ := f.Verify(ctx, payload, requirements)
		if resp.IsValid || resp.InvalidReason != ErrGasLimitExceeded {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrGasLimitExceeded, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("refuses to sponsor own account", func(t *testing.T) {
		node := newMockNode()
		node.addresses = []string{account.address.StringLong()}
		f := NewExactAptosFacilitator(node)
		requirements := testRequirements()
		requirements.Extra = map[string]interface{}{"feePayer": account.address.StringLong()}
		resp, _ := f.Verify(ctx, buildTestPayload(t, account, 1_000_000, payloadOverrides{}), requirements)
		if resp.IsValid || resp.InvalidReason != ErrSelfSponsorship {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrSelfSponsorship, resp.IsValid, resp.InvalidReason)
		}
	})
}

func TestAptosSettle(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t)

	t.Run("successful settle", func(t *testing.T) {
		node := newMockNode()
		f := NewExactAptosFacilitator(node)
		resp, err := f.Settle(ctx, buildTestPayload(t, account, 1_000_000, payloadOverrides{}), testRequirements())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !resp.Success {
			t.Fatalf("expected success, got reason: %s", resp.ErrorReason)
		}
		if resp.Transaction != "0xaptostx" {
			t.Errorf("expected transaction hash, got %s", resp.Transaction)
		}
		if node.submitted != 1 {
			t.Errorf("expected 1 submission, got %d", node.submitted)
		}
	})

	t.Run("submit failure reported", func(t *testing.T) {
		node := newMockNode()
		node.submitErr = fmt.Errorf("mempool full")
		f := NewExactAptosFacilitator(node)
		resp, _ := f.Settle(ctx, buildTestPayload(t, account, 1_000_000, payloadOverrides{}), testRequirements())
		if resp.Success || resp.ErrorReason != ErrSettlementFailed {
			t.Fatalf("expected %s, got success=%v reason=%s", ErrSettlementFailed, resp.Success, resp.ErrorReason)
		}
	})

	t.Run("invalid verify short-circuits settle", func(t *testing.T) {
		node := newMockNode()
		f := NewExactAptosFacilitator(node)
		resp, _ := f.Settle(ctx, buildTestPayload(t, account, 1, payloadOverrides{}), testRequirements())
		if resp.Success {
			t.Fatal("expected failure")
		}
		if node.submitted != 0 {
			t.Errorf("expected no submission, got %d", node.submitted)
		}
	})
}

// mockClientSigner adapts a test account to the ClientAptosSigner interface
type mockClientSigner struct {
	account *testAccount
}

func (m *mockClientSigner) AccountAddress() string { return m.account.address.StringLong() }

func (m *mockClientSigner) SignTransaction(ctx context.Context, rawTxn *aptossdk.RawTransaction) (*crypto.AccountAuthenticator, error) {
	msg, err := rawTxn.SigningMessage()
	if err != nil {
		return nil, err
	}
	return m.account.key.Sign(msg)
}

func (m *mockClientSigner) SequenceNumber(ctx context.Context) (uint64, error) { return 42, nil }

func TestAptosClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	account := newTestAccount(t)

	client := NewExactAptosClient(&mockClientSigner{account: account})
	partial, err := client.CreatePaymentPayload(ctx, 2, testRequirements())
	if err != nil {
		t.Fatalf("failed to create payload: %v", err)
	}

	payload := x402.PaymentPayload{
		X402Version: partial.X402Version,
		Payload:     partial.Payload,
		Accepted:    testRequirements(),
	}

	f := NewExactAptosFacilitator(newMockNode())
	resp, err := f.Verify(ctx, payload, testRequirements())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !resp.IsValid {
		t.Fatalf("expected valid, got reason: %s", resp.InvalidReason)
	}

	aptosPayload, err := PayloadFromMap(partial.Payload)
	if err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	rawTxn, err := aptosPayload.DecodeTransaction()
	if err != nil {
		t.Fatalf("failed to decode transaction: %v", err)
	}
	if rawTxn.SequenceNumber != 42 {
		t.Errorf("expected sequence number 42, got %d", rawTxn.SequenceNumber)
	}
	if rawTxn.ChainId != 2 {
		t.Errorf("expected chain id 2, got %d", rawTxn.ChainId)
	}
}

// Error tags are wire contract: clients and dashboards match on the literal
// strings, so renaming a constant must not change what goes over the wire.
func TestErrorTagValues(t *testing.T) {
	tags := map[string]string{
		ErrSelfSponsorship:    "invalid_exact_aptos_payload_fee_payer_transferring_funds",
		ErrRecipientMismatch:  "invalid_exact_aptos_payload_recipient_mismatch",
		ErrAssetMismatch:      "invalid_exact_aptos_payload_asset_mismatch",
		ErrInsufficientAmount: "invalid_exact_aptos_payload_insufficient_amount",
		ErrTransactionExpired: "invalid_exact_aptos_payload_transaction_expired",
	}
	for got, want := range tags {
		if got != want {
			t.Errorf("expected tag %s, got %s", want, got)
		}
	}
}
