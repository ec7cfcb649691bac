package evm

import (
	"context"
	"math/big"
	"strconv"
	"strings"
	"testing"
	"time"

	x402 "github.com/x402labs/x402-go"
)

// Mock implementations for testing

type mockClientSigner struct {
	address string
	signErr error
}

func (m *mockClientSigner) Address() string {
	return m.address
}

func (m *mockClientSigner) SignTypedData(
	ctx context.Context,
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	if m.signErr != nil {
		return nil, m.signErr
	}
	// Return a mock signature (65 bytes)
	return make([]byte, 65), nil
}

type mockFacilitatorSigner struct {
	chainID      *big.Int
	balances     map[string]*big.Int
	noncesUsed   map[string]bool
	verifyResult bool
	txHash       string
	txSuccess    bool

	writtenABI []byte
}

func (m *mockFacilitatorSigner) GetAddresses() []string {
	return []string{"0xfacilitator0000000000000000000000000001"}
}

func (m *mockFacilitatorSigner) ReadContract(
	ctx context.Context,
	address string,
	abi []byte,
	functionName string,
	args ...interface{},
) (interface{}, error) {
	if functionName == FunctionAuthorizationState {
		// Check if nonce is used
		nonce := args[1].([32]byte)
		nonceHex := BytesToHex(nonce[:])
		return m.noncesUsed[nonceHex], nil
	}
	return nil, nil
}

func (m *mockFacilitatorSigner) VerifyTypedData(
	ctx context.Context,
	address string,
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
	signature []byte,
) (bool, error) {
	return m.verifyResult, nil
}

func (m *mockFacilitatorSigner) WriteContract(
	ctx context.Context,
	address string,
	abi []byte,
	functionName string,
	args ...interface{},
) (string, error) {
	m.writtenABI = abi
	return m.txHash, nil
}

func (m *mockFacilitatorSigner) SendTransaction(ctx context.Context, to string, data []byte) (string, error) {
	return m.txHash, nil
}

func (m *mockFacilitatorSigner) WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error) {
	status := uint64(TxStatusFailed)
	if m.txSuccess {
		status = TxStatusSuccess
	}
	return &TransactionReceipt{
		Status:      status,
		BlockNumber: 12345,
		TxHash:      txHash,
	}, nil
}

func (m *mockFacilitatorSigner) GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error) {
	key := address + ":" + tokenAddress
	if balance, ok := m.balances[key]; ok {
		return balance, nil
	}
	return big.NewInt(0), nil
}

func (m *mockFacilitatorSigner) GetChainID(ctx context.Context) (*big.Int, error) {
	if m.chainID != nil {
		return m.chainID, nil
	}
	return ChainIDBase, nil
}

func (m *mockFacilitatorSigner) GetCode(ctx context.Context, address string) ([]byte, error) {
	return nil, nil
}

// Tests

func TestGetNetworkConfig(t *testing.T) {
	tests := []struct {
		name    string
		network string
		want    *big.Int
		wantErr bool
	}{
		{
			name:    "base network",
			network: "base",
			want:    ChainIDBase,
		},
		{
			name:    "eip155:8453 network",
			network: "eip155:8453",
			want:    ChainIDBase,
		},
		{
			name:    "base-sepolia network",
			network: "base-sepolia",
			want:    ChainIDBaseSepolia,
		},
		{
			name:    "scroll network",
			network: "eip155:534352",
			want:    ChainIDScroll,
		},
		{
			name:    "unsupported network",
			network: "unsupported",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetNetworkConfig(tt.network)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetNetworkConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.ChainID.Cmp(tt.want) != 0 {
				t.Errorf("GetNetworkConfig() chain ID = %v, want %v", got.ChainID, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     *big.Int
		wantErr  bool
	}{
		{
			name:     "whole number",
			amount:   "100",
			decimals: 6,
			want:     big.NewInt(100000000), // 100 * 10^6
		},
		{
			name:     "decimal amount",
			amount:   "1.5",
			decimals: 6,
			want:     big.NewInt(1500000), // 1.5 * 10^6
		},
		{
			name:     "small decimal",
			amount:   "0.000001",
			decimals: 6,
			want:     big.NewInt(1),
		},
		{
			name:     "truncate extra decimals",
			amount:   "1.1234567",
			decimals: 6,
			want:     big.NewInt(1123456),
		},
		{
			name:     "invalid format",
			amount:   "1.2.3",
			decimals: 6,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.amount, tt.decimals)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAmount() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Cmp(tt.want) != 0 {
				t.Errorf("ParseAmount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals int
		want     string
	}{
		{
			name:     "whole number",
			amount:   big.NewInt(1000000),
			decimals: 6,
			want:     "1",
		},
		{
			name:     "with decimals",
			amount:   big.NewInt(1500000),
			decimals: 6,
			want:     "1.5",
		},
		{
			name:     "small amount",
			amount:   big.NewInt(1),
			decimals: 6,
			want:     "0.000001",
		},
		{
			name:     "zero",
			amount:   big.NewInt(0),
			decimals: 6,
			want:     "0",
		},
		{
			name:     "nil amount",
			amount:   nil,
			decimals: 6,
			want:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAmount(tt.amount, tt.decimals)
			if got != tt.want {
				t.Errorf("FormatAmount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExactEvmClient_CreatePaymentPayload(t *testing.T) {
	ctx := context.Background()
	signer := &mockClientSigner{
		address: "0x1234567890123456789012345678901234567890",
	}
	client := NewExactEvmClient(signer)

	requirements := x402.PaymentRequirements{
		Scheme:  SchemeExact,
		Network: "base",
		Asset:   "",
		PayTo:   "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd",
		Amount:  "1500000", // 1.5 USDC in smallest unit
		Extra: map[string]interface{}{
			"name":    "USD Coin",
			"version": "2",
		},
	}

	payload, err := client.CreatePaymentPayload(ctx, 2, requirements)
	if err != nil {
		t.Fatalf("CreatePaymentPayload() error = %v", err)
	}

	// Check basic fields
	if payload.X402Version != 2 {
		t.Errorf("Expected version 2, got %d", payload.X402Version)
	}

	// Check payload structure
	evmPayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		t.Fatalf("Failed to parse payload: %v", err)
	}

	if evmPayload.Authorization.From != signer.address {
		t.Errorf("Expected from %s, got %s", signer.address, evmPayload.Authorization.From)
	}
	if !strings.EqualFold(evmPayload.Authorization.To, requirements.PayTo) {
		t.Errorf("Expected to %s, got %s", requirements.PayTo, evmPayload.Authorization.To)
	}
	if evmPayload.Authorization.Value != "1500000" { // 1.5 * 10^6
		t.Errorf("Expected value 1500000, got %s", evmPayload.Authorization.Value)
	}
	if evmPayload.Signature == "" {
		t.Error("Expected signature to be present")
	}
}

// fundedSigner is a facilitator signer with the test payer's balance covering
// the standard fixture amount.
func fundedSigner() *mockFacilitatorSigner {
	return &mockFacilitatorSigner{
		chainID:      ChainIDBase,
		verifyResult: true,
		balances: map[string]*big.Int{
			"0x1234567890123456789012345678901234567890:0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913": big.NewInt(2000000),
		},
		noncesUsed: make(map[string]bool),
	}
}

func testAuthPayload(mutate func(*ExactEIP3009Authorization)) (x402.PaymentPayload, x402.PaymentRequirements) {
	now := time.Now().Unix()
	authorization := ExactEIP3009Authorization{
		From:        "0x1234567890123456789012345678901234567890",
		To:          "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd",
		Value:       "1500000",
		ValidAfter:  strconv.FormatInt(now-600, 10),
		ValidBefore: strconv.FormatInt(now+600, 10),
		Nonce:       BytesToHex(make([]byte, 32)),
	}
	if mutate != nil {
		mutate(&authorization)
	}
	evmPayload := &ExactEIP3009Payload{
		Signature:     BytesToHex(make([]byte, 65)),
		Authorization: authorization,
	}

	requirements := x402.PaymentRequirements{
		Scheme:  SchemeExact,
		Network: "base",
		Asset:   "",
		PayTo:   "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd",
		Amount:  "1500000",
		Extra: map[string]interface{}{
			"name":    "USD Coin",
			"version": "2",
		},
	}

	return x402.PaymentPayload{
		X402Version: 2,
		Accepted:    requirements,
		Payload:     evmPayload.ToMap(),
	}, requirements
}

func validTestPayload(signer *mockFacilitatorSigner) (x402.PaymentPayload, x402.PaymentRequirements) {
	return testAuthPayload(nil)
}

func TestExactEvmFacilitator_Verify(t *testing.T) {
	ctx := context.Background()

	signer := &mockFacilitatorSigner{
		chainID:      ChainIDBase,
		verifyResult: true,
		balances: map[string]*big.Int{
			"0x1234567890123456789012345678901234567890:0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913": big.NewInt(2000000),
		},
		noncesUsed: make(map[string]bool),
	}
	facilitator := NewExactEvmFacilitator(signer)

	payload, requirements := validTestPayload(signer)

	result, err := facilitator.Verify(ctx, payload, requirements)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if !result.IsValid {
		t.Errorf("Expected valid result, got invalid: %s", result.InvalidReason)
	}
	if result.Payer != "0x1234567890123456789012345678901234567890" {
		t.Errorf("Unexpected payer %s", result.Payer)
	}
}

func TestExactEvmFacilitator_VerifyRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient balance", func(t *testing.T) {
		signer := &mockFacilitatorSigner{
			verifyResult: true,
			balances:     map[string]*big.Int{}, // zero balance
			noncesUsed:   make(map[string]bool),
		}
		facilitator := NewExactEvmFacilitator(signer)
		payload, requirements := validTestPayload(signer)

		result, err := facilitator.Verify(ctx, payload, requirements)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.IsValid {
			t.Error("expected invalid result for zero balance")
		}
		if result.InvalidReason != x402.ErrCodeInsufficientFunds {
			t.Errorf("expected insufficient_funds, got %s", result.InvalidReason)
		}
	})

	t.Run("used nonce", func(t *testing.T) {
		signer := &mockFacilitatorSigner{
			verifyResult: true,
			balances: map[string]*big.Int{
				"0x1234567890123456789012345678901234567890:0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913": big.NewInt(2000000),
			},
			noncesUsed: map[string]bool{
				BytesToHex(make([]byte, 32)): true,
			},
		}
		facilitator := NewExactEvmFacilitator(signer)
		payload, requirements := validTestPayload(signer)

		result, err := facilitator.Verify(ctx, payload, requirements)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.IsValid {
			t.Error("expected invalid result for used nonce")
		}
		if result.InvalidReason != ErrNonceAlreadyUsed {
			t.Errorf("expected %s, got %s", ErrNonceAlreadyUsed, result.InvalidReason)
		}
	})

	t.Run("network mismatch", func(t *testing.T) {
		signer := fundedSigner()
		facilitator := NewExactEvmFacilitator(signer)
		payload, requirements := validTestPayload(signer)
		payload.Accepted.Network = "eip155:8453"

		result, err := facilitator.Verify(ctx, payload, requirements)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.IsValid || result.InvalidReason != ErrNetworkMismatch {
			t.Errorf("expected %s, got valid=%v reason=%s", ErrNetworkMismatch, result.IsValid, result.InvalidReason)
		}
	})

	t.Run("wrong recipient", func(t *testing.T) {
		signer := fundedSigner()
		facilitator := NewExactEvmFacilitator(signer)
		payload, requirements := testAuthPayload(func(a *ExactEIP3009Authorization) {
			a.To = "0x9999999999999999999999999999999999999999"
		})

		result, err := facilitator.Verify(ctx, payload, requirements)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.IsValid || result.InvalidReason != ErrRecipientMismatch {
			t.Errorf("expected %s, got valid=%v reason=%s", ErrRecipientMismatch, result.IsValid, result.InvalidReason)
		}
	})

	t.Run("value below required", func(t *testing.T) {
		signer := fundedSigner()
		facilitator := NewExactEvmFacilitator(signer)
		payload, requirements := testAuthPayload(func(a *ExactEIP3009Authorization) {
			a.Value = "1000"
		})

		result, err := facilitator.Verify(ctx, payload, requirements)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.IsValid || result.InvalidReason != ErrAuthorizationValue {
			t.Errorf("expected %s, got valid=%v reason=%s", ErrAuthorizationValue, result.IsValid, result.InvalidReason)
		}
	})

	t.Run("expired authorization", func(t *testing.T) {
		signer := fundedSigner()
		facilitator := NewExactEvmFacilitator(signer)
		payload, requirements := testAuthPayload(func(a *ExactEIP3009Authorization) {
			a.ValidBefore = strconv.FormatInt(time.Now().Unix()-3600, 10)
		})

		result, err := facilitator.Verify(ctx, payload, requirements)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.IsValid || result.InvalidReason != ErrValidBeforeExpired {
			t.Errorf("expected %s, got valid=%v reason=%s", ErrValidBeforeExpired, result.IsValid, result.InvalidReason)
		}
	})

	t.Run("authorization expiring within settlement buffer", func(t *testing.T) {
		signer := fundedSigner()
		facilitator := NewExactEvmFacilitator(signer)
		// Not yet expired, but too close to the edge for the settlement
		// transaction to land.
		payload, requirements := testAuthPayload(func(a *ExactEIP3009Authorization) {
			a.ValidBefore = strconv.FormatInt(time.Now().Unix()+2, 10)
		})

		result, err := facilitator.Verify(ctx, payload, requirements)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.IsValid || result.InvalidReason != ErrValidBeforeExpired {
			t.Errorf("expected %s, got valid=%v reason=%s", ErrValidBeforeExpired, result.IsValid, result.InvalidReason)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		signer := &mockFacilitatorSigner{
			verifyResult: false,
			balances: map[string]*big.Int{
				"0x1234567890123456789012345678901234567890:0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913": big.NewInt(2000000),
			},
			noncesUsed: make(map[string]bool),
		}
		facilitator := NewExactEvmFacilitator(signer)
		payload, requirements := validTestPayload(signer)

		result, err := facilitator.Verify(ctx, payload, requirements)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if result.IsValid {
			t.Error("expected invalid result for bad signature")
		}
		if result.InvalidReason != ErrInvalidSignature {
			t.Errorf("expected %s, got %s", ErrInvalidSignature, result.InvalidReason)
		}
	})
}

func TestExactEvmFacilitator_Settle(t *testing.T) {
	ctx := context.Background()

	signer := &mockFacilitatorSigner{
		chainID:      ChainIDBase,
		verifyResult: true,
		txHash:       "0x1234567890123456789012345678901234567890123456789012345678901234",
		txSuccess:    true,
		balances: map[string]*big.Int{
			"0x1234567890123456789012345678901234567890:0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913": big.NewInt(2000000),
		},
		noncesUsed: make(map[string]bool),
	}
	facilitator := NewExactEvmFacilitator(signer)

	payload, requirements := validTestPayload(signer)

	result, err := facilitator.Settle(ctx, payload, requirements)
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	if !result.Success {
		t.Errorf("Expected successful settlement, got failure: %s", result.ErrorReason)
	}
	if result.Transaction != signer.txHash {
		t.Errorf("Expected tx hash %s, got %s", signer.txHash, result.Transaction)
	}
	if result.Payer != "0x1234567890123456789012345678901234567890" {
		t.Errorf("Unexpected payer %s", result.Payer)
	}
}

func TestExactEvmFacilitator_SettleSplitSignature(t *testing.T) {
	ctx := context.Background()

	signer := &mockFacilitatorSigner{
		chainID:      ChainIDScroll,
		verifyResult: true,
		txHash:       "0xaaaa",
		txSuccess:    true,
		balances: map[string]*big.Int{
			"0x1234567890123456789012345678901234567890:0x06eFdBFf2a14a7c8E15944D1F4A48F9F95F663A4": big.NewInt(2000000),
		},
		noncesUsed: make(map[string]bool),
	}
	facilitator := NewExactEvmFacilitator(signer)

	payload, requirements := validTestPayload(signer)
	requirements.Network = "eip155:534352"
	payload.Accepted.Network = "eip155:534352"

	result, err := facilitator.Settle(ctx, payload, requirements)
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %s", result.ErrorReason)
	}
	if string(signer.writtenABI) != string(TransferWithAuthorizationVRSABI) {
		t.Error("expected split-signature (v, r, s) ABI on Scroll")
	}
}

func TestExactEvmServer_ParsePrice(t *testing.T) {
	server := NewExactEvmServer()

	tests := []struct {
		name    string
		price   string
		network string
		want    string // expected amount
		wantErr bool
	}{
		{
			name:    "dollar format",
			price:   "$1.50",
			network: "base",
			want:    "1500000",
		},
		{
			name:    "decimal format",
			price:   "1.50",
			network: "base",
			want:    "1500000",
		},
		{
			name:    "already in smallest unit",
			price:   "1500000",
			network: "base",
			want:    "1500000",
		},
		{
			name:    "with USD suffix",
			price:   "1.50 USD",
			network: "base",
			want:    "1500000",
		},
		{
			name:    "with USDC suffix",
			price:   "1.50 USDC",
			network: "base",
			want:    "1500000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := server.ParsePrice(tt.price, x402.Network(tt.network))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePrice() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Amount != tt.want {
				t.Errorf("ParsePrice() amount = %v, want %v", got.Amount, tt.want)
			}
		})
	}
}

func TestExactEvmServer_EnhancePaymentRequirements(t *testing.T) {
	ctx := context.Background()
	server := NewExactEvmServer()

	requirements := x402.PaymentRequirements{
		Network: "base",
		PayTo:   "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd",
		Amount:  "1500000", // 1.5 USDC in smallest unit
	}

	supportedKind := x402.SupportedKind{
		X402Version: 2,
		Scheme:      SchemeExact,
		Network:     "base",
		Extra: map[string]interface{}{
			"customField": "customValue",
		},
	}

	enhanced, err := server.EnhancePaymentRequirements(ctx, requirements, supportedKind, []string{"customField"})
	if err != nil {
		t.Fatalf("EnhancePaymentRequirements() error = %v", err)
	}

	// Check amount was kept in smallest unit
	if enhanced.Amount != "1500000" {
		t.Errorf("Expected amount 1500000, got %s", enhanced.Amount)
	}

	// Check asset was set to default
	expectedAsset := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913" // USDC on Base
	if !strings.EqualFold(enhanced.Asset, expectedAsset) {
		t.Errorf("Expected asset %s, got %s", expectedAsset, enhanced.Asset)
	}

	// Check extra fields were added
	if enhanced.Extra["name"] != "USD Coin" {
		t.Errorf("Expected name 'USD Coin', got %v", enhanced.Extra["name"])
	}
	if enhanced.Extra["version"] != "2" {
		t.Errorf("Expected version '2', got %v", enhanced.Extra["version"])
	}
	if enhanced.Extra["customField"] != "customValue" {
		t.Errorf("Expected customField 'customValue', got %v", enhanced.Extra["customField"])
	}
}

func TestIsERC6492Signature(t *testing.T) {
	magic, _ := HexToBytes(ERC6492MagicValue)

	plain := make([]byte, 65)
	if IsERC6492Signature(plain) {
		t.Error("plain 65-byte signature must not be detected as ERC-6492")
	}

	wrapped := append(make([]byte, 96), magic...)
	if !IsERC6492Signature(wrapped) {
		t.Error("signature with magic suffix must be detected as ERC-6492")
	}
}
