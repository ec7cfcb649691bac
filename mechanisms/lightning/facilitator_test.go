package lightning

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	x402 "github.com/x402labs/x402-go"
)

const (
	testBolt11      = "lnbc10u1p3unwfusdqqpp5jptserfk3zk4qy42tlucycrfwxhydvlemu9pqr93tuzlv9cc7g3s"
	testPaymentHash = "9057219a6d115aa025553ff982606971ae46b3f9df0a100cb15f05f61718f223"
	testDestination = "03e7156ae33b0a208d0744199163177e909e80176e55d97a2f221ede0f934dd9ad"
)

// mockBackend is a configurable LightningBackend
type mockBackend struct {
	invoice   *DecodedInvoice
	decodeErr error
	status    *InvoiceStatus
	lookupErr error
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		invoice: &DecodedInvoice{
			PaymentHash: testPaymentHash,
			Destination: testDestination,
			NumSatoshis: 1000,
			Timestamp:   time.Now().Unix(),
			Expiry:      3600,
		},
		status: &InvoiceStatus{
			Settled:    true,
			AmtPaidSat: 1000,
		},
	}
}

func (m *mockBackend) DecodeInvoice(ctx context.Context, bolt11 string) (*DecodedInvoice, error) {
	if m.decodeErr != nil {
		return nil, m.decodeErr
	}
	return m.invoice, nil
}

func (m *mockBackend) LookupInvoice(ctx context.Context, paymentHash string) (*InvoiceStatus, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.status, nil
}

func testPayload() x402.PaymentPayload {
	payload := &ExactLightningPayload{Bolt11: testBolt11}
	return x402.PaymentPayload{
		X402Version: 2,
		Payload:     payload.ToMap(),
		Accepted: x402.PaymentRequirements{
			Scheme:  SchemeExact,
			Network: NetworkMainnet,
		},
	}
}

func testRequirements() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:  SchemeExact,
		Network: NetworkMainnet,
		Asset:   AssetSats,
		Amount:  "1000",
		PayTo:   testDestination,
	}
}

func TestLightningVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("valid invoice", func(t *testing.T) {
		f := NewExactLightningFacilitator(newMockBackend())
		resp, err := f.Verify(ctx, testPayload(), testRequirements())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !resp.IsValid {
			t.Fatalf("expected valid, got reason: %s", resp.InvalidReason)
		}
	})

	t.Run("rejects undecodable invoice", func(t *testing.T) {
		backend := newMockBackend()
		backend.decodeErr = fmt.Errorf("checksum failed")
		f := NewExactLightningFacilitator(backend)
		resp, _ := f.Verify(ctx, testPayload(), testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrInvoiceDecodeFailed {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrInvoiceDecodeFailed, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects amount below requirement", func(t *testing.T) {
		backend := newMockBackend()
		backend.invoice.NumSatoshis = 999
		f := NewExactLightningFacilitator(backend)
		resp, _ := f.Verify(ctx, testPayload(), testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrAmountMismatch {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrAmountMismatch, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects wrong destination", func(t *testing.T) {
		backend := newMockBackend()
		backend.invoice.Destination = "02deadbeef"
		f := NewExactLightningFacilitator(backend)
		resp, _ := f.Verify(ctx, testPayload(), testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrDestinationMismatch {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrDestinationMismatch, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects expired invoice", func(t *testing.T) {
		backend := newMockBackend()
		backend.invoice.Timestamp = time.Now().Unix() - 7200
		backend.invoice.Expiry = 3600
		f := NewExactLightningFacilitator(backend)
		resp, _ := f.Verify(ctx, testPayload(), testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrInvoiceExpired {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrInvoiceExpired, resp.IsValid, resp.InvalidReason)
		}
	})

	t.Run("rejects missing bolt11", func(t *testing.T) {
		f := NewExactLightningFacilitator(newMockBackend())
		payload := testPayload()
		payload.Payload = map[string]interface{}{}
		resp, _ := f.Verify(ctx, payload, testRequirements())
		if resp.IsValid || resp.InvalidReason != ErrInvalidPayload {
			t.Fatalf("expected %s, got valid=%v reason=%s", ErrInvalidPayload, resp.IsValid, resp.InvalidReason)
		}
	})
}

func TestLightningSettle(t *testing.T) {
	ctx := context.Background()

	t.Run("settled invoice succeeds", func(t *testing.T) {
		f := NewExactLightningFacilitator(newMockBackend())
		resp, err := f.Settle(ctx, testPayload(), testRequirements())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !resp.Success {
			t.Fatalf("expected success, got reason: %s", resp.ErrorReason)
		}
		if resp.Transaction != testPaymentHash {
			t.Errorf("expected payment hash transaction, got %s", resp.Transaction)
		}
	})

	t.Run("unsettled invoice fails", func(t *testing.T) {
		backend := newMockBackend()
		backend.status.Settled = false
		f := NewExactLightningFacilitator(backend)
		resp, _ := f.Settle(ctx, testPayload(), testRequirements())
		if resp.Success || resp.ErrorReason != ErrInvoiceNotSettled {
			t.Fatalf("expected %s, got success=%v reason=%s", ErrInvoiceNotSettled, resp.Success, resp.ErrorReason)
		}
	})

	t.Run("underpaid invoice fails", func(t *testing.T) {
		backend := newMockBackend()
		backend.status.AmtPaidSat = 500
		f := NewExactLightningFacilitator(backend)
		resp, _ := f.Settle(ctx, testPayload(), testRequirements())
		if resp.Success || resp.ErrorReason != ErrUnderpaid {
			t.Fatalf("expected %s, got success=%v reason=%s", ErrUnderpaid, resp.Success, resp.ErrorReason)
		}
	})
}

// mockWallet pays any invoice
type mockWallet struct {
	paid []string
	err  error
}

func (m *mockWallet) PayInvoice(ctx context.Context, bolt11 string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.paid = append(m.paid, bolt11)
	return "preimage", nil
}

func TestLightningClient(t *testing.T) {
	ctx := context.Background()

	t.Run("pays invoice from requirements", func(t *testing.T) {
		wallet := &mockWallet{}
		client := NewExactLightningClient(wallet)
		requirements := testRequirements()
		requirements.Extra = map[string]interface{}{"bolt11": testBolt11, "invoiceId": "abc"}

		partial, err := client.CreatePaymentPayload(ctx, 2, requirements)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(wallet.paid) != 1 || wallet.paid[0] != testBolt11 {
			t.Errorf("expected invoice to be paid, got %v", wallet.paid)
		}
		if partial.Payload["bolt11"] != testBolt11 {
			t.Errorf("expected bolt11 echoed, got %v", partial.Payload["bolt11"])
		}
		if partial.Payload["invoiceId"] != "abc" {
			t.Errorf("expected invoiceId echoed, got %v", partial.Payload["invoiceId"])
		}
	})

	t.Run("fails without invoice", func(t *testing.T) {
		client := NewExactLightningClient(&mockWallet{})
		if _, err := client.CreatePaymentPayload(ctx, 2, testRequirements()); err == nil {
			t.Fatal("expected error")
		}
	})
}

// issuerBackend doubles as issuer for server tests
type mockIssuer struct {
	bolt11 string
	err    error
}

func (m *mockIssuer) CreateInvoice(ctx context.Context, sats int64, memo string) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	return m.bolt11, "invoice-1", nil
}

func TestLightningServer(t *testing.T) {
	ctx := context.Background()

	t.Run("parse price in sats", func(t *testing.T) {
		server := NewExactLightningServer(&mockIssuer{})
		amount, err := server.ParsePrice("1000 sats", x402.Network(NetworkMainnet))
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if amount.Amount != "1000" || amount.Asset != AssetSats {
			t.Errorf("unexpected asset amount: %+v", amount)
		}
	})

	t.Run("rejects fiat price", func(t *testing.T) {
		server := NewExactLightningServer(&mockIssuer{})
		if _, err := server.ParsePrice("$1.00", x402.Network(NetworkMainnet)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("enhance attaches invoice", func(t *testing.T) {
		server := NewExactLightningServer(&mockIssuer{bolt11: testBolt11})
		requirements, err := server.EnhancePaymentRequirements(ctx, testRequirements(), x402.SupportedKind{X402Version: 2}, nil)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if requirements.Extra["bolt11"] != testBolt11 {
			t.Errorf("expected invoice attached, got %v", requirements.Extra)
		}
		if requirements.Extra["invoiceId"] != "invoice-1" {
			t.Errorf("expected invoice id attached, got %v", requirements.Extra)
		}
	})
}

func TestLndRestClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Grpc-Metadata-macaroon") != "deadbeef" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payreq/"+testBolt11:
			fmt.Fprintf(w, `{"destination":%q,"payment_hash":%q,"num_satoshis":"1000","timestamp":"1700000000","expiry":"3600"}`, testDestination, testPaymentHash)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/invoice/"+testPaymentHash:
			fmt.Fprint(w, `{"settled":true,"amt_paid_sat":"1000"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/invoices":
			fmt.Fprintf(w, `{"r_hash":"cmhhc2g=","payment_request":%q}`, testBolt11)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewLndRestClient(server.URL, "deadbeef")
	ctx := context.Background()

	invoice, err := client.DecodeInvoice(ctx, testBolt11)
	if err != nil {
		t.Fatalf("failed to decode invoice: %v", err)
	}
	if invoice.NumSatoshis != 1000 || invoice.PaymentHash != testPaymentHash {
		t.Errorf("unexpected invoice: %+v", invoice)
	}

	status, err := client.LookupInvoice(ctx, testPaymentHash)
	if err != nil {
		t.Fatalf("failed to look up invoice: %v", err)
	}
	if !status.Settled || status.AmtPaidSat != 1000 {
		t.Errorf("unexpected status: %+v", status)
	}

	bolt11, invoiceID, err := client.CreateInvoice(ctx, 1000, "test")
	if err != nil {
		t.Fatalf("failed to create invoice: %v", err)
	}
	if bolt11 != testBolt11 || invoiceID == "" {
		t.Errorf("unexpected invoice: %s %s", bolt11, invoiceID)
	}
}
