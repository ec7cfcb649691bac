package http

import (
	"encoding/json"
	"testing"

	x402 "github.com/x402labs/x402-go"
)

func TestGetPaymentRequiredResponse(t *testing.T) {
	client := NewX402HTTPClient()

	requirement := x402.PaymentRequirements{
		Scheme:  "exact",
		Network: "eip155:84532",
		Amount:  "10000",
		PayTo:   "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
	}

	t.Run("header takes precedence over body", func(t *testing.T) {
		header := EncodePaymentRequiredHeader(x402.PaymentRequired{
			X402Version: x402.ProtocolVersion,
			Accepts:     []x402.PaymentRequirements{requirement},
		})
		body, _ := json.Marshal(x402.PaymentRequired{
			X402Version: x402.ProtocolVersion,
			Error:       "body-should-be-ignored",
			Accepts:     []x402.PaymentRequirements{requirement},
		})

		required, err := client.GetPaymentRequiredResponse(map[string]string{
			HeaderPaymentRequired: header,
		}, body)
		if err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if required.Error != "" {
			t.Errorf("expected header to win over body, got error %q", required.Error)
		}
		if len(required.Accepts) != 1 || required.Accepts[0].Amount != "10000" {
			t.Errorf("unexpected accepts: %+v", required.Accepts)
		}
	})

	t.Run("v1 body without header", func(t *testing.T) {
		body, _ := json.Marshal(x402.PaymentRequired{
			X402Version: x402.ProtocolVersionV1,
			Accepts:     []x402.PaymentRequirements{requirement},
		})

		required, err := client.GetPaymentRequiredResponse(nil, body)
		if err != nil {
			t.Fatalf("failed to parse v1 body: %v", err)
		}
		if required.X402Version != x402.ProtocolVersionV1 {
			t.Errorf("expected version 1, got %d", required.X402Version)
		}
	})

	t.Run("v2 body without header", func(t *testing.T) {
		body, _ := json.Marshal(x402.PaymentRequired{
			X402Version: x402.ProtocolVersion,
			Accepts:     []x402.PaymentRequirements{requirement},
		})

		required, err := client.GetPaymentRequiredResponse(nil, body)
		if err != nil {
			t.Fatalf("failed to parse v2 body: %v", err)
		}
		if required.X402Version != x402.ProtocolVersion {
			t.Errorf("expected version 2, got %d", required.X402Version)
		}
		if len(required.Accepts) != 1 || required.Accepts[0].Network != "eip155:84532" {
			t.Errorf("unexpected accepts: %+v", required.Accepts)
		}
	})

	t.Run("body with accepts but no version", func(t *testing.T) {
		body := []byte(`{"accepts":[{"scheme":"exact","network":"eip155:84532","amount":"10000"}]}`)

		required, err := client.GetPaymentRequiredResponse(nil, body)
		if err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		if len(required.Accepts) != 1 {
			t.Errorf("unexpected accepts: %+v", required.Accepts)
		}
	})

	t.Run("unrelated JSON body rejected", func(t *testing.T) {
		if _, err := client.GetPaymentRequiredResponse(nil, []byte(`{"message":"hello"}`)); err == nil {
			t.Fatal("expected error for body without payment information")
		}
	})

	t.Run("empty response rejected", func(t *testing.T) {
		if _, err := client.GetPaymentRequiredResponse(nil, nil); err == nil {
			t.Fatal("expected error for empty response")
		}
	})
}
