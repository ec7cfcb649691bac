package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	x402 "github.com/x402labs/x402-go"
)

// Wire header names. Decoders accept both generations case-insensitively;
// encoders pick by protocol version.
const (
	// HeaderPayment carries a v1 payment payload on requests.
	HeaderPayment = "X-PAYMENT"

	// HeaderPaymentSignature carries a v2 payment payload on requests.
	HeaderPaymentSignature = "PAYMENT-SIGNATURE"

	// HeaderPaymentRequired carries the accepts list on 402 responses so
	// programmatic clients need not parse HTML bodies.
	HeaderPaymentRequired = "PAYMENT-REQUIRED"

	// HeaderPaymentResponse carries the settlement receipt on responses.
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"

	// HeaderPaymentResponseV2 is the v2 name for the settlement receipt.
	HeaderPaymentResponseV2 = "PAYMENT-RESPONSE"

	// HeaderPaymentReceipt carries a signed settlement receipt when the
	// server has a receipt issuer configured.
	HeaderPaymentReceipt = "PAYMENT-RECEIPT"
)

// MaxPaymentHeaderBytes caps the decoded size of any payment header.
const MaxPaymentHeaderBytes = 8 * 1024

// encodeHeaderValue serializes v to JSON and base64-encodes it with the
// standard alphabet.
func encodeHeaderValue(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal header value: %v", err))
	}
	return base64.StdEncoding.EncodeToString(data)
}

// decodeHeaderValue base64-decodes a header and unmarshals it into out.
// Both the standard and URL-safe alphabets are accepted, padded or not.
func decodeHeaderValue(header string, out interface{}) error {
	data, err := decodeBase64Flexible(header)
	if err != nil {
		return fmt.Errorf("%s: %w", x402.ErrCodeInvalidPayload, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", x402.ErrCodeInvalidPayload, err)
	}
	return nil
}

// decodeBase64Flexible decodes standard or URL-safe base64, with or without
// padding, enforcing the header size cap before decoding.
func decodeBase64Flexible(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty header")
	}
	if len(s) > MaxPaymentHeaderBytes {
		return nil, fmt.Errorf("header exceeds %d bytes", MaxPaymentHeaderBytes)
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("invalid base64 encoding: %w", lastErr)
}

// EncodePaymentPayloadHeader encodes a payment payload for the request header
// matching its protocol version.
func EncodePaymentPayloadHeader(payload x402.PaymentPayload) (name, value string) {
	if payload.X402Version == x402.ProtocolVersionV1 {
		return HeaderPayment, encodeHeaderValue(payload)
	}
	return HeaderPaymentSignature, encodeHeaderValue(payload)
}

// DecodePaymentPayloadHeader decodes a payment header value into a payload.
func DecodePaymentPayloadHeader(header string) (x402.PaymentPayload, error) {
	var payload x402.PaymentPayload
	if err := decodeHeaderValue(header, &payload); err != nil {
		return x402.PaymentPayload{}, err
	}
	return payload, nil
}

// EncodePaymentRequiredHeader encodes a 402 response for the
// PAYMENT-REQUIRED response header.
func EncodePaymentRequiredHeader(required x402.PaymentRequired) string {
	return encodeHeaderValue(required)
}

// DecodePaymentRequiredHeader decodes a PAYMENT-REQUIRED header value.
func DecodePaymentRequiredHeader(header string) (x402.PaymentRequired, error) {
	var required x402.PaymentRequired
	if err := decodeHeaderValue(header, &required); err != nil {
		return x402.PaymentRequired{}, err
	}
	return required, nil
}

// EncodePaymentResponseHeader encodes a settlement receipt for the
// X-PAYMENT-RESPONSE response header.
func EncodePaymentResponseHeader(response x402.SettleResponse) string {
	return encodeHeaderValue(response)
}

// DecodePaymentResponseHeader decodes a settlement receipt header value.
func DecodePaymentResponseHeader(header string) (x402.SettleResponse, error) {
	var response x402.SettleResponse
	if err := decodeHeaderValue(header, &response); err != nil {
		return x402.SettleResponse{}, err
	}
	return response, nil
}

// ExtractPaymentHeader returns the first payment header present in headers,
// checking both generations case-insensitively.
func ExtractPaymentHeader(headers map[string]string) (string, bool) {
	for k, v := range headers {
		switch strings.ToUpper(k) {
		case HeaderPaymentSignature, HeaderPayment:
			return v, true
		}
	}
	return "", false
}
