package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// DecodedInvoice is the subset of LND's payreq decode the scheme needs.
type DecodedInvoice struct {
	PaymentHash string
	Destination string
	NumSatoshis int64
	Timestamp   int64
	Expiry      int64
}

// InvoiceStatus is the settlement state of an invoice on the node.
type InvoiceStatus struct {
	Settled    bool
	AmtPaidSat int64
}

// LightningBackend abstracts the node the facilitator checks invoices
// against.
type LightningBackend interface {
	// DecodeInvoice decodes a BOLT11 payment request.
	DecodeInvoice(ctx context.Context, bolt11 string) (*DecodedInvoice, error)

	// LookupInvoice returns the settlement state of an invoice by its
	// payment hash (hex).
	LookupInvoice(ctx context.Context, paymentHash string) (*InvoiceStatus, error)
}

// LndRestClient talks to LND's REST proxy, authenticating with a macaroon.
type LndRestClient struct {
	baseURL     string
	macaroonHex string
	httpClient  *http.Client
}

// NewLndRestClient creates a client for an LND REST endpoint.
func NewLndRestClient(baseURL, macaroonHex string) *LndRestClient {
	return &LndRestClient{
		baseURL:     baseURL,
		macaroonHex: macaroonHex,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewLndRestClientFromEnv creates a client from LND_REST_URL and
// LND_MACAROON_HEX.
func NewLndRestClientFromEnv() (*LndRestClient, error) {
	baseURL := os.Getenv("LND_REST_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("LND_REST_URL is not set")
	}
	macaroonHex := os.Getenv("LND_MACAROON_HEX")
	if macaroonHex == "" {
		return nil, fmt.Errorf("LND_MACAROON_HEX is not set")
	}
	return NewLndRestClient(baseURL, macaroonHex), nil
}

// lndPayReq mirrors the /v1/payreq response. LND renders int64 as strings.
type lndPayReq struct {
	Destination string `json:"destination"`
	PaymentHash string `json:"payment_hash"`
	NumSatoshis string `json:"num_satoshis"`
	Timestamp   string `json:"timestamp"`
	Expiry      string `json:"expiry"`
}

// lndInvoice mirrors the fields of /v1/invoice the scheme needs.
type lndInvoice struct {
	Settled    bool   `json:"settled"`
	AmtPaidSat string `json:"amt_paid_sat"`
}

// DecodeInvoice decodes a BOLT11 payment request via /v1/payreq.
func (c *LndRestClient) DecodeInvoice(ctx context.Context, bolt11 string) (*DecodedInvoice, error) {
	var resp lndPayReq
	if err := c.get(ctx, "/v1/payreq/"+url.PathEscape(bolt11), &resp); err != nil {
		return nil, err
	}

	numSatoshis, err := strconv.ParseInt(resp.NumSatoshis, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid num_satoshis %q: %w", resp.NumSatoshis, err)
	}
	timestamp, err := strconv.ParseInt(resp.Timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", resp.Timestamp, err)
	}
	expiry, err := strconv.ParseInt(resp.Expiry, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry %q: %w", resp.Expiry, err)
	}

	return &DecodedInvoice{
		PaymentHash: resp.PaymentHash,
		Destination: resp.Destination,
		NumSatoshis: numSatoshis,
		Timestamp:   timestamp,
		Expiry:      expiry,
	}, nil
}

// LookupInvoice returns the settlement state of an invoice via /v1/invoice.
func (c *LndRestClient) LookupInvoice(ctx context.Context, paymentHash string) (*InvoiceStatus, error) {
	var resp lndInvoice
	if err := c.get(ctx, "/v1/invoice/"+url.PathEscape(paymentHash), &resp); err != nil {
		return nil, err
	}

	amtPaidSat := int64(0)
	if resp.AmtPaidSat != "" {
		parsed, err := strconv.ParseInt(resp.AmtPaidSat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amt_paid_sat %q: %w", resp.AmtPaidSat, err)
		}
		amtPaidSat = parsed
	}

	return &InvoiceStatus{
		Settled:    resp.Settled,
		AmtPaidSat: amtPaidSat,
	}, nil
}

// lndAddInvoiceResponse mirrors the /v1/invoices response.
type lndAddInvoiceResponse struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
}

// CreateInvoice mints an invoice via /v1/invoices. The returned invoice id
// is the payment hash in base64, as LND renders it.
func (c *LndRestClient) CreateInvoice(ctx context.Context, sats int64, memo string) (string, string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"value": strconv.FormatInt(sats, 10),
		"memo":  memo,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/invoices", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Grpc-Metadata-macaroon", c.macaroonHex)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("lnd request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("lnd returned status %d for /v1/invoices", resp.StatusCode)
	}

	var decoded lndAddInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", "", err
	}
	return decoded.PaymentRequest, decoded.RHash, nil
}

func (c *LndRestClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Grpc-Metadata-macaroon", c.macaroonHex)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lnd request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lnd returned status %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
