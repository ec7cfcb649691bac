package lightning

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	x402 "github.com/x402labs/x402-go"
)

// InvoiceIssuer mints invoices for the resource server side of the scheme.
type InvoiceIssuer interface {
	// CreateInvoice creates an invoice for the given amount in sats and
	// returns the BOLT11 payment request and the node's invoice id.
	CreateInvoice(ctx context.Context, sats int64, memo string) (bolt11 string, invoiceID string, err error)
}

// ExactLightningServer implements the SchemeNetworkServer interface for
// Lightning exact payments. Enhancing requirements mints a fresh invoice and
// attaches it, so every 402 challenge carries its own invoice.
type ExactLightningServer struct {
	issuer InvoiceIssuer
}

// NewExactLightningServer creates a new ExactLightningServer
func NewExactLightningServer(issuer InvoiceIssuer) *ExactLightningServer {
	return &ExactLightningServer{
		issuer: issuer,
	}
}

// Scheme returns the scheme identifier
func (s *ExactLightningServer) Scheme() string {
	return SchemeExact
}

// ParsePrice parses a price in satoshis. Fiat prices are not convertible
// without a rate source, so only sat denominations are accepted.
func (s *ExactLightningServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	priceStr, ok := price.(string)
	if !ok {
		priceStr = fmt.Sprintf("%v", price)
	}

	priceStr = strings.TrimSpace(priceStr)
	priceStr = strings.TrimSuffix(priceStr, " sats")
	priceStr = strings.TrimSuffix(priceStr, " sat")
	priceStr = strings.TrimSpace(priceStr)

	if !IsValidNetwork(string(network)) {
		return x402.AssetAmount{}, fmt.Errorf("unsupported network: %s", network)
	}

	sats, err := strconv.ParseInt(priceStr, 10, 64)
	if err != nil || sats <= 0 {
		return x402.AssetAmount{}, fmt.Errorf("invalid sat amount: %v", price)
	}

	return x402.AssetAmount{
		Asset:  AssetSats,
		Amount: strconv.FormatInt(sats, 10),
	}, nil
}

// EnhancePaymentRequirements mints an invoice for the required amount and
// attaches it to the requirements extra.
func (s *ExactLightningServer) EnhancePaymentRequirements(
	ctx context.Context,
	requirements x402.PaymentRequirements,
	supportedKind x402.SupportedKind,
	extensionKeys []string,
) (x402.PaymentRequirements, error) {
	if supportedKind.X402Version != 2 {
		return requirements, fmt.Errorf("v2 only supports x402 version 2")
	}

	if !IsValidNetwork(string(requirements.Network)) {
		return requirements, fmt.Errorf("unsupported network: %s", requirements.Network)
	}

	if requirements.Asset == "" {
		requirements.Asset = AssetSats
	}

	sats, err := strconv.ParseInt(requirements.Amount, 10, 64)
	if err != nil || sats <= 0 {
		return requirements, fmt.Errorf("invalid sat amount: %s", requirements.Amount)
	}

	bolt11, invoiceID, err := s.issuer.CreateInvoice(ctx, sats, requirements.Description)
	if err != nil {
		return requirements, fmt.Errorf("failed to create invoice: %w", err)
	}

	if requirements.Extra == nil {
		requirements.Extra = make(map[string]interface{})
	}
	requirements.Extra["bolt11"] = bolt11
	if invoiceID != "" {
		requirements.Extra["invoiceId"] = invoiceID
	}

	return requirements, nil
}
