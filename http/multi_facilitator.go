package http

import (
	"context"
	"fmt"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/types"
)

// MultiFacilitatorClient fans a resource server out over several
// facilitators. Verify and settle go to the first facilitator whose supported
// kinds cover the payment, falling back to trying each in order; GetSupported
// merges all facilitators' kinds and extensions.
type MultiFacilitatorClient struct {
	clients []x402.FacilitatorClient
}

// NewMultiFacilitatorClient composes facilitator clients. Earlier clients get
// precedence when more than one supports a payment kind.
func NewMultiFacilitatorClient(clients ...x402.FacilitatorClient) *MultiFacilitatorClient {
	return &MultiFacilitatorClient{clients: clients}
}

// Verify implements FacilitatorClient
func (m *MultiFacilitatorClient) Verify(ctx context.Context, payloadBytes, requirementsBytes []byte) (x402.VerifyResponse, error) {
	client, err := m.route(ctx, payloadBytes, requirementsBytes)
	if err == nil && client != nil {
		return client.Verify(ctx, payloadBytes, requirementsBytes)
	}

	var lastErr error
	for _, c := range m.clients {
		resp, err := c.Verify(ctx, payloadBytes, requirementsBytes)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no facilitator clients configured")
	}
	return x402.VerifyResponse{}, lastErr
}

// Settle implements FacilitatorClient
func (m *MultiFacilitatorClient) Settle(ctx context.Context, payloadBytes, requirementsBytes []byte) (x402.SettleResponse, error) {
	client, err := m.route(ctx, payloadBytes, requirementsBytes)
	if err == nil && client != nil {
		return client.Settle(ctx, payloadBytes, requirementsBytes)
	}

	var lastErr error
	for _, c := range m.clients {
		resp, err := c.Settle(ctx, payloadBytes, requirementsBytes)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no facilitator clients configured")
	}
	return x402.SettleResponse{}, lastErr
}

// GetSupported merges kinds and extensions from all facilitators, first
// client wins on duplicate kinds.
func (m *MultiFacilitatorClient) GetSupported(ctx context.Context) (x402.SupportedResponse, error) {
	merged := x402.SupportedResponse{}
	seenKinds := make(map[string]bool)
	seenExtensions := make(map[string]bool)

	var lastErr error
	succeeded := false
	for _, c := range m.clients {
		supported, err := c.GetSupported(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		succeeded = true

		for _, kind := range supported.Kinds {
			key := fmt.Sprintf("%d/%s/%s", kind.X402Version, kind.Scheme, kind.Network)
			if seenKinds[key] {
				continue
			}
			seenKinds[key] = true
			merged.Kinds = append(merged.Kinds, kind)
		}
		for _, ext := range supported.Extensions {
			if seenExtensions[ext] {
				continue
			}
			seenExtensions[ext] = true
			merged.Extensions = append(merged.Extensions, ext)
		}
	}

	if !succeeded && lastErr != nil {
		return x402.SupportedResponse{}, lastErr
	}
	return merged, nil
}

// route finds the facilitator whose supported kinds cover the payment, or
// nil when none matches.
func (m *MultiFacilitatorClient) route(ctx context.Context, payloadBytes, requirementsBytes []byte) (x402.FacilitatorClient, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return nil, err
	}
	reqInfo, err := types.ExtractRequirementsInfo(requirementsBytes)
	if err != nil {
		return nil, err
	}

	network := x402.NormalizeNetwork(reqInfo.Network)
	for _, c := range m.clients {
		supported, err := c.GetSupported(ctx)
		if err != nil {
			continue
		}
		for _, kind := range supported.Kinds {
			if kind.X402Version != version || kind.Scheme != reqInfo.Scheme {
				continue
			}
			kindNetwork := x402.NormalizeNetwork(string(kind.Network))
			if kindNetwork.Match(network) || network.Match(kindNetwork) {
				return c, nil
			}
		}
	}
	return nil, nil
}
