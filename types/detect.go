package types

import (
	"encoding/json"
	"fmt"
)

// versionProbe reads just enough of a payment document to route it.
type versionProbe struct {
	X402Version int              `json:"x402Version"`
	Scheme      string           `json:"scheme"`
	Network     string           `json:"network"`
	Accepted    *json.RawMessage `json:"accepted"`
}

// DetectVersion determines the protocol version of serialized payment bytes.
// The x402Version field is authoritative; when it is absent the document
// shape decides: an accepted echo means v2, top-level scheme/network means v1.
func DetectVersion(data []byte) (int, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("invalid payment document: %w", err)
	}

	switch probe.X402Version {
	case 1, 2:
		return probe.X402Version, nil
	case 0:
		if probe.Accepted != nil {
			return 2, nil
		}
		if probe.Scheme != "" && probe.Network != "" {
			return 1, nil
		}
		return 0, fmt.Errorf("missing x402Version")
	default:
		return 0, fmt.Errorf("unsupported x402 version: %d", probe.X402Version)
	}
}

// RequirementsInfo carries the routing fields of serialized requirements.
type RequirementsInfo struct {
	Scheme  string `json:"scheme"`
	Network string `json:"network"`
}

// ExtractRequirementsInfo pulls scheme and network out of serialized payment
// requirements without committing to a version-specific struct. The network
// is normalized to CAIP-2.
func ExtractRequirementsInfo(data []byte) (*RequirementsInfo, error) {
	var info RequirementsInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid payment requirements: %w", err)
	}
	if info.Scheme == "" || info.Network == "" {
		return nil, fmt.Errorf("payment requirements missing scheme or network")
	}
	info.Network = NormalizeCAIP2(info.Network)
	return &info, nil
}

// MatchPayloadToRequirements reports whether a serialized payload was built
// for the given serialized requirements: same scheme and same network after
// CAIP-2 normalization. For v1 the scheme/network live at the payload's top
// level; for v2 they live in the accepted echo.
func MatchPayloadToRequirements(version int, payloadBytes, requirementsBytes []byte) (bool, error) {
	reqInfo, err := ExtractRequirementsInfo(requirementsBytes)
	if err != nil {
		return false, err
	}

	var scheme, network string
	switch version {
	case 1:
		payload, err := ToPaymentPayloadV1(payloadBytes)
		if err != nil {
			return false, err
		}
		scheme, network = payload.Scheme, payload.Network
	case 2:
		payload, err := ToPaymentPayloadV2(payloadBytes)
		if err != nil {
			return false, err
		}
		scheme, network = payload.Accepted.Scheme, payload.Accepted.Network
	default:
		return false, fmt.Errorf("unsupported x402 version: %d", version)
	}

	return scheme == reqInfo.Scheme && NormalizeCAIP2(network) == reqInfo.Network, nil
}
