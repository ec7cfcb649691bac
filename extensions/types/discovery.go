// Package types defines the shared data model for x402 protocol extensions.
// Extension packages (bazaar, paymentidentifier) depend on these types rather
// than on each other.
package types

import (
	"encoding/json"
	"fmt"
)

// BAZAAR is the extension key under which discovery metadata travels in
// payment requirement and payment payload extension maps.
const BAZAAR = "bazaar"

// JSONSchema is a JSON Schema document represented as a generic map.
type JSONSchema map[string]interface{}

// QueryParamMethods are HTTP methods whose input travels in the query string.
type QueryParamMethods string

// BodyMethods are HTTP methods whose input travels in the request body.
type BodyMethods string

const (
	QueryMethodGET    QueryParamMethods = "GET"
	QueryMethodHEAD   QueryParamMethods = "HEAD"
	QueryMethodDELETE QueryParamMethods = "DELETE"

	BodyMethodPOST  BodyMethods = "POST"
	BodyMethodPUT   BodyMethods = "PUT"
	BodyMethodPATCH BodyMethods = "PATCH"
)

// QueryInput describes how to call a discovered resource whose parameters are
// passed via the query string.
type QueryInput struct {
	Type        string                 `json:"type"`
	Method      QueryParamMethods      `json:"method"`
	QueryParams map[string]interface{} `json:"queryParams,omitempty"`
}

// BodyInput describes how to call a discovered resource whose parameters are
// passed in the request body.
type BodyInput struct {
	Type     string      `json:"type"`
	Method   BodyMethods `json:"method"`
	BodyType string      `json:"bodyType,omitempty"`
	Body     interface{} `json:"body,omitempty"`
}

// OutputConfig describes the shape of a resource's response so marketplaces
// can render it without calling the endpoint.
type OutputConfig struct {
	Example interface{} `json:"example,omitempty"`
	Schema  JSONSchema  `json:"schema,omitempty"`
}

// DiscoveryInfo is the advertised metadata for a discoverable resource.
// Input is a QueryInput or a BodyInput depending on the HTTP method.
type DiscoveryInfo struct {
	Input  interface{}   `json:"input,omitempty"`
	Output *OutputConfig `json:"output,omitempty"`
}

// UnmarshalJSON decodes Input into a concrete QueryInput or BodyInput based
// on the declared method, so consumers can type-switch on it.
func (d *DiscoveryInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		Input  json.RawMessage `json:"input"`
		Output *OutputConfig   `json:"output"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Output = raw.Output

	if len(raw.Input) == 0 || string(raw.Input) == "null" {
		d.Input = nil
		return nil
	}

	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(raw.Input, &probe); err != nil {
		return fmt.Errorf("failed to probe input method: %w", err)
	}

	switch BodyMethods(probe.Method) {
	case BodyMethodPOST, BodyMethodPUT, BodyMethodPATCH:
		var input BodyInput
		if err := json.Unmarshal(raw.Input, &input); err != nil {
			return err
		}
		d.Input = input
	default:
		var input QueryInput
		if err := json.Unmarshal(raw.Input, &input); err != nil {
			return err
		}
		d.Input = input
	}

	return nil
}

// DiscoveryExtension pairs discovery info with the JSON schema it must
// conform to. The schema travels alongside the info so facilitators can
// validate submissions without out-of-band knowledge.
type DiscoveryExtension struct {
	Info   DiscoveryInfo `json:"info"`
	Schema JSONSchema    `json:"schema"`
}
