package bazaar

import (
	"fmt"

	"github.com/x402labs/x402-go/extensions/types"
)

// Method is the HTTP method a discoverable resource is served on.
type Method string

const (
	MethodGET    Method = "GET"
	MethodHEAD   Method = "HEAD"
	MethodDELETE Method = "DELETE"
	MethodPOST   Method = "POST"
	MethodPUT    Method = "PUT"
	MethodPATCH  Method = "PATCH"
)

// DeclareDiscoveryExtension builds a bazaar discovery extension for a route.
//
// Args:
//   - method: HTTP method the resource is served on
//   - queryParams: Query parameter descriptions for GET-style methods (may be nil)
//   - inputSchema: Body schema for POST-style methods (may be nil)
//   - bodyType: Content type of the body for POST-style methods ("" defaults to "json")
//   - output: Description of the response shape (may be nil)
//
// Returns:
//   - A DiscoveryExtension ready to attach to a route's Extensions map under types.BAZAAR
//   - Error if the method is not a recognized HTTP method
//
// Example:
//
//	extension, err := bazaar.DeclareDiscoveryExtension(
//	    bazaar.MethodGET,
//	    nil, // No query params
//	    nil, // No input schema
//	    "",  // No body type (GET method)
//	    &types.OutputConfig{
//	        Example: map[string]interface{}{"message": "hello"},
//	        Schema:  types.JSONSchema{"properties": map[string]interface{}{"message": map[string]interface{}{"type": "string"}}},
//	    },
//	)
func DeclareDiscoveryExtension(
	method Method,
	queryParams map[string]interface{},
	inputSchema types.JSONSchema,
	bodyType string,
	output *types.OutputConfig,
) (types.DiscoveryExtension, error) {
	var input interface{}

	switch method {
	case MethodGET, MethodHEAD, MethodDELETE:
		input = types.QueryInput{
			Type:        "http",
			Method:      types.QueryParamMethods(method),
			QueryParams: queryParams,
		}
	case MethodPOST, MethodPUT, MethodPATCH:
		if bodyType == "" {
			bodyType = "json"
		}
		var body interface{}
		if inputSchema != nil {
			body = map[string]interface{}(inputSchema)
		}
		input = types.BodyInput{
			Type:     "http",
			Method:   types.BodyMethods(method),
			BodyType: bodyType,
			Body:     body,
		}
	default:
		return types.DiscoveryExtension{}, fmt.Errorf("unsupported method: %s", method)
	}

	return types.DiscoveryExtension{
		Info: types.DiscoveryInfo{
			Input:  input,
			Output: output,
		},
		Schema: buildInfoSchema(),
	}, nil
}

// buildInfoSchema returns the JSON schema the discovery info must satisfy.
// The schema travels with the extension so facilitators can validate
// submissions without out-of-band knowledge.
func buildInfoSchema() types.JSONSchema {
	return types.JSONSchema{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]interface{}{
			"input": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"type":        map[string]interface{}{"type": "string", "enum": []interface{}{"http"}},
					"method":      map[string]interface{}{"type": "string"},
					"queryParams": map[string]interface{}{"type": "object"},
					"bodyType":    map[string]interface{}{"type": "string"},
					"body":        map[string]interface{}{"type": "object"},
				},
				"required": []string{"type", "method"},
			},
			"output": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"example": map[string]interface{}{},
					"schema":  map[string]interface{}{"type": "object"},
				},
			},
		},
		"required": []string{"input"},
	}
}
