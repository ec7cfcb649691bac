package types

// =============================================================================
// Discovery Types (Bazaar extension)
// Matches TypeScript SDK: types/shared/middleware.ts
// =============================================================================

// DiscoveryMetadata contains metadata for the Bazaar discovery catalog.
// This information helps users discover and understand available paid endpoints.
type DiscoveryMetadata struct {
	// Name is the display name for the resource
	Name string `json:"name,omitempty"`
	// Description provides details about what the resource does
	Description string `json:"description,omitempty"`
	// Category groups resources (e.g., "data", "automation", "ai")
	Category string `json:"category,omitempty"`
	// Tags for searchable keywords
	Tags []string `json:"tags,omitempty"`
	// Documentation URL for additional documentation
	Documentation string `json:"documentation,omitempty"`
	// Logo URL for the resource/provider logo
	Logo string `json:"logo,omitempty"`
	// Provider is the name of the entity providing this resource
	Provider string `json:"provider,omitempty"`
}

// DiscoverySchemaDefinition defines input/output schema for discovery.
// Used to document what the endpoint expects and returns.
type DiscoverySchemaDefinition struct {
	// Example provides a sample value for documentation and testing
	Example any `json:"example,omitempty"`
	// Schema is a JSON Schema definition for validation
	Schema map[string]any `json:"schema,omitempty"`
}

// DiscoveredResource represents a discovered resource from the facilitator.
// Returned by GET /discovery/resources
type DiscoveredResource struct {
	// Resource is the URL of the x402-protected endpoint
	Resource string `json:"resource"`
	// Type is the resource type (currently only "http")
	Type string `json:"type"`
	// X402Version is the protocol version
	X402Version int `json:"x402Version"`
	// Accepts contains the payment requirements for this resource
	Accepts []PaymentRequirements `json:"accepts"`
	// LastUpdated is the unix timestamp of the last registration/update
	LastUpdated int64 `json:"lastUpdated,omitempty"`
	// Metadata contains optional discovery metadata
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListDiscoveryResourcesRequest contains the query parameters for listing
// discovery resources. Nil fields are omitted from the query string.
type ListDiscoveryResourcesRequest struct {
	// Type filters by resource type (e.g., "http")
	Type *string
	// Limit is the maximum number of items to return
	Limit *int
	// Offset is the number of items to skip
	Offset *int
}

// ListDiscoveryResourcesResponse represents the response from the discovery
// list endpoint. GET /discovery/resources
type ListDiscoveryResourcesResponse struct {
	X402Version int                     `json:"x402Version"`
	Items       []DiscoveredResource    `json:"items,omitempty"`
	Pagination  ListDiscoveryPagination `json:"pagination"`
}

// ListDiscoveryPagination contains pagination info for discovery lists.
type ListDiscoveryPagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// DiscoveryRegisterRequest represents the request to register a resource.
// POST /x402/discovery/resources (internal API - may require auth)
type DiscoveryRegisterRequest struct {
	Resource string                `json:"resource"`
	Type     string                `json:"type"` // "http"
	Accepts  []PaymentRequirements `json:"accepts"`
	Metadata *DiscoveryMetadata    `json:"metadata,omitempty"`
}

