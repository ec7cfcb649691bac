package x402

// FacilitatorExtension is implemented by facilitator-side extension carriers.
// An extension bundles the configuration a scheme facilitator needs to honor
// an x402 extension during verify or settle, keyed by the extension
// identifier that appears in payload extensions.
type FacilitatorExtension interface {
	// Key returns the extension identifier.
	Key() string
}

// FacilitatorContext holds the facilitator extensions available to scheme
// facilitators during verify and settle.
type FacilitatorContext struct {
	extensions map[string]FacilitatorExtension
}

// NewFacilitatorContext creates a FacilitatorContext from a map of extensions
// keyed by extension identifier. A nil map is treated as empty.
func NewFacilitatorContext(extensions map[string]FacilitatorExtension) *FacilitatorContext {
	if extensions == nil {
		extensions = map[string]FacilitatorExtension{}
	}
	return &FacilitatorContext{extensions: extensions}
}

// GetExtension returns the extension registered under key, or nil.
func (c *FacilitatorContext) GetExtension(key string) FacilitatorExtension {
	if c == nil {
		return nil
	}
	return c.extensions[key]
}
