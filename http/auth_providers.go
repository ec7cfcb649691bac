package http

import (
	"context"
)

// StaticAuthProvider sends a fixed bearer token on every facilitator endpoint
type StaticAuthProvider struct {
	headers AuthHeaders
}

// NewStaticAuthProvider creates an AuthProvider that sends
// "Authorization: Bearer <apiKey>" on verify, settle, and supported requests.
func NewStaticAuthProvider(apiKey string) *StaticAuthProvider {
	auth := map[string]string{
		"Authorization": "Bearer " + apiKey,
	}
	return &StaticAuthProvider{
		headers: AuthHeaders{
			Verify:    auth,
			Settle:    auth,
			Supported: auth,
		},
	}
}

// GetAuthHeaders implements AuthProvider
func (p *StaticAuthProvider) GetAuthHeaders(ctx context.Context) (AuthHeaders, error) {
	return p.headers, nil
}

// FuncAuthProvider adapts a function to the AuthProvider interface, for
// tokens that must be minted per request.
type FuncAuthProvider struct {
	fn func(ctx context.Context) (AuthHeaders, error)
}

// NewFuncAuthProvider creates an AuthProvider backed by fn
func NewFuncAuthProvider(fn func(ctx context.Context) (AuthHeaders, error)) *FuncAuthProvider {
	return &FuncAuthProvider{fn: fn}
}

// GetAuthHeaders implements AuthProvider
func (p *FuncAuthProvider) GetAuthHeaders(ctx context.Context) (AuthHeaders, error) {
	return p.fn(ctx)
}
