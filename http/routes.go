package http

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	x402 "github.com/x402labs/x402-go"
)

// RoutesConfig maps route patterns to payment configuration.
// Patterns take the form "PATH" or "METHOD PATH":
//
//	"GET /api"       exact path, GET only
//	"POST /api/*"    prefix match, POST only
//	"/public"        exact path, any method
//	"GET /api/[id]"  single-segment parameter
//	"*"              everything
type RoutesConfig map[string]RouteConfig

// RouteConfig defines the payment configuration for a route
type RouteConfig struct {
	Scheme            string
	PayTo             string
	Price             x402.Price
	Network           x402.Network
	MaxTimeoutSeconds int
	Description       string
	MimeType          string
	OutputSchema      map[string]interface{}

	// Extensions declared for this route, advertised in 402 responses
	Extensions map[string]interface{}

	// CustomPaywallHTML overrides the paywall page for this route
	CustomPaywallHTML string
}

// ResourceConfig converts the route into engine-level resource configuration
func (rc RouteConfig) ResourceConfig() x402.ResourceConfig {
	return x402.ResourceConfig{
		Scheme:            rc.Scheme,
		PayTo:             rc.PayTo,
		Price:             rc.Price,
		Network:           rc.Network,
		MaxTimeoutSeconds: rc.MaxTimeoutSeconds,
		Description:       rc.Description,
		MimeType:          rc.MimeType,
		OutputSchema:      rc.OutputSchema,
	}
}

// compiledRoute is a route pattern compiled for matching
type compiledRoute struct {
	pattern     string
	verb        string
	regex       *regexp.Regexp
	specificity int
	config      RouteConfig
}

// compileRoutes compiles route patterns, most specific first. Exact paths
// beat parameterized paths, which beat prefix wildcards; "*" is last.
func compileRoutes(routes RoutesConfig) []compiledRoute {
	compiled := make([]compiledRoute, 0, len(routes))
	for pattern, config := range routes {
		verb, regex := parseRoutePattern(pattern)
		compiled = append(compiled, compiledRoute{
			pattern:     pattern,
			verb:        verb,
			regex:       regex,
			specificity: patternSpecificity(pattern),
			config:      config,
		})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].specificity != compiled[j].specificity {
			return compiled[i].specificity < compiled[j].specificity
		}
		// Longer patterns first within the same class
		return len(compiled[i].pattern) > len(compiled[j].pattern)
	})

	return compiled
}

// patternSpecificity classifies a pattern: exact paths first, then
// parameterized, then prefix wildcards, then match-all.
func patternSpecificity(pattern string) int {
	_, path := splitRoutePattern(pattern)
	switch {
	case path == "*" || path == "/*":
		return 3
	case strings.HasSuffix(path, "/*"):
		return 2
	case strings.Contains(path, "[") || strings.Contains(path, "*"):
		return 1
	default:
		return 0
	}
}

// splitRoutePattern splits "METHOD /path" into its verb and path parts.
// A bare path gets the wildcard verb.
func splitRoutePattern(pattern string) (verb, path string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return "*", "*"
	}

	parts := strings.SplitN(pattern, " ", 2)
	if len(parts) == 2 {
		return strings.ToUpper(strings.TrimSpace(parts[0])), strings.TrimSpace(parts[1])
	}
	return "*", pattern
}

// parseRoutePattern parses a route pattern into a verb and a compiled path
// regex. Supports "*" wildcards and "[param]" single-segment parameters.
// A trailing "*" matches any suffix; anywhere else it matches exactly one
// path segment.
func parseRoutePattern(pattern string) (string, *regexp.Regexp) {
	verb, path := splitRoutePattern(pattern)

	if path == "*" {
		return verb, regexp.MustCompile(`^.*$`)
	}

	path = normalizePath(path)

	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(path); i++ {
		switch {
		case path[i] == '*':
			if i == len(path)-1 {
				b.WriteString(".*")
			} else {
				b.WriteString(`[^/]+`)
			}
		case path[i] == '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				b.WriteString(regexp.QuoteMeta(path[i:]))
				i = len(path)
				break
			}
			// Single path segment parameter
			b.WriteString(`[^/]+`)
			i += end
		default:
			b.WriteString(regexp.QuoteMeta(string(path[i])))
		}
	}
	b.WriteString("$")

	return verb, regexp.MustCompile(b.String())
}

// normalizePath canonicalizes a request path for matching: strips query and
// fragment, decodes percent escapes, collapses duplicate slashes, and trims
// the trailing slash.
func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}

	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	if path == "" {
		path = "/"
	}

	return path
}

// matchRoute finds the first compiled route matching a method and path.
// Routes are ordered most specific first at compile time.
func matchRoute(routes []compiledRoute, method, path string) *compiledRoute {
	method = strings.ToUpper(method)
	normalized := normalizePath(path)

	for i := range routes {
		route := &routes[i]
		if route.verb != "*" && route.verb != method {
			continue
		}
		if route.regex.MatchString(normalized) {
			return route
		}
	}

	return nil
}
