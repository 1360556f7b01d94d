package router

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vireo-web/vireo/pkg/httperr"
)

// defaultMaxAge is applied to preflight responses when the policy does
// not set one.
const defaultMaxAge = 5

// CORSPolicy describes the cross-origin policy of one router scope.
type CORSPolicy struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// AllowAll returns the policy the '*' shorthand expands to: allow-all
// origins, methods, and headers.
func AllowAll() *CORSPolicy {
	return &CORSPolicy{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"*"},
		AllowedHeaders: []string{"*"},
	}
}

// ParseCORS normalizes the accepted CORS configuration forms: the
// literal "*" shorthand, a CORSPolicy value, or a pointer to one.
func ParseCORS(v any) (*CORSPolicy, error) {
	switch policy := v.(type) {
	case string:
		if policy == "*" {
			return AllowAll(), nil
		}
		return nil, httperr.NewConfigError("cors", "unknown CORS shorthand: "+policy)
	case *CORSPolicy:
		return policy, nil
	case CORSPolicy:
		return &policy, nil
	default:
		return nil, httperr.NewConfigError("cors", "unsupported CORS configuration type")
	}
}

// Apply writes the Access-Control-* headers for a preflight answer.
func (p *CORSPolicy) Apply(h http.Header) {
	if len(p.AllowedOrigins) > 0 {
		h.Set("Access-Control-Allow-Origin", strings.Join(p.AllowedOrigins, ", "))
	}
	if len(p.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(p.AllowedMethods, ", "))
	}
	if len(p.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(p.AllowedHeaders, ", "))
	}

	maxAge := p.MaxAge
	if maxAge == 0 {
		maxAge = defaultMaxAge
	}
	h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
}

// CORSMount is a CORS policy exposed for preflight handling at a mount
// prefix. A sub-group's policy answers preflights under its own prefix
// independent of the parent's policy.
type CORSMount struct {
	Prefix string
	Policy *CORSPolicy
}

// Matches reports whether a request path falls under the mount prefix,
// matching only at path boundaries.
func (m *CORSMount) Matches(path string) bool {
	if m.Prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, m.Prefix) {
		return false
	}
	return len(path) == len(m.Prefix) || path[len(m.Prefix)] == '/'
}
