package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pattern    string
		path       string
		want       bool
		wantParams map[string]string
	}{
		{
			name:       "literal pattern matches itself",
			pattern:    "/api/v1/users",
			path:       "/api/v1/users",
			want:       true,
			wantParams: map[string]string{},
		},
		{
			name:    "literal mismatch",
			pattern: "/api/v1/users",
			path:    "/api/v1/orders",
			want:    false,
		},
		{
			name:    "literal match is case-sensitive",
			pattern: "/api/Users",
			path:    "/api/users",
			want:    false,
		},
		{
			name:       "single parameter binds",
			pattern:    "/users/:id",
			path:       "/users/456",
			want:       true,
			wantParams: map[string]string{"id": "456"},
		},
		{
			name:       "multiple parameters bind",
			pattern:    "/orgs/:org/repos/:repo",
			path:       "/orgs/acme/repos/site",
			want:       true,
			wantParams: map[string]string{"org": "acme", "repo": "site"},
		},
		{
			name:    "segment count mismatch",
			pattern: "/users/:id",
			path:    "/users/456/books",
			want:    false,
		},
		{
			name:    "parameter with literal mismatch",
			pattern: "/users/:id/books",
			path:    "/users/456/authors",
			want:    false,
		},
		{
			name:       "wildcard matches deep suffix",
			pattern:    "/api/*",
			path:       "/api/anything/here",
			want:       true,
			wantParams: map[string]string{},
		},
		{
			name:       "wildcard matches bare prefix",
			pattern:    "/api/*",
			path:       "/api/",
			want:       true,
			wantParams: map[string]string{},
		},
		{
			name:    "wildcard does not match sibling prefix",
			pattern: "/api/*",
			path:    "/apiX",
			want:    false,
		},
		{
			name:       "trailing slashes are ignored",
			pattern:    "/users/:id/",
			path:       "/users/7",
			want:       true,
			wantParams: map[string]string{"id": "7"},
		},
		{
			name:       "root matches root",
			pattern:    "/",
			path:       "/",
			want:       true,
			wantParams: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			matched, params := Match(tt.pattern, tt.path)
			assert.Equal(t, tt.want, matched)
			if tt.want {
				assert.Equal(t, tt.wantParams, params)
			}
		})
	}
}

func TestJoinPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{
			name:  "base and route",
			parts: []string{"/api/v1", "/users"},
			want:  "/api/v1/users",
		},
		{
			name:  "repeated slashes collapse",
			parts: []string{"//api//", "//users/"},
			want:  "/api/users",
		},
		{
			name:  "missing leading slash added",
			parts: []string{"api", "users/:id"},
			want:  "/api/users/:id",
		},
		{
			name:  "empty parts yield root",
			parts: []string{"", "/"},
			want:  "/",
		},
		{
			name:  "wildcard survives",
			parts: []string{"/api", "*"},
			want:  "/api/*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, JoinPaths(tt.parts...))
		})
	}
}
