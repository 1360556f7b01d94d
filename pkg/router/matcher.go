// Package router provides route registration, grouping, and matching
// for the framework core.
package router

import "strings"

// Match checks a URL path against a route pattern.
//
// A trailing '*' matches any suffix after the preceding segments, with
// no parameters extracted. Otherwise pattern and path are split on '/'
// (empty segments filtered) and must have equal segment counts; a
// pattern segment starting with ':' binds the corresponding path
// segment into params, any other segment must match literally and
// case-sensitively. The matcher is single-pass and deterministic: the
// first registered matching route wins, so more specific routes must be
// registered first when overlap is possible.
func Match(pattern, path string) (bool, map[string]string) {
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(path, prefix), map[string]string{}
	}

	patternSegs := splitSegments(pattern)
	pathSegs := splitSegments(path)
	if len(patternSegs) != len(pathSegs) {
		return false, nil
	}

	params := make(map[string]string)
	for i, seg := range patternSegs {
		if strings.HasPrefix(seg, ":") {
			params[seg[1:]] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return false, nil
		}
	}

	return true, params
}

// splitSegments splits a path on '/' and drops empty segments.
func splitSegments(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// JoinPaths concatenates path fragments into a normalized route path:
// segments are joined with single slashes, repeated slashes collapse,
// and the result always starts with exactly one leading slash.
func JoinPaths(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		for _, seg := range strings.Split(part, "/") {
			if seg == "" {
				continue
			}
			b.WriteByte('/')
			b.WriteString(seg)
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
