// Package security exposes request matchers for the framework's internal
// and public paths, and a middleware that requires authentication for
// everything else.
package security

import (
	"net/http"
	"path"
	"strings"

	"github.com/pthm/wcx/lib/mount"
)

// Matcher selects requests.
type Matcher interface {
	Match(r *http.Request) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(r *http.Request) bool

// Match implements Matcher.
func (f MatcherFunc) Match(r *http.Request) bool { return f(r) }

// AntMatcher matches request paths against an Ant style pattern: "?"
// matches one character, "*" any run of characters within a segment and
// "**" any number of segments.
type AntMatcher struct {
	pattern string
	segs    []string
}

// Ant compiles pattern.
func Ant(pattern string) *AntMatcher {
	return &AntMatcher{pattern: pattern, segs: segments(pattern)}
}

// Pattern returns the source pattern.
func (m *AntMatcher) Pattern() string {
	return m.pattern
}

// Match implements Matcher.
func (m *AntMatcher) Match(r *http.Request) bool {
	return m.MatchPath(r.URL.Path)
}

// MatchPath reports whether p matches the pattern.
func (m *AntMatcher) MatchPath(p string) bool {
	return matchSegments(m.segs, segments(p))
}

func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		ok, err := path.Match(pattern[0], parts[0])
		if err != nil || !ok {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}

type orMatcher []Matcher

func (o orMatcher) Match(r *http.Request) bool {
	for _, m := range o {
		if m.Match(r) {
			return true
		}
	}
	return false
}

// Or matches when any of ms matches.
func Or(ms ...Matcher) Matcher {
	return orMatcher(ms)
}

// Any matches when the request path matches any of patterns.
func Any(patterns ...string) Matcher {
	ms := make([]Matcher, len(patterns))
	for i, p := range patterns {
		ms[i] = Ant(p)
	}
	return Or(ms...)
}

// PublicResources are static files browsers fetch without credentials.
var PublicResources = []string{
	"/favicon.ico",
	"/manifest.webmanifest",
	"/sw.js",
	"/sw-runtime-resources-precache.js",
	"/offline.html",
	"/offline-stub.html",
	"/icons/icon.png",
	"/icons/icon-*.png",
	"/themes/**",
}

// InternalResources are framework endpoints that must be reachable before
// login but still see the caller's credentials when present.
var InternalResources = []string{
	"/_wcx/**",
}

// IgnoreMatcher matches PublicResources under mapping. Matching requests
// need no security processing at all.
func IgnoreMatcher(mapping string) Matcher {
	return Any(applyAll(mapping, PublicResources)...)
}

// PermitMatcher matches the framework-internal requests under mapping that
// may pass unauthenticated, plus the public resources.
func PermitMatcher(mapping string) Matcher {
	return Or(Any(applyAll(mapping, InternalResources)...), IgnoreMatcher(mapping))
}

func applyAll(mapping string, patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = mount.ApplyURLMapping(mapping, p)
	}
	return out
}
