package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAntMatcher(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/_wcx/**", "/_wcx/ws", true},
		{"/_wcx/**", "/_wcx", true},
		{"/_wcx/**", "/_wcx/a/b/c", true},
		{"/_wcx/**", "/_wcxx/ws", false},
		{"/themes/**", "/themes/lumo/styles.css", true},
		{"/icons/icon-*.png", "/icons/icon-192x192.png", true},
		{"/icons/icon-*.png", "/icons/sub/icon-1.png", false},
		{"/favicon.ico", "/favicon.ico", true},
		{"/favicon.ico", "/favicon.icon", false},
		{"/a/*/c", "/a/b/c", true},
		{"/a/*/c", "/a/b/x/c", false},
		{"/a/**/c", "/a/b/x/c", true},
		{"/a/?", "/a/b", true},
		{"/a/?", "/a/bb", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Ant(tt.pattern).MatchPath(tt.path), "%s ~ %s", tt.pattern, tt.path)
	}
}

func TestPermitAndIgnoreMatchers(t *testing.T) {
	req := func(p string) *http.Request { return httptest.NewRequest(http.MethodGet, p, nil) }

	root := PermitMatcher("/*")
	assert.True(t, root.Match(req("/_wcx/ws")))
	assert.True(t, root.Match(req("/favicon.ico")))
	assert.False(t, root.Match(req("/admin")))

	ui := PermitMatcher("/ui/*")
	assert.True(t, ui.Match(req("/ui/_wcx/manifest")))
	assert.False(t, ui.Match(req("/_wcx/manifest")))

	ignore := IgnoreMatcher("/ui/*")
	assert.True(t, ignore.Match(req("/ui/themes/x.css")))
	assert.False(t, ignore.Match(req("/ui/_wcx/ws")), "internal paths keep a security context")
}

func signed(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestRequire(t *testing.T) {
	secret := []byte("test-secret")
	var seen *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := Require(PermitMatcher("/*"), BearerJWT(secret), WithIgnore(IgnoreMatcher("/*")))(next)

	valid := signed(t, secret, jwt.MapClaims{"sub": "ada", "exp": time.Now().Add(time.Hour).Unix()})
	expired := signed(t, secret, jwt.MapClaims{"sub": "ada", "exp": time.Now().Add(-time.Hour).Unix()})
	forged := signed(t, []byte("other"), jwt.MapClaims{"sub": "ada"})

	tests := []struct {
		name     string
		path     string
		auth     string
		wantCode int
		wantUser string
	}{
		{"anonymous protected", "/admin", "", http.StatusUnauthorized, ""},
		{"valid token", "/admin", "Bearer " + valid, http.StatusNoContent, "ada"},
		{"expired token", "/admin", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"forged token", "/admin", "Bearer " + forged, http.StatusUnauthorized, ""},
		{"wrong scheme", "/admin", "Basic abc", http.StatusUnauthorized, ""},
		{"anonymous internal", "/_wcx/ws", "", http.StatusNoContent, ""},
		{"authenticated internal keeps principal", "/_wcx/ws", "Bearer " + valid, http.StatusNoContent, "ada"},
		{"ignored resource", "/favicon.ico", "Bearer " + valid, http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				r.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
			if tt.wantUser == "" {
				assert.Nil(t, seen)
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, tt.wantUser, seen.Subject)
			}
		})
	}
}

func TestBearerJWTRejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "ada"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	_, err = BearerJWT([]byte("k"))(r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
