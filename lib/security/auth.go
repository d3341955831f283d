package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrUnauthenticated is returned by authenticators when the request
// carries no usable credentials.
var ErrUnauthenticated = errors.New("security: unauthenticated")

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Claims  jwt.MapClaims
}

// Authenticator extracts the principal of a request.
type Authenticator func(r *http.Request) (*Principal, error)

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Require.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Option configures Require.
type Option func(*requireOptions)

type requireOptions struct {
	logger *zap.Logger
	ignore Matcher
}

// WithLogger sets the logger for rejected requests.
func WithLogger(l *zap.Logger) Option {
	return func(o *requireOptions) { o.logger = l }
}

// WithIgnore skips authentication entirely for matching requests.
func WithIgnore(m Matcher) Option {
	return func(o *requireOptions) { o.ignore = m }
}

// Require returns middleware answering 401 unless the request is
// authenticated or matched by permit. Permitted requests are still
// authenticated when they carry credentials, so handlers behind them keep a
// security context.
func Require(permit Matcher, authenticate Authenticator, opts ...Option) func(http.Handler) http.Handler {
	o := requireOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if o.ignore != nil && o.ignore.Match(r) {
				next.ServeHTTP(w, r)
				return
			}

			p, err := authenticate(r)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}
			if permit != nil && permit.Match(r) {
				next.ServeHTTP(w, r)
				return
			}

			o.logger.Debug("request rejected",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="wcx"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

// BearerJWT authenticates HMAC-signed JWTs from the Authorization header.
func BearerJWT(secret []byte) Authenticator {
	return func(r *http.Request) (*Principal, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return nil, ErrUnauthenticated
		}
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
			return nil, fmt.Errorf("%w: malformed Authorization header", ErrUnauthenticated)
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		if !token.Valid {
			return nil, ErrUnauthenticated
		}

		sub, err := claims.GetSubject()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return &Principal{Subject: sub, Claims: claims}, nil
	}
}
