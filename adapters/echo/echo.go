// Package wcxecho provides Echo framework integration for wcx.
//
// Mount the registry endpoints onto an Echo instance or group:
//
//	e := echo.New()
//	reg := wcxecho.Mount(e)
//	_, err := wcx.Boot(ctx, reg, nil, components.Manifest())
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	reg := wcxecho.MountGroup(g)
package wcxecho

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/wcx"
	"github.com/pthm/wcx/lib/security"
)

// Option configures the Mount and MountGroup functions.
type Option func(*options)

type options struct {
	key     []byte
	regOpts []wcx.Option
	prefix  string
}

// WithKey sets the token key for the registry.
// The key should be at least 32 bytes of cryptographically random data.
// If not provided, a random key is generated (suitable for development only).
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithPrefix sets the URL prefix of the registry endpoints.
// Defaults to wcx.DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithRegistryOptions passes options through to wcx.NewRegistry.
func WithRegistryOptions(opts ...wcx.Option) Option {
	return func(o *options) {
		o.regOpts = append(o.regOpts, opts...)
	}
}

// Mount creates a registry and mounts its handler on an Echo instance.
//
//	e := echo.New()
//	reg := wcxecho.Mount(e)
//
//	// With options:
//	reg := wcxecho.Mount(e, wcxecho.WithKey(key))
func Mount(e *echo.Echo, opts ...Option) *wcx.Registry {
	reg, prefix := newRegistry(opts)
	e.Any(prefix+"/*", handler(reg, prefix))
	return reg
}

// MountGroup creates a registry and mounts its handler on an Echo group.
// This allows the session endpoint to share middleware with the group
// (auth, logging, etc.).
//
//	g := e.Group("/app", authMiddleware)
//	reg := wcxecho.MountGroup(g)
func MountGroup(g *echo.Group, opts ...Option) *wcx.Registry {
	reg, prefix := newRegistry(opts)
	g.Any(prefix+"/*", handler(reg, prefix))
	return reg
}

func newRegistry(opts []Option) (*wcx.Registry, string) {
	o := &options{prefix: wcx.DefaultPrefix}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("wcxecho: failed to generate random key: %v", err))
		}
	}

	regOpts := append([]wcx.Option{wcx.WithPrefix(o.prefix)}, o.regOpts...)
	return wcx.NewRegistry(key, regOpts...), o.prefix
}

// handler serves the registry, stripping any group prefix so the registry
// sees paths starting at its own prefix.
func handler(reg *wcx.Registry, prefix string) echo.HandlerFunc {
	h := reg.Handler()
	return func(c echo.Context) error {
		base := strings.TrimSuffix(c.Path(), prefix+"/*")
		if base == "" {
			h.ServeHTTP(c.Response(), c.Request())
			return nil
		}
		http.StripPrefix(base, h).ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return wcxecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}

// Page renders body inside the app shell.
func Page(c echo.Context, shell *wcx.AppShell, body templ.Component) error {
	return Render(c, shell.Page(body))
}

// Element renders the custom element for tag with initial properties.
func Element(c echo.Context, reg *wcx.Registry, tag string, props map[string]any) error {
	el, err := reg.Embed(tag, props)
	if err != nil {
		if wcx.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return Render(c, el)
}

// RequireAuth adapts security.Require to Echo middleware.
//
//	e.Use(wcxecho.RequireAuth(security.PermitMatcher("/*"), security.BearerJWT(secret)))
func RequireAuth(permit security.Matcher, authenticate security.Authenticator, opts ...security.Option) echo.MiddlewareFunc {
	return echo.WrapMiddleware(security.Require(permit, authenticate, opts...))
}

// Principal returns the authenticated caller of c.
func Principal(c echo.Context) (*security.Principal, bool) {
	return security.PrincipalFrom(c.Request().Context())
}
