package wcx

import (
	"context"
	"errors"
	"net/http"

	"github.com/a-h/templ"
)

type registryKey struct{}

// NewContext returns a copy of ctx carrying reg. Servlet does this for
// every request, so route handlers can reach the registry they are served
// by without a package-level default.
func NewContext(ctx context.Context, reg *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, reg)
}

// FromContext returns the registry stored by NewContext.
func FromContext(ctx context.Context) (*Registry, bool) {
	reg, ok := ctx.Value(registryKey{}).(*Registry)
	return reg, ok && reg != nil
}

// Render writes a templ component to the HTTP response.
//
// Sets Content-Type to text/html and renders the component using the
// request's context.
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    wcx.Render(w, r, myTemplate())
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// RenderPage renders body inside the app shell of the request's registry.
// Outside a Servlet an empty shell is used.
func RenderPage(w http.ResponseWriter, r *http.Request, body templ.Component) error {
	shell := NewAppShell()
	if reg, ok := FromContext(r.Context()); ok {
		shell = reg.AppShell()
	}
	return Render(w, r, shell.Page(body))
}

// RenderElement writes the custom element for tag. Unknown tags answer 404
// and invalid properties 400; the error is returned in both cases.
func RenderElement(w http.ResponseWriter, r *http.Request, tag string, props map[string]any) error {
	reg, ok := FromContext(r.Context())
	if !ok {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return ErrNotFound
	}
	el, err := reg.Embed(tag, props)
	switch {
	case err == nil:
		return Render(w, r, el)
	case IsNotFound(err):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrUnknownProperty), errors.Is(err, ErrTypeMismatch):
		http.Error(w, "Bad request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
	return err
}
