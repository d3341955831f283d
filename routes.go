package wcx

import (
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
)

// Route binds a request path to a handler.
type Route struct {
	Path    string
	Handler http.Handler
}

// RouteTable is the set-once table of discovered routes. The zero value is
// an empty, uncommitted table.
type RouteTable struct {
	routes atomic.Pointer[map[string]http.Handler]

	// NotFound handles unmatched paths; http.NotFound when nil.
	NotFound http.Handler
}

// NewRouteTable creates an empty route table.
func NewRouteTable() *RouteTable {
	return &RouteTable{}
}

// SetRoutes validates and commits routes. It fails with ErrAmbiguousRoute
// when two routes claim the same path. Like the registry, only the first
// successful commit is accepted; later commits return false.
func (t *RouteTable) SetRoutes(routes []Route) (bool, error) {
	m := make(map[string]http.Handler, len(routes))
	for _, r := range routes {
		if r.Path == "" || r.Path[0] != '/' {
			return false, fmt.Errorf("wcx: route path %q must start with /", r.Path)
		}
		if r.Handler == nil {
			return false, fmt.Errorf("wcx: route %q has no handler", r.Path)
		}
		if _, dup := m[r.Path]; dup {
			return false, fmt.Errorf("%w: %q is registered more than once", ErrAmbiguousRoute, r.Path)
		}
		m[r.Path] = r.Handler
	}
	return t.routes.CompareAndSwap(nil, &m), nil
}

// Lookup returns the handler registered for path.
func (t *RouteTable) Lookup(path string) (http.Handler, bool) {
	m := t.routes.Load()
	if m == nil {
		return nil, false
	}
	h, ok := (*m)[path]
	return h, ok
}

// Paths returns the registered paths in sorted order.
func (t *RouteTable) Paths() []string {
	m := t.routes.Load()
	if m == nil {
		return nil
	}
	paths := make([]string, 0, len(*m))
	for p := range *m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ServeHTTP dispatches on the exact request path.
func (t *RouteTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := t.Lookup(r.URL.Path); ok {
		h.ServeHTTP(w, r)
		return
	}
	if t.NotFound != nil {
		t.NotFound.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}
