package wcx

import (
	"net/http"
	"strings"

	"github.com/pthm/wcx/lib/mount"
)

// Servlet is the framework handler: requests under the registry prefix go
// to reg.Handler, everything else to routes. Mount it with lib/mount; the
// path info recorded there is what both see as the request path, so the
// same servlet works under "/*" and "/ui/*".
//
//	r := chi.NewRouter()
//	err := mount.Mount(r, wcx.Servlet(reg, routes), cfg.URLMapping)
//
// Every request carries reg in its context (see FromContext).
func Servlet(reg *Registry, routes *RouteTable) http.Handler {
	api := reg.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if paths, ok := mount.FromContext(r.Context()); ok {
			p = paths.PathInfo
		}
		if p == "" {
			p = "/"
		}

		r = r.WithContext(NewContext(r.Context(), reg))
		if p != r.URL.Path {
			u := *r.URL
			u.Path = p
			u.RawPath = ""
			r.URL = &u
		}

		switch {
		case p == reg.prefix || strings.HasPrefix(p, reg.prefix+"/"):
			api.ServeHTTP(w, r)
		case routes != nil:
			routes.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
