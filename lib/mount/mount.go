// Package mount attaches the wcx handler to a chi router under a servlet
// style URL mapping and records the servlet path / path info split of every
// request it dispatches.
package mount

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RootMapping maps the handler onto every path.
const RootMapping = "/*"

// DispatchPath is where the handler is mounted internally when the mapping
// is RootMapping, so other routes of the router keep precedence.
const DispatchPath = "/_wcx-dispatch"

const defaultTracerName = "wcx"

// ErrInvalidMapping is returned for mappings that are neither "/*", a
// "/dir/*" path mapping nor an exact path.
var ErrInvalidMapping = errors.New("mount: invalid url mapping")

// Paths is the split of a request path under a mapping.
type Paths struct {
	// ServletPath is the mapping part of the path, "" for RootMapping.
	ServletPath string
	// PathInfo is the remainder, starting with "/" or empty.
	PathInfo string
	// Async reports whether the mapping was registered as async capable.
	Async bool
	// Forwarded is set when the request reached the handler through the
	// root dispatcher.
	Forwarded bool
}

// PathInside returns the path inside the mapping without a leading slash.
func (p Paths) PathInside() string {
	return strings.TrimPrefix(p.ServletPath+p.PathInfo, "/")
}

type pathsKey struct{}

// FromContext returns the Paths stored by the mount handler.
func FromContext(ctx context.Context) (Paths, bool) {
	p, ok := ctx.Value(pathsKey{}).(Paths)
	return p, ok
}

// WithPaths stores p in ctx.
func WithPaths(ctx context.Context, p Paths) context.Context {
	return context.WithValue(ctx, pathsKey{}, p)
}

// Option configures Mount.
type Option func(*options)

type options struct {
	async      bool
	tracerName string
	logger     *zap.Logger
}

// WithAsync marks the mapping async capable (default true).
func WithAsync(async bool) Option {
	return func(o *options) { o.async = async }
}

// WithTracerName sets the OpenTelemetry tracer name (default "wcx").
func WithTracerName(name string) Option {
	return func(o *options) { o.tracerName = name }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Mount registers h on r under mapping.
//
// For RootMapping, h is mounted at DispatchPath and r's NotFound handler
// forwards every request not claimed by another route to it, so the
// framework coexists with other endpoints. Forwarded requests see an empty
// servlet path and the original path as path info.
func Mount(r chi.Router, h http.Handler, mapping string, opts ...Option) error {
	if err := ValidateMapping(mapping); err != nil {
		return err
	}
	o := options{async: true, tracerName: defaultTracerName, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	tracer := otel.Tracer(o.tracerName)
	wrap := func(servletPath string, forwarded bool) http.Handler {
		return traced(tracer, mapping, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := Paths{Async: o.async, Forwarded: forwarded}
			if forwarded {
				p.PathInfo = req.URL.Path
			} else {
				p.ServletPath = servletPath
				p.PathInfo = strings.TrimPrefix(req.URL.Path, servletPath)
			}
			h.ServeHTTP(w, req.WithContext(WithPaths(req.Context(), p)))
		}))
	}

	switch {
	case mapping == RootMapping:
		r.Handle(DispatchPath, wrap(DispatchPath, false))
		r.Handle(DispatchPath+"/*", wrap(DispatchPath, false))
		r.NotFound(wrap("", true).ServeHTTP)
		o.logger.Debug("mounted at root with forwarding dispatcher", zap.String("dispatch", DispatchPath))
	case strings.HasSuffix(mapping, "/*"):
		dir := strings.TrimSuffix(mapping, "/*")
		r.Handle(dir, wrap(dir, false))
		r.Handle(mapping, wrap(dir, false))
		o.logger.Debug("mounted", zap.String("mapping", mapping))
	default:
		r.Handle(mapping, wrap(mapping, false))
		o.logger.Debug("mounted exact", zap.String("mapping", mapping))
	}
	return nil
}

// ValidateMapping checks that mapping is "/*", "/dir/*" or an exact path.
func ValidateMapping(mapping string) error {
	switch {
	case mapping == RootMapping:
		return nil
	case !strings.HasPrefix(mapping, "/"):
		return fmt.Errorf("%w: %q must start with /", ErrInvalidMapping, mapping)
	case strings.Contains(strings.TrimSuffix(mapping, "/*"), "*"):
		return fmt.Errorf("%w: %q may only end in /*", ErrInvalidMapping, mapping)
	case mapping == "/":
		return fmt.Errorf("%w: use %q to map the root", ErrInvalidMapping, RootMapping)
	}
	return nil
}

// ApplyURLMapping prefixes path with the directory of mapping.
//
//	ApplyURLMapping("/*", "login")        == "/login"
//	ApplyURLMapping("/ui/*", "/login")    == "/ui/login"
func ApplyURLMapping(mapping, path string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(mapping, "*"), "/")
	return base + "/" + strings.TrimPrefix(path, "/")
}

// PathInsideMapping returns the part of requested (with or without a
// leading slash) inside mapping, and false when requested is outside it.
func PathInsideMapping(mapping, requested string) (string, bool) {
	if mapping == RootMapping || mapping == "/" {
		return strings.TrimPrefix(requested, "/"), true
	}

	rel := strings.TrimPrefix(requested, "/")
	if dir, ok := strings.CutSuffix(mapping, "/*"); ok {
		dir = strings.TrimPrefix(dir, "/")
		if rel == dir {
			return "", true
		}
		if rest, ok := strings.CutPrefix(rel, dir+"/"); ok {
			return rest, true
		}
		return "", false
	}

	if rel == strings.TrimPrefix(mapping, "/") {
		return "", true
	}
	return "", false
}

func traced(tracer trace.Tracer, mapping string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "wcx "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("wcx.mapping", mapping),
			))
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", sw.status))
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is required by the websocket upgrade.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("mount: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
