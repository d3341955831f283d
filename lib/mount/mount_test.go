package mount

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// echoPaths writes the Paths seen by the handler as JSON.
var echoPaths = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p, ok := FromContext(r.Context())
	if !ok {
		http.Error(w, "no paths", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(p)
})

func serve(t *testing.T, h http.Handler, path string) (int, Paths) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var p Paths
	_ = json.Unmarshal(rec.Body.Bytes(), &p)
	return rec.Code, p
}

func TestMountRootForwardsUnclaimedPaths(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	require.NoError(t, Mount(r, echoPaths, RootMapping))

	code, _ := serve(t, r, "/api/health")
	assert.Equal(t, http.StatusOK, code)

	code, p := serve(t, r, "/users/1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, Paths{PathInfo: "/users/1", Async: true, Forwarded: true}, p)
	assert.Equal(t, "users/1", p.PathInside())

	code, p = serve(t, r, DispatchPath+"/users/1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, Paths{ServletPath: DispatchPath, PathInfo: "/users/1", Async: true}, p)
}

func TestMountPathMapping(t *testing.T) {
	r := chi.NewRouter()
	require.NoError(t, Mount(r, echoPaths, "/ui/*", WithAsync(false)))

	code, p := serve(t, r, "/ui/users/1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, Paths{ServletPath: "/ui", PathInfo: "/users/1"}, p)

	code, p = serve(t, r, "/ui")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, Paths{ServletPath: "/ui"}, p)
	assert.Equal(t, "ui", p.PathInside())

	code, _ = serve(t, r, "/other")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMountExactMapping(t *testing.T) {
	r := chi.NewRouter()
	require.NoError(t, Mount(r, echoPaths, "/app"))

	code, p := serve(t, r, "/app")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, Paths{ServletPath: "/app", Async: true}, p)

	code, _ = serve(t, r, "/app/x")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestValidateMapping(t *testing.T) {
	for _, m := range []string{"/*", "/ui/*", "/app", "/a/b/*"} {
		assert.NoError(t, ValidateMapping(m), m)
	}
	for _, m := range []string{"", "ui/*", "/", "/*/x", "/a*/*"} {
		assert.ErrorIs(t, ValidateMapping(m), ErrInvalidMapping, m)
	}
	assert.Error(t, Mount(chi.NewRouter(), echoPaths, "ui"))
}

func TestApplyURLMapping(t *testing.T) {
	tests := []struct {
		mapping, path, want string
	}{
		{"/*", "login", "/login"},
		{"/*", "/login", "/login"},
		{"/*", "", "/"},
		{"/ui/*", "login", "/ui/login"},
		{"/ui/*", "/_wcx/**", "/ui/_wcx/**"},
		{"/app", "x", "/app/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ApplyURLMapping(tt.mapping, tt.path), "%s + %s", tt.mapping, tt.path)
	}
}

func TestPathInsideMapping(t *testing.T) {
	tests := []struct {
		mapping, requested string
		want               string
		ok                 bool
	}{
		{"/*", "/a/b", "a/b", true},
		{"/", "a", "a", true},
		{"/ui/*", "/ui/a/b", "a/b", true},
		{"/ui/*", "ui/a", "a", true},
		{"/ui/*", "/ui", "", true},
		{"/ui/*", "/uix/a", "", false},
		{"/ui/*", "/other", "", false},
		{"/app", "/app", "", true},
		{"/app", "/app/x", "", false},
	}
	for _, tt := range tests {
		got, ok := PathInsideMapping(tt.mapping, tt.requested)
		assert.Equal(t, tt.ok, ok, "%s in %s", tt.requested, tt.mapping)
		assert.Equal(t, tt.want, got, "%s in %s", tt.requested, tt.mapping)
	}
}

func TestMountRecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := chi.NewRouter()
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	require.NoError(t, Mount(r, failing, "/ui/*", WithTracerName("test")))

	code, _ := serve(t, r, "/ui/x")
	require.Equal(t, http.StatusServiceUnavailable, code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "wcx GET", span.Name())
	assert.Contains(t, span.Attributes(), attribute.String("wcx.mapping", "/ui/*"))
	assert.Contains(t, span.Attributes(), attribute.Int("http.status_code", http.StatusServiceUnavailable))
	assert.Equal(t, "Error", span.Status().Code.String())
}
