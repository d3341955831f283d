package wcx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pthm/wcx/lib/htmlimport"
	"github.com/pthm/wcx/lib/metrics"
)

// Policy decides what happens when configurations are committed more than
// once.
type Policy int

const (
	// SetOnce accepts the first commit and rejects every later one.
	SetOnce Policy = iota

	// LastWriteWins accepts every commit; the latest snapshot is visible.
	// Intended for module reinitialisation, where the same application
	// context is configured again after a reload.
	LastWriteWins
)

func (p Policy) String() string {
	switch p {
	case SetOnce:
		return "set-once"
	case LastWriteWins:
		return "last-write-wins"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// DefaultPrefix is where Handler expects to be mounted.
const DefaultPrefix = "/_wcx"

// Registry maps tag names to web component configurations.
//
// A Registry is an explicit value owned by the application; create one per
// application context and pass it to whatever needs lookups:
//
//	reg := wcx.NewRegistry(key)
//	cfgs, err := wcx.Collect(userBoxExporter, myComponentExporter)
//	if err != nil {
//	    return err
//	}
//	reg.SetConfigurations(cfgs)
//	mux.Handle("/_wcx/", reg.Handler())
type Registry struct {
	policy    Policy
	snap      atomic.Pointer[snapshot]
	shell     atomic.Pointer[AppShell]
	encoder   *Encoder
	logger    *zap.Logger
	metrics   *metrics.Metrics
	templates *htmlimport.Resolver
	prefix    string
	upgrader  websocket.Upgrader
	mux       *http.ServeMux

	// OnError is called when a request to Handler fails before a session
	// is established.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy selects the commit policy (default SetOnce).
func WithPolicy(p Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTemplates sets the resolver for exporter HTML imports.
func WithTemplates(res *htmlimport.Resolver) Option {
	return func(r *Registry) { r.templates = res }
}

// WithPrefix sets the path prefix Handler is mounted under.
func WithPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// WithCheckOrigin overrides the websocket origin check.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(r *Registry) { r.upgrader.CheckOrigin = fn }
}

// NewRegistry creates an empty registry. key seeds the token encoder.
func NewRegistry(key []byte, opts ...Option) *Registry {
	enc, err := NewEncoder(key)
	if err != nil {
		panic(fmt.Sprintf("wcx: failed to create encoder: %v", err))
	}

	reg := &Registry{
		encoder: enc,
		logger:  zap.NewNop(),
		prefix:  DefaultPrefix,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(reg)
	}

	reg.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case IsNotFound(err):
			http.Error(w, "Not found", http.StatusNotFound)
		case IsTokenError(err):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}

	reg.mux = http.NewServeMux()
	reg.mux.HandleFunc("GET "+reg.prefix+"/manifest", reg.serveManifest)
	reg.mux.HandleFunc("GET "+reg.prefix+"/ws", reg.serveSession)
	return reg
}

// Policy returns the commit policy.
func (reg *Registry) Policy() Policy {
	return reg.policy
}

// Encoder returns the token encoder.
func (reg *Registry) Encoder() *Encoder {
	return reg.encoder
}

// Logger returns the registry logger.
func (reg *Registry) Logger() *zap.Logger {
	return reg.logger
}

type snapshot struct {
	ordered []Configuration
	byTag   map[string]Configuration
	byType  map[reflect.Type][]Configuration
}

func newSnapshot(cfgs []Configuration) *snapshot {
	s := &snapshot{
		ordered: make([]Configuration, len(cfgs)),
		byTag:   make(map[string]Configuration, len(cfgs)),
		byType:  make(map[reflect.Type][]Configuration),
	}
	copy(s.ordered, cfgs)
	for _, c := range cfgs {
		s.byTag[c.Tag()] = c
		s.byType[c.ComponentType()] = append(s.byType[c.ComponentType()], c)
	}
	return s
}

// SetConfigurations commits cfgs. Under SetOnce it returns true only for
// the first commit, even when called concurrently; later calls return
// false and leave the committed snapshot untouched. Under LastWriteWins
// every call returns true.
//
// Use Collect to validate configurations before committing them.
func (reg *Registry) SetConfigurations(cfgs []Configuration) bool {
	s := newSnapshot(cfgs)

	var accepted bool
	switch reg.policy {
	case LastWriteWins:
		reg.snap.Store(s)
		accepted = true
	default:
		accepted = reg.snap.CompareAndSwap(nil, s)
	}

	reg.metrics.RegistrySet(accepted)
	if accepted {
		reg.logger.Debug("web component configurations committed",
			zap.Int("count", len(cfgs)),
			zap.Stringer("policy", reg.policy))
	} else {
		reg.logger.Warn("web component configurations already committed, ignoring",
			zap.Int("count", len(cfgs)))
	}
	return accepted
}

// Commit is SetConfigurations reporting a rejected commit as
// ErrAlreadyInitialized.
func (reg *Registry) Commit(cfgs []Configuration) error {
	if !reg.SetConfigurations(cfgs) {
		return ErrAlreadyInitialized
	}
	return nil
}

// Configuration returns the configuration for tag.
func (reg *Registry) Configuration(tag string) (Configuration, bool) {
	s := reg.snap.Load()
	if s == nil {
		return nil, false
	}
	c, ok := s.byTag[tag]
	return c, ok
}

// ConfigurationsFor returns the configurations exporting component type t.
func (reg *Registry) ConfigurationsFor(t reflect.Type) []Configuration {
	s := reg.snap.Load()
	if s == nil {
		return nil
	}
	return append([]Configuration(nil), s.byType[t]...)
}

// Configurations returns all committed configurations in commit order.
func (reg *Registry) Configurations() []Configuration {
	s := reg.snap.Load()
	if s == nil {
		return nil
	}
	return append([]Configuration(nil), s.ordered...)
}

// HasConfigurations reports whether a non-empty snapshot is committed.
func (reg *Registry) HasConfigurations() bool {
	s := reg.snap.Load()
	return s != nil && len(s.ordered) > 0
}

// AppShell returns the shell stored by Boot, or an empty shell before boot.
func (reg *Registry) AppShell() *AppShell {
	if a := reg.shell.Load(); a != nil {
		return a
	}
	return NewAppShell()
}

// Initialized reports whether any snapshot (possibly empty) is committed.
func (reg *Registry) Initialized() bool {
	return reg.snap.Load() != nil
}

// Collect freezes configurers into configurations, rejecting duplicate tags.
func Collect(configurers ...Configurer) ([]Configuration, error) {
	seen := make(map[string]struct{}, len(configurers))
	out := make([]Configuration, 0, len(configurers))
	for _, c := range configurers {
		cfg := c.Configuration()
		if _, dup := seen[cfg.Tag()]; dup {
			return nil, fmt.Errorf("%w: <%s> is exported more than once", ErrDuplicateTag, cfg.Tag())
		}
		seen[cfg.Tag()] = struct{}{}
		out = append(out, cfg)
	}
	return out, nil
}

// Handler returns the HTTP handler for the manifest and session endpoints.
// Mount it at the registry prefix (default "/_wcx/").
func (reg *Registry) Handler() http.Handler {
	return reg.mux
}

type manifestEntry struct {
	Tag        string             `json:"tag"`
	Component  string             `json:"component"`
	Properties []manifestProperty `json:"properties"`
}

type manifestProperty struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ReadOnly bool   `json:"readOnly,omitempty"`
	Default  any    `json:"default,omitempty"`
}

func (reg *Registry) serveManifest(w http.ResponseWriter, r *http.Request) {
	entries := []manifestEntry{}
	for _, c := range reg.Configurations() {
		e := manifestEntry{Tag: c.Tag(), Component: c.ComponentType().String()}
		for _, p := range c.Properties() {
			e.Properties = append(e.Properties, manifestProperty{
				Name:     p.Name,
				Type:     p.Type.String(),
				ReadOnly: p.ReadOnly,
				Default:  p.Default,
			})
		}
		entries = append(entries, e)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		reg.logger.Warn("write manifest", zap.Error(err))
	}
}
