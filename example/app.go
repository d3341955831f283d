// Package example is a small wcx application: a user directory rendered as
// <user-box> elements next to a <my-component> counter. cmd/wcx serves it.
package example

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pthm/wcx"
	"github.com/pthm/wcx/example/components"
	"github.com/pthm/wcx/lib/config"
	"github.com/pthm/wcx/lib/htmlimport"
	"github.com/pthm/wcx/lib/metrics"
	"github.com/pthm/wcx/lib/mount"
	"github.com/pthm/wcx/lib/security"
)

// MetricsPath serves the Prometheus registry of the app.
const MetricsPath = "/metrics"

// App is the assembled example application.
type App struct {
	Registry  *wcx.Registry
	Routes    *wcx.RouteTable
	Directory *components.Directory
	Gatherer  prometheus.Gatherer

	handler http.Handler
	boot    func() error
}

// Option configures New.
type Option func(*options)

type options struct {
	directory  *components.Directory
	prometheus *prometheus.Registry
}

// WithDirectory replaces the sample user directory.
func WithDirectory(d *components.Directory) Option {
	return func(o *options) { o.directory = d }
}

// WithPrometheus sets the registry metrics are recorded in.
func WithPrometheus(r *prometheus.Registry) Option {
	return func(o *options) { o.prometheus = r }
}

// New builds the application from cfg. With load_on_startup the manifests
// are booted here and failures are returned; otherwise the first request
// boots them.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.directory == nil {
		o.directory = components.NewDirectory()
	}
	if o.prometheus == nil {
		o.prometheus = prometheus.NewRegistry()
	}

	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}

	resolverOpts := []htmlimport.Option{htmlimport.WithLogger(log)}
	if !cfg.DevmodeCaching {
		resolverOpts = append(resolverOpts, htmlimport.WithCacheSize(0))
	}

	reg := wcx.NewRegistry(key,
		wcx.WithLogger(log),
		wcx.WithMetrics(metrics.New(metrics.WithRegistry(o.prometheus))),
		wcx.WithTemplates(htmlimport.NewResolver(components.Frontend, resolverOpts...)))

	app := &App{
		Registry:  reg,
		Routes:    wcx.NewRouteTable(),
		Directory: o.directory,
		Gatherer:  o.prometheus,
	}
	app.boot = sync.OnceValue(func() error {
		_, err := wcx.Boot(context.WithoutCancel(ctx), reg, app.Routes, components.Manifest())
		return err
	})
	if cfg.LoadOnStartup {
		if err := app.boot(); err != nil {
			return nil, fmt.Errorf("boot: %w", err)
		}
	}

	var servlet http.Handler = app.withBoot(app.withDirectory(wcx.Servlet(reg, app.Routes)))
	if cfg.Production {
		servlet = security.Require(
			security.PermitMatcher(cfg.URLMapping),
			security.BearerJWT([]byte(cfg.SecretKey)),
			security.WithLogger(log),
			security.WithIgnore(security.IgnoreMatcher(cfg.URLMapping)),
		)(servlet)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Handle(MetricsPath, promhttp.HandlerFor(o.prometheus, promhttp.HandlerOpts{}))
	if err := mount.Mount(r, servlet, cfg.URLMapping,
		mount.WithAsync(cfg.AsyncSupported),
		mount.WithLogger(log)); err != nil {
		return nil, err
	}
	app.handler = r

	log.Info("example app ready",
		zap.String("url_mapping", cfg.URLMapping),
		zap.Bool("load_on_startup", cfg.LoadOnStartup),
		zap.Bool("production", cfg.Production))
	return app, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) withDirectory(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(components.WithDirectory(r.Context(), a.Directory)))
	})
}

func (a *App) withBoot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.boot(); err != nil {
			a.Registry.Logger().Error("boot failed", zap.Error(err))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}
