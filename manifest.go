package wcx

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Manifest lists what one package contributes at startup. The scanner
// generates one per package as wcx_manifest_gen.go; it can also be written
// by hand.
type Manifest struct {
	Package   string
	Exporters []ExporterFunc
	Routes    []RouteFunc
	AppShell  func(*AppShell)
}

// ExporterFunc builds one exporter.
type ExporterFunc func() (Configurer, error)

// RouteFunc builds the handler for one path.
type RouteFunc struct {
	Path    string
	Handler func() http.Handler
}

// Export adapts a typed exporter constructor to an ExporterFunc.
func Export[C any](fn func() (*Exporter[C], error)) ExporterFunc {
	return func() (Configurer, error) {
		e, err := fn()
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// Boot assembles the manifests and commits the result: exporters into reg,
// routes into routes (when non-nil), and returns the app shell, which is
// also kept on reg.
//
// Every failure aborts with a descriptive error before anything is
// committed. When reg is already initialised under SetOnce the exporter
// commit is skipped.
func Boot(ctx context.Context, reg *Registry, routes *RouteTable, manifests ...Manifest) (*AppShell, error) {
	log := reg.logger

	var (
		configurers []Configurer
		table       []Route
		shellFrom   string
		shellFn     func(*AppShell)
	)
	for _, m := range manifests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, fn := range m.Exporters {
			c, err := fn()
			if err != nil {
				return nil, fmt.Errorf("wcx: exporter in %s: %w", m.Package, err)
			}
			configurers = append(configurers, c)
		}
		for _, r := range m.Routes {
			table = append(table, Route{Path: r.Path, Handler: r.Handler()})
		}
		if m.AppShell != nil {
			if shellFn != nil {
				return nil, fmt.Errorf("%w: found in %s and %s", ErrDuplicateAppShell, shellFrom, m.Package)
			}
			shellFn, shellFrom = m.AppShell, m.Package
		}
	}

	cfgs, err := Collect(configurers...)
	if err != nil {
		return nil, err
	}
	if err := reg.validateTemplates(cfgs); err != nil {
		return nil, err
	}

	if routes != nil {
		ok, err := routes.SetRoutes(table)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug("route table already committed, skipping")
		}
	}

	if reg.policy == SetOnce && reg.Initialized() {
		log.Debug("registry already initialised, skipping exporter commit")
	} else {
		reg.SetConfigurations(cfgs)
	}

	shell := NewAppShell()
	if shellFn != nil {
		shellFn(shell)
	}
	reg.shell.Store(shell)

	log.Info("wcx booted",
		zap.Int("manifests", len(manifests)),
		zap.Int("exporters", len(cfgs)),
		zap.Int("routes", len(table)))
	return shell, nil
}

func (reg *Registry) validateTemplates(cfgs []Configuration) error {
	for _, c := range cfgs {
		path := c.TemplatePath()
		if path == "" {
			continue
		}
		if reg.templates == nil {
			return fmt.Errorf("wcx: <%s> declares template %q but the registry has no template resolver", c.Tag(), path)
		}
		if _, err := reg.templates.Resolve(path, c.Tag(), c.ComponentType().String()); err != nil {
			return err
		}
	}
	return nil
}
