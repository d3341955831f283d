package scanner

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"text/template"

	"go.uber.org/zap"
)

var manifestTemplate = template.Must(template.New("manifest").Parse(`// Code generated by wcx generate. DO NOT EDIT.

package {{.Package.Name}}

import "{{.ImportPath}}"

// Manifest lists the web components, routes and app shell declared in this
// package.
func Manifest() wcx.Manifest {
	return wcx.Manifest{
		Package: {{printf "%q" .Dir}},
{{- if .Package.Exporters}}
		Exporters: []wcx.ExporterFunc{
{{- range .Package.Exporters}}
			wcx.Export({{.Func}}),
{{- end}}
		},
{{- end}}
{{- if .Package.Routes}}
		Routes: []wcx.RouteFunc{
{{- range .Package.Routes}}
			{Path: {{printf "%q" .Path}}, Handler: {{.Func}}},
{{- end}}
		},
{{- end}}
{{- if .Package.AppShell}}
		AppShell: {{.Package.AppShell}},
{{- end}}
	}
}
`))

// Render returns the formatted manifest source for p.
func (s *Scanner) Render(p *Package) ([]byte, error) {
	data := struct {
		Package    *Package
		Dir        string
		ImportPath string
	}{
		Package:    p,
		Dir:        filepath.ToSlash(p.Dir),
		ImportPath: s.opts.ImportPath,
	}

	var buf bytes.Buffer
	if err := manifestTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render manifest: %w", err)
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format manifest: %w", err)
	}
	return formatted, nil
}

// writeManifest writes p's manifest unless the file already holds the same
// content.
func (s *Scanner) writeManifest(p *Package) error {
	path := filepath.Join(p.Dir, GeneratedFile)

	code, err := s.Render(p)
	if err != nil {
		return err
	}
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, code) {
		return nil
	}

	s.logger.Info("generating manifest",
		zap.String("path", path),
		zap.Int("exporters", len(p.Exporters)),
		zap.Int("routes", len(p.Routes)))
	if s.opts.DryRun {
		return nil
	}
	return os.WriteFile(path, code, 0o644)
}
