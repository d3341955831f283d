package wcx

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Meta is a <meta name content> pair.
type Meta struct {
	Name    string
	Content string
}

// AppShell holds the page-level settings shared by every page: title,
// meta tags and stylesheets. At most one manifest may configure it.
type AppShell struct {
	Title       string
	Viewport    string
	Meta        []Meta
	Stylesheets []string
	Scripts     []string
}

// NewAppShell returns an app shell with the default viewport.
func NewAppShell() *AppShell {
	return &AppShell{
		Viewport: "width=device-width, initial-scale=1",
	}
}

// AddMeta appends a meta tag.
func (a *AppShell) AddMeta(name, content string) *AppShell {
	a.Meta = append(a.Meta, Meta{Name: name, Content: content})
	return a
}

// AddStylesheet appends a stylesheet link.
func (a *AppShell) AddStylesheet(href string) *AppShell {
	a.Stylesheets = append(a.Stylesheets, href)
	return a
}

// AddScript appends a module script, typically the client runtime.
func (a *AppShell) AddScript(src string) *AppShell {
	a.Scripts = append(a.Scripts, src)
	return a
}

// Head renders the contents of <head>.
func (a *AppShell) Head() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<meta charset="utf-8">`)
		if a.Viewport != "" {
			sb.WriteString(`<meta name="viewport" content="` + templ.EscapeString(a.Viewport) + `">`)
		}
		if a.Title != "" {
			sb.WriteString("<title>" + templ.EscapeString(a.Title) + "</title>")
		}
		for _, m := range a.Meta {
			sb.WriteString(`<meta name="` + templ.EscapeString(m.Name) + `" content="` + templ.EscapeString(m.Content) + `">`)
		}
		for _, href := range a.Stylesheets {
			sb.WriteString(`<link rel="stylesheet" href="` + templ.EscapeString(href) + `">`)
		}
		for _, src := range a.Scripts {
			sb.WriteString(`<script type="module" src="` + templ.EscapeString(src) + `"></script>`)
		}
		_, err := io.WriteString(w, sb.String())
		return err
	})
}

// Page renders a complete document with body inside <body>.
func (a *AppShell) Page(body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html><html><head>"); err != nil {
			return err
		}
		if err := a.Head().Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</head><body>"); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}
