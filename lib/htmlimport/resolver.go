// Package htmlimport resolves HTML imports declared by exporters and
// extracts the <dom-module> template that defines a custom element.
package htmlimport

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrTemplateNotFound is returned when an import does not exist or does not
// define the requested dom-module.
var ErrTemplateNotFound = errors.New("htmlimport: template not found")

const defaultCacheSize = 128

// Resolver reads HTML imports from a file system.
type Resolver struct {
	fsys   fs.FS
	logger *zap.Logger
	cache  *lru.Cache[string, *html.Node]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for non-fatal I/O problems.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithCacheSize bounds the number of parsed documents kept in memory.
// Zero disables caching.
func WithCacheSize(n int) Option {
	return func(r *Resolver) {
		if n <= 0 {
			r.cache = nil
			return
		}
		r.cache, _ = lru.New[string, *html.Node](n)
	}
}

// NewResolver creates a resolver over fsys.
func NewResolver(fsys fs.FS, opts ...Option) *Resolver {
	cache, _ := lru.New[string, *html.Node](defaultCacheSize)
	r := &Resolver{fsys: fsys, logger: zap.NewNop(), cache: cache}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the <dom-module id="tag"> element of importPath.
// declaredBy names the exporter that declared the import and is only used
// in error messages.
func (r *Resolver) Resolve(importPath, tag, declaredBy string) (*html.Node, error) {
	doc, err := r.document(importPath)
	if err != nil {
		return nil, fmt.Errorf("%w: <%s> declared by %s: %w", ErrTemplateNotFound, tag, declaredBy, err)
	}

	module := findDomModule(doc, tag)
	if module == nil {
		return nil, fmt.Errorf("%w: no <dom-module id=%q> in %q declared by %s",
			ErrTemplateNotFound, tag, importPath, declaredBy)
	}
	return module, nil
}

// Template renders the content of the <template> inside the dom-module for
// tag. A dom-module without a template yields an empty string.
func (r *Resolver) Template(importPath, tag, declaredBy string) (string, error) {
	module, err := r.Resolve(importPath, tag, declaredBy)
	if err != nil {
		return "", err
	}

	tmpl := findFirst(module, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Template
	})
	if tmpl == nil {
		return "", nil
	}

	var sb strings.Builder
	for c := tmpl.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Forget drops a cached document, e.g. after the file changed.
func (r *Resolver) Forget(importPath string) {
	if r.cache != nil {
		r.cache.Remove(cleanPath(importPath))
	}
}

func (r *Resolver) document(importPath string) (*html.Node, error) {
	p := cleanPath(importPath)
	if r.cache != nil {
		if doc, ok := r.cache.Get(p); ok {
			return doc, nil
		}
	}

	f, err := r.fsys.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Warn("closing html import", zap.String("path", p), zap.Error(cerr))
		}
	}()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	stripComments(doc)

	if r.cache != nil {
		r.cache.Add(p, doc)
	}
	return doc, nil
}

func cleanPath(importPath string) string {
	importPath = strings.TrimPrefix(importPath, "frontend://")
	return strings.TrimPrefix(path.Clean("/"+importPath), "/")
}

func stripComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			stripComments(c)
		}
		c = next
	}
}

func findDomModule(doc *html.Node, tag string) *html.Node {
	return findFirst(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "dom-module" {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == tag {
				return true
			}
		}
		return false
	})
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}
