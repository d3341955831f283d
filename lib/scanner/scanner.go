// Package scanner finds wcx directives in Go source and writes one
// manifest file per package.
//
// Three directives are recognised in function doc comments:
//
//	//wcx:export
//	func NewUserBoxExporter() (*wcx.Exporter[UserBox], error)
//
//	//wcx:route /users
//	func UsersPage() http.Handler
//
//	//wcx:appshell
//	func ConfigureShell(s *wcx.AppShell)
//
// The generated wcx_manifest_gen.go declares Manifest() wcx.Manifest, which
// the application passes to wcx.Boot.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pthm/wcx/lib/metrics"
	"github.com/pthm/wcx/lib/prefixtree"
)

// GeneratedFile is the name of the file written into every package that
// declares directives.
const GeneratedFile = "wcx_manifest_gen.go"

// DefaultImportPath is the import path of the wcx package used by
// generated code.
const DefaultImportPath = "github.com/pthm/wcx"

// DefaultBlocked lists directory prefixes never scanned unless an allowed
// list is given.
var DefaultBlocked = []string{"vendor", "testdata", "node_modules"}

// ErrInvalidDirective is returned when a directive is attached to a
// function with the wrong signature or has malformed arguments.
var ErrInvalidDirective = errors.New("scanner: invalid directive")

// Options configures the scanner.
type Options struct {
	DryRun bool

	// Allowed and Blocked filter package directories by path prefix,
	// relative to the pattern root. A non-empty Allowed overrides Blocked.
	// A nil Blocked means DefaultBlocked.
	Allowed []string
	Blocked []string

	// CacheSize is the number of parsed files kept between runs. Zero
	// disables caching.
	CacheSize int

	// ImportPath overrides DefaultImportPath.
	ImportPath string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Scanner discovers directives and writes manifests.
type Scanner struct {
	opts   Options
	fset   *token.FileSet
	filter *prefixtree.Filter
	cache  *lru.Cache[string, cachedFile]
	logger *zap.Logger
}

type cachedFile struct {
	modTime time.Time
	size    int64
	result  *fileResult
}

// New creates a scanner.
func New(opts Options) *Scanner {
	if opts.Blocked == nil {
		opts.Blocked = DefaultBlocked
	}
	if opts.ImportPath == "" {
		opts.ImportPath = DefaultImportPath
	}
	s := &Scanner{
		opts:   opts,
		fset:   token.NewFileSet(),
		filter: prefixtree.NewFilter(opts.Allowed, opts.Blocked),
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if opts.CacheSize > 0 {
		s.cache, _ = lru.New[string, cachedFile](opts.CacheSize)
	}
	return s
}

// Package is what one package directory declares.
type Package struct {
	Dir       string
	Name      string
	Exporters []Export
	Routes    []Route
	AppShell  string
}

// Empty reports whether the package declares nothing.
func (p *Package) Empty() bool {
	return len(p.Exporters) == 0 && len(p.Routes) == 0 && p.AppShell == ""
}

// Export is a //wcx:export function.
type Export struct {
	Func      string
	Component string
	Pos       string
}

// Route is a //wcx:route function.
type Route struct {
	Path string
	Func string
	Pos  string
}

type fileResult struct {
	pkgName   string
	exporters []Export
	routes    []Route
	appShells []string
}

// Scan parses the packages matched by patterns and returns those that
// declare at least one directive. Nothing is written.
func (s *Scanner) Scan(ctx context.Context, patterns ...string) ([]*Package, error) {
	start := time.Now()
	defer s.opts.Metrics.ScanFinished(start)

	dirs, err := s.findPackages(patterns)
	if err != nil {
		return nil, err
	}

	type job struct {
		dir  string
		path string
	}
	var jobs []job
	for _, dir := range dirs {
		files, err := goFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			jobs = append(jobs, job{dir: dir, path: f})
		}
	}

	results := make([]*fileResult, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := s.scanFile(j.path)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDir := make(map[string]*Package)
	var pkgs []*Package
	for i, j := range jobs {
		r := results[i]
		p, ok := byDir[j.dir]
		if !ok {
			p = &Package{Dir: j.dir, Name: r.pkgName}
			byDir[j.dir] = p
			pkgs = append(pkgs, p)
		}
		if p.Name != r.pkgName {
			return nil, fmt.Errorf("%s: found packages %s and %s", j.dir, p.Name, r.pkgName)
		}
		p.Exporters = append(p.Exporters, r.exporters...)
		p.Routes = append(p.Routes, r.routes...)
		for _, fn := range r.appShells {
			if p.AppShell != "" {
				return nil, fmt.Errorf("%w: %s: more than one //wcx:appshell (%s, %s)",
					ErrInvalidDirective, j.dir, p.AppShell, fn)
			}
			p.AppShell = fn
		}
	}

	out := pkgs[:0]
	for _, p := range pkgs {
		if err := checkRoutes(p); err != nil {
			return nil, err
		}
		if !p.Empty() {
			out = append(out, p)
		}
	}
	return out, nil
}

// Generate scans patterns and writes a manifest into every package that
// declares directives. Stale manifests of packages that no longer declare
// anything are removed.
func (s *Scanner) Generate(ctx context.Context, patterns ...string) ([]*Package, error) {
	pkgs, err := s.Scan(ctx, patterns...)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		declared[p.Dir] = true
		if err := s.writeManifest(p); err != nil {
			return nil, fmt.Errorf("package %s: %w", p.Dir, err)
		}
	}

	dirs, err := s.findPackages(patterns)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if declared[dir] {
			continue
		}
		if err := s.cleanPackage(dir); err != nil {
			return nil, fmt.Errorf("package %s: %w", dir, err)
		}
	}
	return pkgs, nil
}

// Clean removes generated manifests for the given package patterns.
func (s *Scanner) Clean(patterns ...string) error {
	dirs, err := s.findPackages(patterns)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := s.cleanPackage(dir); err != nil {
			return fmt.Errorf("package %s: %w", dir, err)
		}
	}
	return nil
}

// Invalidate drops cached parse results for paths. Directories drop every
// cached file below them.
func (s *Scanner) Invalidate(paths ...string) {
	if s.cache == nil {
		return
	}
	for _, p := range paths {
		p = filepath.Clean(p)
		s.cache.Remove(p)
		prefix := p + string(filepath.Separator)
		for _, k := range s.cache.Keys() {
			if strings.HasPrefix(k, prefix) {
				s.cache.Remove(k)
			}
		}
	}
}

func (s *Scanner) cleanPackage(dir string) error {
	path := filepath.Join(dir, GeneratedFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	s.logger.Info("removing manifest", zap.String("path", path))
	if s.opts.DryRun {
		return nil
	}
	return os.Remove(path)
}

// findPackages resolves package patterns to directories containing
// non-test Go files.
func (s *Scanner) findPackages(patterns []string) ([]string, error) {
	var packages []string
	for _, pattern := range patterns {
		root, recursive := strings.CutSuffix(pattern, "/...")
		if root == "" {
			root = "."
		}
		if !recursive {
			packages = append(packages, filepath.Clean(root))
			continue
		}

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !s.filter.Include(rel) {
				// Ancestors of allowed prefixes still need walking.
				if len(s.opts.Allowed) == 0 {
					return filepath.SkipDir
				}
				return nil
			}

			files, err := goFiles(path)
			if err != nil {
				return nil
			}
			if len(files) > 0 {
				packages = append(packages, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(packages)
	return packages, nil
}

func goFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if strings.HasSuffix(name, "_test.go") || name == GeneratedFile {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

func (s *Scanner) scanFile(path string) (*fileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if c, ok := s.cache.Get(path); ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
			s.opts.Metrics.FileScanned(true)
			return c.result, nil
		}
	}

	file, err := parser.ParseFile(s.fset, path, nil, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	r, err := s.findDirectives(file)
	if err != nil {
		return nil, err
	}

	s.opts.Metrics.FileScanned(false)
	if s.cache != nil {
		s.cache.Add(path, cachedFile{modTime: info.ModTime(), size: info.Size(), result: r})
	}
	return r, nil
}

// findDirectives inspects top-level function doc comments.
func (s *Scanner) findDirectives(file *ast.File) (*fileResult, error) {
	r := &fileResult{pkgName: file.Name.Name}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Doc == nil {
			continue
		}
		for _, c := range fn.Doc.List {
			name, arg, ok := parseDirective(c.Text)
			if !ok {
				continue
			}
			pos := s.fset.Position(c.Slash).String()

			switch name {
			case "export":
				comp, err := exportComponent(fn)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: //wcx:export on %s: %v", ErrInvalidDirective, pos, fn.Name.Name, err)
				}
				r.exporters = append(r.exporters, Export{Func: fn.Name.Name, Component: comp, Pos: pos})
			case "route":
				if arg == "" || arg[0] != '/' || strings.ContainsAny(arg, " \t") {
					return nil, fmt.Errorf("%w: %s: //wcx:route needs a path starting with /, got %q", ErrInvalidDirective, pos, arg)
				}
				if !isRouteFunc(fn) {
					return nil, fmt.Errorf("%w: %s: //wcx:route on %s: want func() http.Handler", ErrInvalidDirective, pos, fn.Name.Name)
				}
				r.routes = append(r.routes, Route{Path: arg, Func: fn.Name.Name, Pos: pos})
			case "appshell":
				if !isAppShellFunc(fn) {
					return nil, fmt.Errorf("%w: %s: //wcx:appshell on %s: want func(*wcx.AppShell)", ErrInvalidDirective, pos, fn.Name.Name)
				}
				r.appShells = append(r.appShells, fn.Name.Name)
			default:
				return nil, fmt.Errorf("%w: %s: unknown directive //wcx:%s", ErrInvalidDirective, pos, name)
			}
		}
	}
	return r, nil
}

func parseDirective(text string) (name, arg string, ok bool) {
	rest, ok := strings.CutPrefix(text, "//wcx:")
	if !ok {
		return "", "", false
	}
	name, arg, _ = strings.Cut(strings.TrimSpace(rest), " ")
	return name, strings.TrimSpace(arg), true
}

// exportComponent checks fn is func() (*wcx.Exporter[T], error) and
// returns T.
func exportComponent(fn *ast.FuncDecl) (string, error) {
	const want = "want func() (*wcx.Exporter[T], error)"
	if fn.Recv != nil || fn.Type.TypeParams != nil || fn.Type.Params.NumFields() != 0 {
		return "", errors.New(want)
	}
	res := fn.Type.Results
	if res.NumFields() != 2 || !isIdent(res.List[len(res.List)-1].Type, "error") {
		return "", errors.New(want)
	}
	star, ok := res.List[0].Type.(*ast.StarExpr)
	if !ok {
		return "", errors.New(want)
	}
	idx, ok := star.X.(*ast.IndexExpr)
	if !ok || !isWCXName(idx.X, "Exporter") {
		return "", errors.New(want)
	}
	return typeToString(idx.Index), nil
}

func isRouteFunc(fn *ast.FuncDecl) bool {
	if fn.Recv != nil || fn.Type.Params.NumFields() != 0 || fn.Type.Results.NumFields() != 1 {
		return false
	}
	sel, ok := fn.Type.Results.List[0].Type.(*ast.SelectorExpr)
	return ok && isIdent(sel.X, "http") && sel.Sel.Name == "Handler"
}

func isAppShellFunc(fn *ast.FuncDecl) bool {
	if fn.Recv != nil || fn.Type.Params.NumFields() != 1 || fn.Type.Results.NumFields() != 0 {
		return false
	}
	star, ok := fn.Type.Params.List[0].Type.(*ast.StarExpr)
	return ok && isWCXName(star.X, "AppShell")
}

func isWCXName(expr ast.Expr, name string) bool {
	switch x := expr.(type) {
	case *ast.SelectorExpr:
		return isIdent(x.X, "wcx") && x.Sel.Name == name
	case *ast.Ident:
		return x.Name == name
	}
	return false
}

func isIdent(expr ast.Expr, name string) bool {
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == name
}

func typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeToString(t.X)
	case *ast.SelectorExpr:
		return typeToString(t.X) + "." + t.Sel.Name
	case *ast.IndexExpr:
		return typeToString(t.X) + "[" + typeToString(t.Index) + "]"
	default:
		return fmt.Sprintf("%T", expr)
	}
}

func checkRoutes(p *Package) error {
	seen := make(map[string]string, len(p.Routes))
	for _, r := range p.Routes {
		if prev, dup := seen[r.Path]; dup {
			return fmt.Errorf("%w: %s: route %s declared by %s and %s", ErrInvalidDirective, r.Pos, r.Path, prev, r.Func)
		}
		seen[r.Path] = r.Func
	}
	return nil
}
