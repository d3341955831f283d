package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Watcher polls the scanned packages and regenerates manifests when a Go
// file is added, modified or removed.
type Watcher struct {
	scanner  *Scanner
	patterns []string
	interval time.Duration

	// OnGenerate is called after every regeneration, including failed ones.
	OnGenerate func(pkgs []*Package, err error)

	stamps map[string]time.Time
}

// NewWatcher creates a watcher. An interval of zero means 500ms.
func NewWatcher(s *Scanner, interval time.Duration, patterns ...string) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Watcher{
		scanner:  s,
		patterns: patterns,
		interval: interval,
		stamps:   make(map[string]time.Time),
	}
}

// Run generates once, then polls until ctx is cancelled. Generation
// failures are reported and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.changes(); err != nil {
		return err
	}
	w.generate(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			changed, err := w.changes()
			if err != nil {
				w.scanner.logger.Warn("watch poll failed", zap.Error(err))
				continue
			}
			if len(changed) == 0 {
				continue
			}
			w.scanner.logger.Info("sources changed", zap.Strings("paths", changed))
			w.scanner.Invalidate(changed...)
			w.generate(ctx)
		}
	}
}

func (w *Watcher) generate(ctx context.Context) {
	pkgs, err := w.scanner.Generate(ctx, w.patterns...)
	if err != nil {
		w.scanner.logger.Error("generate failed", zap.Error(err))
	}
	if w.OnGenerate != nil {
		w.OnGenerate(pkgs, err)
	}
}

// changes updates the recorded modification times and returns the files
// that differ from the previous poll.
func (w *Watcher) changes() ([]string, error) {
	dirs, err := w.scanner.findPackages(w.patterns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(w.stamps))
	var changed []string
	for _, dir := range dirs {
		files, err := goFiles(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			info, err := os.Stat(f)
			if err != nil {
				continue
			}
			seen[f] = true
			last, ok := w.stamps[f]
			if !ok || !info.ModTime().Equal(last) {
				w.stamps[f] = info.ModTime()
				changed = append(changed, f)
			}
		}
	}
	for f := range w.stamps {
		if !seen[f] {
			delete(w.stamps, f)
			changed = append(changed, filepath.Clean(f))
		}
	}
	sort.Strings(changed)
	return changed, nil
}
