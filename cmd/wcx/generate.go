package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/wcx/lib/config"
	"github.com/pthm/wcx/lib/scanner"
)

// devCacheSize is the number of parsed files kept when devmode_caching is on.
const devCacheSize = 1024

func newScanner(cfg *config.Config, log *zap.Logger, dryRun bool) *scanner.Scanner {
	opts := scanner.Options{
		DryRun:  dryRun,
		Allowed: cfg.AllowedPackages,
		Blocked: cfg.BlockedPackages,
		Logger:  log,
	}
	if cfg.DevmodeCaching {
		opts.CacheSize = devCacheSize
	}
	return scanner.New(opts)
}

func defaultPatterns(args []string) []string {
	if len(args) == 0 {
		return []string{"./..."}
	}
	return args
}

func generateCmd(flags *globalFlags) *cobra.Command {
	var (
		dryRun   bool
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Generate wcx_manifest_gen.go for annotated packages",
		Long: `Scan packages for wcx directives and write one manifest per package.

Examples:
  wcx generate ./...                 Generate for all packages
  wcx generate ./components/...      Generate for a subtree
  wcx generate --dry-run ./...       Preview generation
  wcx generate --watch ./...         Regenerate on change`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			s := newScanner(cfg, log, dryRun)
			patterns := defaultPatterns(args)

			if !watch {
				pkgs, err := s.Generate(cmd.Context(), patterns...)
				if err != nil {
					return err
				}
				for _, p := range pkgs {
					fmt.Printf("%s: %d exporters, %d routes\n", p.Dir, len(p.Exporters), len(p.Routes))
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := scanner.NewWatcher(s, interval, patterns...)
			w.OnGenerate = func(pkgs []*scanner.Package, err error) {
				if err == nil {
					log.Info("manifests generated", zap.Int("packages", len(pkgs)))
				}
			}
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be generated without writing files")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Regenerate when source files change")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval for --watch (default 500ms)")

	return cmd
}

func cleanCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean [packages]",
		Short: "Remove generated manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return newScanner(cfg, log, false).Clean(defaultPatterns(args)...)
		},
	}
}
