package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/wcx/lib/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type globalFlags struct {
	config   string
	envFiles []string
}

func main() {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "wcx",
		Short: "Export Go components as browser custom elements",
		Long: `wcx exports Go component types as custom elements whose properties
stay synchronised with the server over a websocket session.

The generate command scans packages for //wcx:export, //wcx:route and
//wcx:appshell directives and writes a wcx_manifest_gen.go per package;
wcx.Boot assembles the manifests at startup.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, ".env files to load (default .env if present)")

	rootCmd.AddCommand(
		generateCmd(&flags),
		cleanCmd(&flags),
		serveCmd(&flags),
		versionCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger from it.
func setup(flags *globalFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flags.config, flags.envFiles...)
	if err != nil {
		return nil, nil, err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}
