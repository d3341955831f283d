package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/wcx/example"
	"github.com/pthm/wcx/lib/mount"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the example application",
		Long: `Serve the bundled example: a user directory rendered as <user-box>
elements and a <my-component> counter, mounted under url_mapping.

Examples:
  wcx serve
  wcx serve --addr=:3000
  WCX_URL_MAPPING=/ui/* wcx serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if addr != "" {
				cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := example.New(ctx, cfg, log)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Addr, err)
			}
			srv := &http.Server{Handler: app, ReadHeaderTimeout: 10 * time.Second}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			url := "http://" + browserHost(ln.Addr()) + mount.ApplyURLMapping(cfg.URLMapping, "/")
			log.Info("serving", zap.String("url", url))
			if cfg.LaunchBrowser {
				if err := browser.OpenURL(url); err != nil {
					log.Warn("failed to open browser", zap.Error(err))
				}
			}

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

// browserHost turns a listener address into something a browser can open.
func browserHost(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || tcp.IP.IsUnspecified() {
		if ok {
			return fmt.Sprintf("localhost:%d", tcp.Port)
		}
		return addr.String()
	}
	return tcp.String()
}
