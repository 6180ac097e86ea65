package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/quotegrab/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the batch API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("quotegrab starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"mode", cfg.Server.Mode,
			"engine", cfg.Browser.Engine,
			"concurrency", cfg.Scraper.Concurrency,
		)

		// ── 3. Initialise scraper ───────────────────────────────────
		sc := newScraper(cfg)
		defer func() {
			if err := sc.Close(); err != nil {
				slog.Warn("engine shutdown failed", "error", err)
			}
		}()

		// Warm the engine so the first request does not pay for the launch.
		// A failure here is not fatal; batches retry the start.
		if err := sc.Warm(cmd.Context()); err != nil {
			slog.Warn("engine warm-up failed", "error", err)
		}

		// ── 4. Setup router ─────────────────────────────────────────
		router := api.NewRouter(sc, cfg)

		// ── 5. Start HTTP server ────────────────────────────────────
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// ── 6. Graceful shutdown ────────────────────────────────────
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			slog.Info("shutdown signal received", "signal", sig.String())
		case err := <-errCh:
			return fmt.Errorf("HTTP server error: %w", err)
		}

		// Give in-flight requests 5 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}

		// sc.Close runs via defer and closes the browser.
		slog.Info("quotegrab stopped")
		return nil
	},
}
