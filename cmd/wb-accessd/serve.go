package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/wb-access/internal/access/common/log"
	"github.com/haukened/wb-access/internal/access/domain"
)

const defaultShutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Decide URLs read from stdin, one per line",
	Long: `Loads the whitelist, keeps it current in the background and writes
INCLUDE or EXCLUDE followed by the URL for every line read from stdin.
Runs until stdin is closed or a shutdown signal arrives.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Info(map[string]any{
		"version":        version,
		"env":            cfg.Env,
		"log_level":      cfg.LogLevel,
		"whitelist_file": cfg.WhitelistFile,
		"check_interval": cfg.CheckInterval,
		"canonicalizer":  cfg.Canonicalizer,
		"watch":          cfg.Watch,
	}, "Starting wb-access")

	app, err := buildApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer app.Close()

	if err := app.factory.Initialize(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, app.metrics.Handler())
		defer stopMetricsServer(srv)
	}

	done := make(chan error, 1)
	go func() {
		n, err := decideLines(cmd.InOrStdin(), cmd.OutOrStdout(), &lazyFilter{factory: app.factory}, app.canon)
		log.Debug(map[string]any{"records": n}, "stdin_closed")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("reading records: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(nil, "wb-access stopped")
	return nil
}

// lazyFilter builds its filter on first use, so records arriving before
// the first successful load are excluded rather than failing the run.
type lazyFilter struct {
	factory domain.FilterFactory
	flt     domain.RecordFilter
}

func (l *lazyFilter) Decide(rec domain.Record) domain.Verdict {
	if l.flt == nil {
		flt, ok := l.factory.BuildFilter()
		if !ok {
			return domain.Exclude
		}
		l.flt = flt
	}
	return l.flt.Decide(rec)
}

func (l *lazyFilter) SetGroup(domain.FilterGroup) {}

func startMetricsServer(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(map[string]any{"address": addr, "error": err.Error()}, "Metrics server failed")
		}
	}()
	log.Info(map[string]any{"address": addr}, "Metrics endpoint started")
	return srv
}

func stopMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Error during metrics server shutdown")
	}
}
