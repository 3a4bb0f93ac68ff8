package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/haukened/wb-access/internal/access/common/clock"
	"github.com/haukened/wb-access/internal/access/common/log"
	"github.com/haukened/wb-access/internal/access/common/metrics"
	"github.com/haukened/wb-access/internal/access/config"
	"github.com/haukened/wb-access/internal/access/domain"
	"github.com/haukened/wb-access/internal/access/gateways/canon"
	"github.com/haukened/wb-access/internal/access/gateways/flatfile"
	"github.com/haukened/wb-access/internal/access/repos/whitelist"
	"github.com/haukened/wb-access/internal/access/repos/whitelist/bloom"
	"github.com/haukened/wb-access/internal/access/repos/whitelist/bolt"
	"github.com/haukened/wb-access/internal/access/services/filter"
	"github.com/haukened/wb-access/internal/access/services/reload"
)

// Application holds the wired components of the access service.
type Application struct {
	config  *config.AppConfig
	canon   domain.Canonicalizer
	manager *reload.Manager
	factory *filter.Factory
	store   *bolt.Store
	metrics *metrics.Metrics
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()

	c, err := canon.ByName(cfg.Canonicalizer)
	if err != nil {
		return nil, err
	}
	met := metrics.New()

	loader := whitelist.NewLoader(whitelist.LoaderOptions{
		Reader:        flatfile.Reader{},
		Canonicalizer: c,
		Bloom:         bloom.NewFactory(),
		FPRate:        cfg.BloomFPRate,
		ModTime:       flatfile.ModTime,
		Clock:         clock.RealClock{},
		Logger:        log.With(logger, map[string]any{"component": "loader"}),
	})

	var store *bolt.Store
	opts := reload.Options{
		Path:    cfg.WhitelistFile,
		Loader:  loader,
		Metrics: met,
		Logger:  log.With(logger, map[string]any{"component": "reload"}),
	}
	if cfg.SnapshotDB != "" {
		store, err = bolt.Open(cfg.SnapshotDB, bolt.Options{Bloom: bloom.NewFactory(), FPRate: cfg.BloomFPRate})
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot db: %w", err)
		}
		opts.Persister = store
		log.Info(map[string]any{"path": cfg.SnapshotDB}, "Snapshot persistence enabled")
	}

	mgr, err := reload.New(opts)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("failed to create reload manager: %w", err)
	}

	factory, err := filter.NewFactory(filter.FactoryOptions{
		Manager:       mgr,
		Canonicalizer: c,
		CheckInterval: cfg.Interval(),
		Watch:         cfg.Watch,
		Metrics:       met,
		Logger:        log.With(logger, map[string]any{"component": "filter"}),
	})
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("failed to create filter factory: %w", err)
	}

	return &Application{
		config:  cfg,
		canon:   c,
		manager: mgr,
		factory: factory,
		store:   store,
		metrics: met,
	}, nil
}

// Close shuts the factory down and releases the snapshot database.
func (app *Application) Close() {
	if err := app.factory.Shutdown(); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Error during factory shutdown")
	}
	closeStore(app.store)
}

func closeStore(s *bolt.Store) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Error closing snapshot db")
	}
}

// decide canonicalizes a raw URL and runs it through flt. URLs that cannot
// be canonicalized are excluded.
func decide(flt domain.RecordFilter, c domain.Canonicalizer, raw string) domain.Verdict {
	key, err := c.ToKey(raw)
	if err != nil {
		log.Debug(map[string]any{"url": raw, "error": err.Error()}, "canonicalize_failed")
		return domain.Exclude
	}
	rec, err := domain.NewCapture(key, raw, "")
	if err != nil {
		return domain.Exclude
	}
	return flt.Decide(rec)
}

// decideLines writes "VERDICT<TAB>url" for every non-empty line of r.
func decideLines(r io.Reader, w io.Writer, flt domain.RecordFilter, c domain.Canonicalizer) (int, error) {
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", decide(flt, c, line), line); err != nil {
			return n, err
		}
		n++
	}
	return n, scanner.Err()
}
