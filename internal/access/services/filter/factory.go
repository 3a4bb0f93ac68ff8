package filter

import (
	"fmt"
	"sync"
	"time"

	"github.com/haukened/wb-access/internal/access/common/log"
	"github.com/haukened/wb-access/internal/access/common/metrics"
	"github.com/haukened/wb-access/internal/access/domain"
	"github.com/haukened/wb-access/internal/access/services/reload"
)

// Manager is the part of reload.Manager the factory drives.
type Manager interface {
	SnapshotSource
	Reload()
	Start(interval time.Duration)
	Watch() error
	Stop()
}

// FactoryOptions configures a Factory. Manager and Canonicalizer are required.
type FactoryOptions struct {
	Manager       Manager
	Canonicalizer domain.Canonicalizer
	CheckInterval time.Duration // 0 disables the schedule
	Watch         bool
	Metrics       *metrics.Metrics
	Logger        log.Logger
}

// Factory builds whitelist filters for a pipeline and owns the reload
// lifecycle behind them.
type Factory struct {
	manager  Manager
	canon    domain.Canonicalizer
	interval time.Duration
	watch    bool
	metrics  *metrics.Metrics
	logger   log.Logger

	mu      sync.Mutex
	started bool
}

// NewFactory validates opts and returns a Factory.
func NewFactory(opts FactoryOptions) (*Factory, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("filter factory: manager is required")
	}
	if opts.Canonicalizer == nil {
		return nil, fmt.Errorf("filter factory: canonicalizer is required")
	}
	f := &Factory{
		manager:  opts.Manager,
		canon:    opts.Canonicalizer,
		interval: opts.CheckInterval,
		watch:    opts.Watch,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if f.logger == nil {
		f.logger = log.NewNoopLogger()
	}
	return f, nil
}

// Initialize performs the first load and starts the reload schedule and
// file watcher when configured. A missing or broken file is not an error
// here; BuildFilter reports it by refusing to build.
func (f *Factory) Initialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}
	f.manager.Reload()
	f.manager.Start(f.interval)
	if f.watch {
		if err := f.manager.Watch(); err != nil {
			f.manager.Stop()
			return fmt.Errorf("watch whitelist: %w", err)
		}
	}
	f.started = true
	f.logger.Info(map[string]any{
		"interval": f.interval.String(),
		"watch":    f.watch,
		"loaded":   f.manager.Current() != nil,
	}, "Whitelist filter factory initialized")
	return nil
}

// BuildFilter returns a new Filter, or false while no whitelist has ever
// been loaded.
func (f *Factory) BuildFilter() (domain.RecordFilter, bool) {
	flt, ok := f.NewFilter()
	if !ok {
		return nil, false
	}
	return flt, true
}

// NewFilter is BuildFilter with the concrete type.
func (f *Factory) NewFilter() (*Filter, bool) {
	if f.manager.Current() == nil {
		f.metrics.RecordBuild(false)
		return nil, false
	}
	f.metrics.RecordBuild(true)
	return New(Options{
		Source:        f.manager,
		Canonicalizer: f.canon,
		Metrics:       f.metrics,
		Logger:        f.logger,
	}), true
}

// Shutdown stops the reload schedule and watcher. It is idempotent.
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manager.Stop()
	if f.started {
		f.logger.Info(nil, "Whitelist filter factory stopped")
	}
	f.started = false
	return nil
}

var (
	_ domain.FilterFactory = (*Factory)(nil)
	_ Manager              = (*reload.Manager)(nil)
)
