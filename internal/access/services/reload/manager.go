// Package reload keeps the installed whitelist snapshot in step with the
// whitelist file. One Manager owns one file; it polls on a schedule and can
// also react to file-system events.
package reload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/wb-access/internal/access/common/log"
	"github.com/haukened/wb-access/internal/access/common/metrics"
	"github.com/haukened/wb-access/internal/access/gateways/flatfile"
	"github.com/haukened/wb-access/internal/access/gateways/watch"
	"github.com/haukened/wb-access/internal/access/repos/whitelist"
)

// InvalidModTime is recorded after a failed load so that the next check
// retries regardless of the file's timestamp.
const InvalidModTime int64 = -1

// State is the lifecycle position of a Manager.
type State int32

const (
	Uninitialized State = iota
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// SnapshotLoader builds a snapshot from a whitelist file.
type SnapshotLoader interface {
	Load(path string) (*whitelist.Snapshot, error)
}

// Persister stores the last good snapshot outside the process.
type Persister interface {
	Save(snap *whitelist.Snapshot) error
	Restore() (*whitelist.Snapshot, error)
}

// Options configures a Manager. Path and Loader are required.
type Options struct {
	Path      string
	Loader    SnapshotLoader
	ModTime   func(path string) int64 // defaults to flatfile.ModTime
	Persister Persister               // optional
	Metrics   *metrics.Metrics        // optional
	Logger    log.Logger
}

// Manager owns the current whitelist snapshot. Readers call Current from
// any goroutine; only the Manager replaces the snapshot.
type Manager struct {
	path      string
	loader    SnapshotLoader
	modTime   func(string) int64
	persister Persister
	metrics   *metrics.Metrics
	logger    log.Logger

	current atomic.Pointer[whitelist.Snapshot]
	lastMod atomic.Int64
	state   atomic.Int32

	loadMu sync.Mutex // one load in flight

	mu      sync.Mutex // guards the fields below
	cancel  context.CancelFunc
	watcher *watch.Watcher
	wg      sync.WaitGroup
}

// New creates a Manager. When a Persister holds a snapshot it is installed
// immediately; the recorded mod-time stays Absent so the file on disk is
// still loaded on the first Reload.
func New(opts Options) (*Manager, error) {
	if opts.Path == "" {
		return nil, errors.New("reload: whitelist path is required")
	}
	if opts.Loader == nil {
		return nil, errors.New("reload: loader is required")
	}
	m := &Manager{
		path:      opts.Path,
		loader:    opts.Loader,
		modTime:   opts.ModTime,
		persister: opts.Persister,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if m.modTime == nil {
		m.modTime = flatfile.ModTime
	}
	if m.logger == nil {
		m.logger = log.NewNoopLogger()
	}
	m.lastMod.Store(flatfile.Absent)
	m.warmStart()
	return m, nil
}

func (m *Manager) warmStart() {
	if m.persister == nil {
		return
	}
	snap, err := m.persister.Restore()
	if err != nil {
		m.logger.Debug(map[string]any{"error": err.Error()}, "whitelist_warm_start_skipped")
		return
	}
	// a snapshot of another file must not stand in for the configured one
	if snap.Source() != m.path {
		m.logger.Debug(map[string]any{"source": snap.Source(), "path": m.path}, "whitelist_warm_start_skipped")
		return
	}
	m.current.Store(snap)
	m.state.Store(int32(Loaded))
	m.metrics.SetSnapshot(snap.Len(), unixSeconds(snap.LoadedAt()))
	m.logger.Info(map[string]any{
		"source":  snap.Source(),
		"entries": snap.Len(),
	}, "Whitelist restored from snapshot database")
}

// Reload checks the file's mod-time and loads it when it differs from the
// recorded one. A missing file is logged and otherwise treated as no
// change. A failed load keeps the previous snapshot and records
// InvalidModTime. Reload never returns an error; its outcome is visible
// through State, LastModTime and Current.
func (m *Manager) Reload() {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	mod := m.modTime(m.path)
	if mod == m.lastMod.Load() {
		if mod == flatfile.Absent {
			m.metrics.RecordReload(metrics.ReloadMissing)
			m.logger.Error(map[string]any{"path": m.path}, "Whitelist file missing")
			return
		}
		m.metrics.RecordReload(metrics.ReloadUnchanged)
		return
	}

	snap, err := m.loader.Load(m.path)
	if err != nil {
		m.lastMod.Store(InvalidModTime)
		m.state.Store(int32(Failed))
		m.metrics.RecordReload(metrics.ReloadFailed)
		m.logger.Error(map[string]any{
			"path":     m.path,
			"error":    err.Error(),
			"retained": m.current.Load() != nil,
		}, "Whitelist reload failed")
		return
	}

	m.current.Store(snap)
	m.lastMod.Store(mod)
	m.state.Store(int32(Loaded))
	m.metrics.RecordReload(metrics.ReloadLoaded)
	m.metrics.SetSnapshot(snap.Len(), unixSeconds(snap.LoadedAt()))
	m.logger.Info(map[string]any{
		"path":    m.path,
		"entries": snap.Len(),
		"skipped": snap.Meta().Skipped,
	}, "Whitelist loaded")

	if m.persister != nil {
		if err := m.persister.Save(snap); err != nil {
			m.logger.Warn(map[string]any{"error": err.Error()}, "Failed to persist whitelist snapshot")
		}
	}
}

// Start launches the schedule: Reload, then wait interval, repeated until
// Stop. It is a no-op when already running or when interval <= 0.
func (m *Manager) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx, interval)
	}()
	m.logger.Debug(map[string]any{"path": m.path, "interval": interval.String()}, "whitelist_schedule_start")
}

func (m *Manager) loop(ctx context.Context, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		m.Reload()
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// Watch reloads as soon as the file is written or replaced, in addition to
// any schedule. It is a no-op when already watching.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return nil
	}
	w, err := watch.New(m.path, m.Reload, m.logger)
	if err != nil {
		return err
	}
	m.watcher = w
	m.logger.Info(map[string]any{"path": w.Target()}, "Watching whitelist file")
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.Run()
	}()
	return nil
}

// Stop cancels the schedule and the watcher and waits for both to exit.
// A reload already in progress completes first. Stop is idempotent and
// the Manager may be started again afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			m.logger.Warn(map[string]any{"error": err.Error()}, "Failed to close file watcher")
		}
		m.watcher = nil
	}
	m.wg.Wait()
}

// Current returns the installed snapshot, or nil when none was ever loaded.
func (m *Manager) Current() *whitelist.Snapshot { return m.current.Load() }

func (m *Manager) State() State { return State(m.state.Load()) }

// LastModTime returns the mod-time of the installed file, Absent before the
// first load, or InvalidModTime after a failure.
func (m *Manager) LastModTime() int64 { return m.lastMod.Load() }

func unixSeconds(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }
