// Package watch triggers a callback when a single file changes on disk.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/haukened/wb-access/internal/access/common/log"
)

// relevantOps are the events that may change the watched file's content or
// replace it (editors often write a temp file and rename it into place).
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Chmod

// Watcher observes the directory holding a file and calls OnChange for
// events on that file. The directory is watched so atomic replacements
// are still seen after the original inode is gone.
type Watcher struct {
	target   string
	onChange func()
	logger   log.Logger

	fw        *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// New starts watching the directory of path. Call Run to deliver events and
// Close to release the watcher.
func New(path string, onChange func(), logger log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(target)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	return &Watcher{
		target:   target,
		onChange: onChange,
		logger:   logger,
		fw:       fw,
		done:     make(chan struct{}),
	}, nil
}

// Run delivers matching events to OnChange until Close is called. It runs
// OnChange synchronously, so a slow callback delays later events.
func (w *Watcher) Run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target || ev.Op&relevantOps == 0 {
				continue
			}
			w.logger.Debug(map[string]any{"path": w.target, "op": ev.Op.String()}, "watched file changed")
			w.onChange()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(map[string]any{"path": w.target, "error": err.Error()}, "file watcher error")
		}
	}
}

// Close stops Run and releases the underlying watcher. It is idempotent.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fw.Close()
	})
	return err
}

// Target returns the absolute path being watched.
func (w *Watcher) Target() string { return w.target }
