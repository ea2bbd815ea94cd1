package game

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Watcher polls the YAML files under a directory tree and reports changed, added and removed
// files once per scan.
type Watcher struct {
	Root     string
	Interval time.Duration

	onChange func([]string) // called with the paths that changed in one scan
	log      *zap.Logger

	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
	lastMTime map[string]time.Time
}

// NewWatcher creates a watcher for every *.yaml file below root.
func NewWatcher(root string, interval time.Duration, onChange func([]string), log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		Root:      root,
		Interval:  interval,
		onChange:  onChange,
		log:       log,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		lastMTime: make(map[string]time.Time),
	}
}

// WatchLoader returns a watcher over l's games directory that invalidates l on change and then
// calls onReload, which may be nil.
func WatchLoader(l *Loader, interval time.Duration, onReload func([]string), log *zap.Logger) *Watcher {
	return NewWatcher(l.Paths().GamesDir(), interval, func(paths []string) {
		l.Invalidate()
		if onReload != nil {
			onReload(paths)
		}
	}, log)
}

// Start primes the file list synchronously, then polls in a goroutine.
func (w *Watcher) Start() {
	w.started.Store(true)
	w.scan(true)
	ticker := time.NewTicker(w.Interval)
	go func() {
		defer close(w.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.scan(false)
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the watcher and waits for the polling goroutine. It is safe to call twice.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if w.started.Load() {
		<-w.done
	}
}

// scan compares mtimes with the last scan and reports the difference.
func (w *Watcher) scan(prime bool) {
	seen := make(map[string]time.Time, len(w.lastMTime))
	err := filepath.WalkDir(w.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable or missing entries count as removed
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		seen[p] = fi.ModTime()
		return nil
	})
	if err != nil {
		w.log.Warn("scan games dir", zap.String("root", w.Root), zap.Error(err))
	}

	var changed []string
	for p, mt := range seen {
		last, ok := w.lastMTime[p]
		if !ok || !mt.Equal(last) {
			changed = append(changed, p)
		}
	}
	for p := range w.lastMTime {
		if _, ok := seen[p]; !ok {
			changed = append(changed, p)
		}
	}
	w.lastMTime = seen

	if prime || len(changed) == 0 {
		return
	}
	slices.Sort(changed)
	w.log.Info("gacha definitions changed", zap.Strings("paths", changed))
	if w.onChange != nil {
		w.onChange(changed)
	}
}
