// Package watch regenerates project artifacts when the database changes
// and serves the project directory over local HTTP.
package watch

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SyncFunc regenerates the derived artifacts (board, snapshot) from the
// current database state.
type SyncFunc func(ctx context.Context) error

// Watcher debounces database file events into sync runs.
type Watcher struct {
	dbPath   string
	interval time.Duration
	sync     SyncFunc
}

// New creates a watcher for the given database file. interval is the
// debounce window between a burst of writes and the resulting sync.
func NewWatcher(dbPath string, interval time.Duration, sync SyncFunc) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{dbPath: dbPath, interval: interval, sync: sync}
}

// Run watches until ctx is cancelled. The watch is on the containing
// directory because SQLite WAL writes land in sibling -wal/-shm files and
// some editors replace files wholesale.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.dbPath)); err != nil {
		return err
	}

	base := filepath.Base(w.dbPath)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if name != base && !strings.HasPrefix(name, base+"-") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.interval)
				timerC = timer.C
			} else {
				timer.Reset(w.interval)
			}

		case <-timerC:
			timerC = nil
			timer = nil
			if err := w.sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// noCacheHandler wraps a file server with headers that keep the browser
// from serving a stale board between syncs.
type noCacheHandler struct {
	next http.Handler
}

func (h noCacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	h.next.ServeHTTP(w, r)
}

// NewServer returns an HTTP server for the project directory with caching
// disabled.
func NewServer(dir, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           noCacheHandler{http.FileServer(http.Dir(dir))},
		ReadHeaderTimeout: 5 * time.Second,
	}
}
