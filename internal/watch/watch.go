// Package watch reloads subscribed views when the data file is edited by
// another process.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/HendryAvila/tracky/internal/telemetry"
)

// Detector reports whether the file changed since the store last touched it.
type Detector interface {
	ExternallyModified() (bool, error)
}

// Refresher rebuilds and pushes every subscribed view.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Options configures a Watcher.
type Options struct {
	Path      string
	Debounce  time.Duration
	Detector  Detector
	Refresher Refresher
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
	// PollInterval is used when the filesystem does not support
	// notifications. Defaults to one second.
	PollInterval time.Duration
}

// Watcher observes the data file's directory. Events for the file are
// debounced; once they settle the detector decides whether the change came
// from outside, and only then are views refreshed.
type Watcher struct {
	opts    Options
	path    string
	watcher *fsnotify.Watcher
	polling bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher. The directory is watched rather than the file so
// atomic replacements (write to temp, rename over) are seen.
func New(opts Options) (*Watcher, error) {
	if opts.Detector == nil || opts.Refresher == nil {
		return nil, fmt.Errorf("watch: detector and refresher are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolving %s: %w", opts.Path, err)
	}
	w := &Watcher{opts: opts, path: path}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("watch: creating %s: %w", dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		opts.Logger.Warn("file notifications unavailable, polling", "path", path, "err", err)
		w.polling = true
		return w, nil
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		opts.Logger.Warn("cannot watch data directory, polling", "dir", dir, "err", err)
		w.polling = true
		return w, nil
	}
	w.watcher = fw
	return w, nil
}

// IsPolling reports whether the watcher fell back to polling.
func (w *Watcher) IsPolling() bool {
	return w.polling
}

// Start begins watching in a background goroutine until ctx is cancelled or
// Close is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if w.polling {
			w.poll(ctx)
		} else {
			w.run(ctx)
		}
	}()
}

func (w *Watcher) run(ctx context.Context) {
	var settle <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			settle = timer.C

		case <-settle:
			settle = nil
			w.check(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("file watcher error", "path", w.path, "err", err)

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// check refreshes views when the file no longer matches the store's
// fingerprint.
func (w *Watcher) check(ctx context.Context) {
	changed, err := w.opts.Detector.ExternallyModified()
	if err != nil {
		w.opts.Logger.Warn("checking data file", "path", w.path, "err", err)
		return
	}
	if !changed {
		return
	}
	w.opts.Logger.Info("data file changed externally, refreshing views", "path", w.path)
	w.opts.Metrics.ObserveExternalReload()
	w.opts.Refresher.Refresh(ctx)
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
