package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HendryAvila/tracky/internal/project"
	"github.com/HendryAvila/tracky/internal/store"
	"github.com/HendryAvila/tracky/internal/telemetry"
)

type countingRefresher struct {
	calls atomic.Int32
	ch    chan struct{}
}

func newCountingRefresher() *countingRefresher {
	return &countingRefresher{ch: make(chan struct{}, 16)}
}

func (r *countingRefresher) Refresh(context.Context) {
	r.calls.Add(1)
	r.ch <- struct{}{}
}

func (r *countingRefresher) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}

func startWatcher(t *testing.T, path string, s *store.JSONLStore, metrics *telemetry.Metrics) *countingRefresher {
	t.Helper()
	ref := newCountingRefresher()
	w, err := New(Options{
		Path:         path,
		Debounce:     20 * time.Millisecond,
		Detector:     s,
		Refresher:    ref,
		Metrics:      metrics,
		PollInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		if err := w.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return ref
}

func seed(t *testing.T, s *store.JSONLStore, title string) {
	t.Helper()
	data := &project.Data{PRDs: []project.PRD{{ID: "prd_1", Title: title, Owner: "alice"}}}
	if err := s.Save(context.Background(), data); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestWatcher_ExternalEditRefreshes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	s := store.NewJSONLStore(path)
	seed(t, s, "original")

	metrics := telemetry.New()
	ref := startWatcher(t, path, s, metrics)

	// Another process rewrites the file.
	seed(t, store.NewJSONLStore(path), "edited elsewhere")

	ref.wait(t)
	if got := testutil.ToFloat64(metrics.ExternalReloads); got < 1 {
		t.Errorf("external reloads = %v, want at least 1", got)
	}
}

func TestWatcher_ExternalEditSurvivesInterveningLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	s := store.NewJSONLStore(path)
	seed(t, s, "original")

	ref := newCountingRefresher()
	w, err := New(Options{
		Path:         path,
		Debounce:     300 * time.Millisecond,
		Detector:     s,
		Refresher:    ref,
		Logger:       discardLogger(),
		PollInterval: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})

	seed(t, store.NewJSONLStore(path), "edited elsewhere")

	// A view read or tool call hits the store before the debounce fires.
	time.Sleep(50 * time.Millisecond)
	data, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data.PRDs[0].Title != "edited elsewhere" {
		t.Fatalf("Load title = %q", data.PRDs[0].Title)
	}

	ref.wait(t)
}

func TestWatcher_OwnWritesDoNotRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	s := store.NewJSONLStore(path)
	seed(t, s, "original")
	ref := startWatcher(t, path, s, nil)

	seed(t, s, "our own edit")
	time.Sleep(200 * time.Millisecond)
	if n := ref.calls.Load(); n != 0 {
		t.Errorf("refresh called %d times for our own write", n)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.jsonl")
	s := store.NewJSONLStore(path)
	seed(t, s, "original")
	ref := startWatcher(t, path, s, nil)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := ref.calls.Load(); n != 0 {
		t.Errorf("refresh called %d times for an unrelated file", n)
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	s := store.NewJSONLStore(path)
	seed(t, s, "original")

	ref := newCountingRefresher()
	w := &Watcher{
		opts:    Options{Path: path, Detector: s, Refresher: ref, PollInterval: 20 * time.Millisecond},
		path:    path,
		polling: true,
	}
	w.opts.Logger = discardLogger()
	if !w.IsPolling() {
		t.Fatal("watcher should report polling")
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})

	seed(t, store.NewJSONLStore(path), "edited elsewhere")
	ref.wait(t)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Path: filepath.Join(t.TempDir(), "x")}); err == nil {
		t.Fatal("expected error without detector and refresher")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
