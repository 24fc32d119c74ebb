package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingHandler) handle(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	return nil
}

func (r *recordingHandler) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestWatcherHandlesExistingAndNewVideos(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.mp4"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recordingHandler{}
	w, err := New(dir, 2, rec.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.settleDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return len(rec.seen()) == 1 })

	if err := os.WriteFile(filepath.Join(dir, "incoming.mov"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.seen()) == 2 })

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}

	seen := rec.seen()
	got := map[string]bool{}
	for _, p := range seen {
		got[p] = true
	}
	if !got["existing.mp4"] || !got["incoming.mov"] {
		t.Errorf("handled = %v, want existing.mp4 and incoming.mov", seen)
	}
	if got["notes.txt"] {
		t.Errorf("unsupported file was handled: %v", seen)
	}
}

func TestWatcherRejectsBadDirectories(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), 1, func(context.Context, string) error { return nil }); err == nil {
		t.Error("missing directory accepted")
	}

	file := filepath.Join(t.TempDir(), "file.mp4")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file, 1, func(context.Context, string) error { return nil }); err == nil {
		t.Error("plain file accepted as watch directory")
	}
}
