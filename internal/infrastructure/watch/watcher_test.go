package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func startWatcher(t *testing.T, path string, onChange func(string)) (*FileWatcher, context.CancelFunc, <-chan error) {
	t.Helper()
	w, err := NewFileWatcher(path, 50*time.Millisecond, onChange)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	return w, cancel, done
}

func TestFileWatcher_CoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "waypoint.yaml")
	if err := os.WriteFile(file, []byte("logLevel: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	var seen atomic.Value
	w, cancel, _ := startWatcher(t, file, func(p string) {
		count.Add(1)
		seen.Store(p)
	})
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(file, []byte("logLevel: debug\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 notification, got %d", got)
	}
	if p, _ := seen.Load().(string); p != w.Path() {
		t.Errorf("notified path = %q, want %q", p, w.Path())
	}
}

func TestFileWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "waypoint.yaml")
	if err := os.WriteFile(file, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	_, cancel, _ := startWatcher(t, file, func(string) { count.Add(1) })
	defer cancel()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no notifications, got %d", got)
	}
}

func TestFileWatcher_ContextCancellation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "waypoint.yaml")
	_, cancel, done := startWatcher(t, file, nil)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop after context cancellation")
	}
}

func TestNewFileWatcher_MissingDirectory(t *testing.T) {
	if _, err := NewFileWatcher(filepath.Join(t.TempDir(), "nope", "waypoint.yaml"), 0, nil); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
