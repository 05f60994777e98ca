package wiring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/waypoint/internal/infrastructure/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.BaseDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestOpenWorkspaceCreatesDatabase(t *testing.T) {
	cfg := testConfig(t)
	ws, err := OpenWorkspace(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	if ws.Store == nil || ws.Cache == nil {
		t.Fatalf("expected store and cache, got %+v", ws)
	}
	if _, err := os.Stat(ws.Store.Path()); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestOpenWorkspaceRejectsBadStorage(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Storage.BaseDir = filepath.Join(blocker, "nested")
	if _, err := OpenWorkspace(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected error when the data dir cannot be created")
	}
}
