package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/waypoint/internal/infrastructure/config"
	"github.com/felixgeelhaar/waypoint/internal/infrastructure/wiring"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	return buf.String()
}

// withWorkspace points the CLI at a fresh data dir and working directory.
func withWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvDataDir, filepath.Join(dir, "data"))
	configPath, envFile = "", ".env"
	return dir
}

// seedTasks creates tasks through the handler so parent links are kept.
func seedTasks(t *testing.T, calls ...string) {
	t.Helper()
	cfg, err := config.Load("", "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	services, err := wiring.BuildAppServices(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("build services: %v", err)
	}
	defer func() { _ = services.Close() }()
	for _, args := range calls {
		if _, err := services.Handler.CallTool(context.Background(), "create_task", json.RawMessage(args)); err != nil {
			t.Fatalf("create_task %s: %v", args, err)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var err error
	out := captureStdout(t, func() {
		RootCmd.SetArgs(args)
		err = RootCmd.Execute()
	})
	RootCmd.SetArgs(nil)
	return out, err
}
