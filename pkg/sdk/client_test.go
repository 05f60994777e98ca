package sdk

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-go/client"

	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
)

func TestTextResult(t *testing.T) {
	t.Run("extracts text", func(t *testing.T) {
		r := &client.ToolResult{
			Content: []client.ContentItem{{Type: "text", Text: "hello"}},
		}
		got, err := textResult(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "hello" {
			t.Fatalf("got %q, want %q", got, "hello")
		}
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := textResult(&client.ToolResult{})
		if err != ErrNoContent {
			t.Fatalf("got %v, want ErrNoContent", err)
		}
	})
}

func TestUnmarshalText(t *testing.T) {
	r := &client.ToolResult{
		Content: []client.ContentItem{{Type: "text", Text: `{"path":"demo","name":"Demo"}`}},
	}
	got, err := unmarshalText[task.Task](r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Path != "demo" || got.Name != "Demo" {
		t.Fatalf("unexpected task: %+v", got)
	}

	r.Content[0].Text = "not json"
	if _, err := unmarshalText[task.Task](r); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestToArgs(t *testing.T) {
	m, err := toArgs(task.CreateInput{Path: "demo", Name: "Demo", Type: task.TypeGroup})
	if err != nil {
		t.Fatal(err)
	}
	if m["path"] != "demo" || m["type"] != "group" {
		t.Fatalf("unexpected args: %v", m)
	}
	if m, err := toArgs(nil); err != nil || m != nil {
		t.Fatalf("nil args = %v, %v", m, err)
	}
	if _, err := toArgs(func() {}); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestMajorVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.0.0", "1"},
		{"2.3.4", "2"},
		{"10.0.1", "10"},
		{"3", "3"},
	}
	for _, tt := range tests {
		if got := majorVersion(tt.input); got != tt.want {
			t.Errorf("majorVersion(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	dir := cwd
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}

func TestIntegrationCreateAndQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	root := findRepoRoot(t)
	tempDir := t.TempDir()

	binPath := filepath.Join(tempDir, "waypoint")
	build := exec.Command("go", "build", "-o", binPath, "./cmd/waypoint")
	build.Dir = root
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build waypoint: %v\n%s", err, out)
	}

	cmd := fmt.Sprintf("cd '%s' && WAYPOINT_DATA_DIR='%s/data' '%s' serve --transport stdio", tempDir, tempDir, binPath)
	transport, err := client.NewStdioTransport("bash", "-lc", cmd)
	if err != nil {
		t.Fatalf("stdio transport: %v", err)
	}
	defer transport.Close()

	c := NewClient(transport, WithTimeout(60*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	info, err := c.Initialize(ctx)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !info.Capabilities.Tools {
		t.Fatalf("expected tools capability")
	}

	if _, err := c.CreateTask(ctx, task.CreateInput{Path: "sdk", Name: "SDK", Type: task.TypeGroup}); err != nil {
		t.Fatalf("create parent: %v", err)
	}
	if _, err := c.CreateTask(ctx, task.CreateInput{Path: "sdk/client", Name: "Client", Type: task.TypeTask, ParentPath: "sdk"}); err != nil {
		t.Fatalf("create child: %v", err)
	}

	subtasks, err := c.GetSubtasks(ctx, "sdk")
	if err != nil {
		t.Fatalf("get subtasks: %v", err)
	}
	if subtasks.Count != 1 || subtasks.Tasks[0].Path != "sdk/client" {
		t.Fatalf("unexpected subtasks: %+v", subtasks)
	}

	viz, err := c.ReadResource(ctx, VisualizationURI)
	if err != nil {
		t.Fatalf("read visualization: %v", err)
	}
	if !strings.Contains(viz, "sdk/client") && !strings.Contains(viz, "Client") {
		t.Fatalf("unexpected visualization: %s", viz)
	}

	if err := c.Compatible(ctx); err != nil {
		t.Fatalf("compatible: %v", err)
	}
}
