package wiring

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/felixgeelhaar/waypoint/internal/infrastructure/mcp"
	"github.com/felixgeelhaar/waypoint/pkg/server"
)

func TestBuildAppServices(t *testing.T) {
	services, err := BuildAppServices(context.Background(), testConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("build services: %v", err)
	}
	t.Cleanup(func() { _ = services.Close() })

	if services.Workspace == nil || services.Handler == nil {
		t.Fatalf("expected non-nil services, got %+v", services)
	}
	tools, err := services.Handler.ListTools(context.Background())
	if err != nil || len(tools) == 0 {
		t.Fatalf("list tools: %v (%d)", err, len(tools))
	}
	if got := services.TransportOptions(); got.Transport != "stdio" {
		t.Fatalf("expected stdio transport by default, got %+v", got)
	}
}

func TestStartCoordinator(t *testing.T) {
	services, err := BuildAppServices(context.Background(), testConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("build services: %v", err)
	}

	c, err := services.StartCoordinator(context.Background(), mcp.Options{}, nil)
	if err != nil {
		t.Fatalf("start coordinator: %v", err)
	}
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	if c.State() != server.StateRunning {
		t.Fatalf("expected running coordinator, got %s", c.State())
	}
	again, err := services.StartCoordinator(context.Background(), mcp.Options{}, nil)
	if err != nil || again != c {
		t.Fatalf("expected the same instance, got %p (%v)", again, err)
	}

	res, err := c.CallTool(context.Background(), "create_task",
		json.RawMessage(`{"path":"wired","name":"Wired","type":"task"}`))
	if err != nil {
		t.Fatalf("create_task: %v", err)
	}
	if !strings.Contains(res.Text(), `"path": "wired"`) {
		t.Fatalf("unexpected result: %s", res.Text())
	}
}

func TestStartCoordinatorRejectsBadTransport(t *testing.T) {
	services, err := BuildAppServices(context.Background(), testConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("build services: %v", err)
	}
	t.Cleanup(func() { _ = services.Close() })

	if _, err := services.StartCoordinator(context.Background(), mcp.Options{Transport: "smoke-signal"}, nil); err == nil {
		t.Fatal("expected transport error")
	}
}
