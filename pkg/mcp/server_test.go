package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/mcp"
	"github.com/felixgeelhaar/waypoint/pkg/server"
)

type echoHandler struct{}

func (echoHandler) ListTools(context.Context) ([]server.ToolSpec, error) {
	return []server.ToolSpec{{Name: "echo", Description: "returns its arguments"}}, nil
}

func (echoHandler) StorageMetrics(context.Context) (domain.StorageMetrics, error) {
	return domain.StorageMetrics{}, nil
}

func (echoHandler) CallTool(_ context.Context, _ string, args json.RawMessage) (*server.ToolResult, error) {
	return server.TextResult(string(args)), nil
}

func TestFactoryInstallsBinding(t *testing.T) {
	c, err := server.New(server.DefaultConfig(), echoHandler{}, server.WithTransport(mcp.Factory(mcp.Options{Transport: mcp.TransportStdio})))
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	res, err := c.CallTool(context.Background(), "echo", json.RawMessage(`{"hi":1}`))
	if err != nil {
		t.Fatalf("call echo: %v", err)
	}
	if res.Text() != `{"hi":1}` {
		t.Fatalf("unexpected echo: %s", res.Text())
	}
}

func TestFactoryRejectsUnknownTransport(t *testing.T) {
	c, err := server.New(server.DefaultConfig(), echoHandler{}, server.WithTransport(mcp.Factory(mcp.Options{Transport: "telegraph"})))
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	if err := c.Init(context.Background()); err == nil {
		t.Fatal("expected init to fail on an unknown transport")
	}
}
