package wiring

import (
	"context"
	"fmt"
	"log/slog"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/waypoint/internal/infrastructure/config"
	"github.com/felixgeelhaar/waypoint/internal/infrastructure/mcp"
	"github.com/felixgeelhaar/waypoint/pkg/application"
	"github.com/felixgeelhaar/waypoint/pkg/server"
)

// AppServices exposes the handler wired together with its workspace.
type AppServices struct {
	Config    config.Config
	Logger    *slog.Logger
	Workspace *Workspace
	Handler   *application.TaskHandler
}

// BuildAppServices opens the workspace for cfg and builds the task handler on it.
func BuildAppServices(ctx context.Context, cfg config.Config, logger *slog.Logger) (*AppServices, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ws, err := OpenWorkspace(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &AppServices{
		Config:    cfg,
		Logger:    logger,
		Workspace: ws,
		Handler:   application.NewTaskHandler(ws.Store, ws.Cache, application.WithLogger(logger)),
	}, nil
}

// Close releases the workspace.
func (s *AppServices) Close() error {
	return s.Workspace.Close()
}

// TransportOptions returns the transport selected by the configuration.
func (s *AppServices) TransportOptions() mcp.Options {
	return mcp.Options{Transport: s.Config.Transport.Kind, Addr: s.Config.Transport.Addr}
}

// StartCoordinator returns the process-wide coordinator serving the handler
// over transport. A nil tp keeps the global tracer provider.
func (s *AppServices) StartCoordinator(ctx context.Context, transport mcp.Options, tp oteltrace.TracerProvider) (*server.Coordinator, error) {
	opts := []server.Option{
		server.WithLogger(s.Logger),
		server.WithTransport(mcp.Factory(transport)),
	}
	if tp != nil {
		opts = append(opts, server.WithTracerProvider(tp))
	}
	c, err := server.GetInstance(ctx, s.Config.ServerConfig(), s.Handler, opts...)
	if err != nil {
		return nil, fmt.Errorf("start coordinator: %w", err)
	}
	return c, nil
}
