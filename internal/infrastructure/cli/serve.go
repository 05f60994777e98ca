package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/waypoint/internal/infrastructure/config"
	inframcp "github.com/felixgeelhaar/waypoint/internal/infrastructure/mcp"
	"github.com/felixgeelhaar/waypoint/internal/infrastructure/telemetry"
	"github.com/felixgeelhaar/waypoint/internal/infrastructure/watch"
	"github.com/felixgeelhaar/waypoint/internal/infrastructure/wiring"
)

var (
	serveTransport   string
	serveAddr        string
	serveWatchConfig bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Waypoint MCP server",
	Long: `Start the Waypoint MCP server.

The server runs until interrupted, until the transport fails, or until the
health monitor decides the storage or client has gone away. It then drains
in-flight requests before exiting.

Examples:
  waypoint serve
  waypoint serve --transport http --addr :8080
  waypoint serve --config ./waypoint.yaml --watch-config`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("WAYPOINT_SKIP_SERVE") == "true" {
			return nil
		}
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(cfg.SlogLevel())
	logger := newLogger(os.Stderr, level)

	if cfg.Server.Version == "" || cfg.Server.Version == "dev" {
		cfg.Server.Version = Version
	}
	inframcp.Version, inframcp.BuildCommit, inframcp.BuildDate = Version, Commit, Date

	tp, shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Server.Name,
		ServiceVersion: cfg.Server.Version,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	services, err := wiring.BuildAppServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open workspace", "error", err)
		return err
	}
	defer func() { _ = services.Close() }()

	transport := services.TransportOptions()
	if serveTransport != "" {
		transport.Transport = serveTransport
	}
	if serveAddr != "" {
		transport.Addr = serveAddr
	}

	var provider oteltrace.TracerProvider
	if tp != nil {
		provider = tp
	}
	coord, err := services.StartCoordinator(ctx, transport, provider)
	if err != nil {
		logger.Error("failed to start server", "error", err)
		return err
	}

	if serveWatchConfig {
		stop, err := watchConfig(ctx, level, logger)
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		} else {
			defer stop()
		}
	}

	logger.Info("serving", "transport", transport.Transport, "addr", transport.Addr, "database", services.Workspace.Store.Path())
	if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	return nil
}

// watchConfig applies log level changes from the config file while the
// server runs. Other settings take effect on the next start.
func watchConfig(ctx context.Context, level *slog.LevelVar, logger *slog.Logger) (func(), error) {
	path := configPath
	if path == "" {
		path = config.DefaultFile
	}
	w, err := watch.NewFileWatcher(path, 0, func(string) {
		cfg, err := config.Load(configPath, envFile)
		if err != nil {
			logger.Warn("ignoring invalid config change", "path", path, "error", err)
			return
		}
		if next := cfg.SlogLevel(); next != level.Level() {
			level.Set(next)
			logger.Info("log level changed", "level", next.String())
		}
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() { _ = w.Run(ctx) }()
	return cancel, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport to use (stdio, http, ws, grpc); overrides config")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address for http/ws/grpc transports; overrides config")
	serveCmd.Flags().BoolVar(&serveWatchConfig, "watch-config", false, "Reload the log level when the config file changes")
	RootCmd.AddCommand(serveCmd)
}
