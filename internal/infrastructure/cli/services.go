package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/felixgeelhaar/waypoint/internal/infrastructure/config"
	"github.com/felixgeelhaar/waypoint/internal/infrastructure/wiring"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return config.Config{}, MapError(err)
	}
	return cfg, nil
}

// newLogger writes JSON to w. Stdout is reserved for the stdio transport,
// so servers log to stderr.
func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadServices opens the workspace for one-shot commands, which only log
// warnings and above.
func loadServices(ctx context.Context) (*wiring.AppServices, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	services, err := wiring.BuildAppServices(ctx, cfg, newLogger(os.Stderr, slog.LevelWarn))
	if err != nil {
		return nil, MapError(fmt.Errorf("failed to build services: %w", err))
	}
	return services, nil
}
