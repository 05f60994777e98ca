// Package config loads the waypoint server configuration from YAML, a .env
// file and WAYPOINT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/waypoint/pkg/cache"
	"github.com/felixgeelhaar/waypoint/pkg/server"
	"github.com/felixgeelhaar/waypoint/pkg/server/health"
	"github.com/felixgeelhaar/waypoint/pkg/storage/sqlite"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "waypoint.yaml"

// Environment variables that override file settings.
const (
	EnvDataDir      = "WAYPOINT_DATA_DIR"
	EnvDBName       = "WAYPOINT_DB_NAME"
	EnvLogLevel     = "WAYPOINT_LOG_LEVEL"
	EnvMaxRequests  = "WAYPOINT_MAX_REQUESTS"
	EnvOTLPEndpoint = "WAYPOINT_OTLP_ENDPOINT"
	EnvTransport    = "WAYPOINT_TRANSPORT"
	EnvAddr         = "WAYPOINT_ADDR"
)

type Config struct {
	LogLevel  string          `yaml:"logLevel"`
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Health    HealthConfig    `yaml:"health"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Name                 string        `yaml:"name"`
	Version              string        `yaml:"version"`
	MaxRequestsPerWindow int           `yaml:"maxRequestsPerWindow"`
	RateWindow           time.Duration `yaml:"rateWindow"`
	RequestTimeout       time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout      time.Duration `yaml:"shutdownTimeout"`
	MemoryThresholdMB    uint64        `yaml:"memoryThresholdMB"`
	MemoryHeapFraction   float64       `yaml:"memoryHeapFraction"`
	MemoryCheckInterval  time.Duration `yaml:"memoryCheckInterval"`
}

type TransportConfig struct {
	Kind string `yaml:"kind"`
	Addr string `yaml:"addr"`
}

type HealthConfig struct {
	CheckInterval       time.Duration `yaml:"checkInterval"`
	FailureThreshold    int           `yaml:"failureThreshold"`
	ShutdownGracePeriod time.Duration `yaml:"shutdownGracePeriod"`
	ClientPingTimeout   time.Duration `yaml:"clientPingTimeout"`
}

type StorageConfig struct {
	BaseDir     string        `yaml:"baseDir"`
	Name        string        `yaml:"name"`
	JournalMode string        `yaml:"journalMode"`
	Synchronous string        `yaml:"synchronous"`
	TempStore   string        `yaml:"tempStore"`
	LockingMode string        `yaml:"lockingMode"`
	AutoVacuum  string        `yaml:"autoVacuum"`
	PageSize    int           `yaml:"pageSize"`
	CacheSize   int           `yaml:"cacheSize"`
	MmapSize    int64         `yaml:"mmapSize"`
	BusyTimeout time.Duration `yaml:"busyTimeout"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Default returns the documented defaults.
func Default() Config {
	store := sqlite.DefaultConfig(DefaultDataDir())
	srv := server.DefaultConfig()
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Name:                 srv.Name,
			Version:              srv.Version,
			MaxRequestsPerWindow: srv.MaxRequestsPerWindow,
			RateWindow:           srv.RateWindow,
			RequestTimeout:       srv.RequestTimeout,
			ShutdownTimeout:      srv.ShutdownTimeout,
			MemoryThresholdMB:    srv.MemoryThreshold >> 20,
			MemoryHeapFraction:   srv.MemoryHeapFraction,
			MemoryCheckInterval:  srv.MemoryCheckInterval,
		},
		Transport: TransportConfig{Kind: "stdio", Addr: ":8080"},
		Health: HealthConfig{
			CheckInterval:       health.DefaultCheckInterval,
			FailureThreshold:    health.DefaultFailureThreshold,
			ShutdownGracePeriod: health.DefaultShutdownGracePeriod,
			ClientPingTimeout:   health.DefaultClientPingTimeout,
		},
		Storage: StorageConfig{
			BaseDir:     store.BaseDir,
			Name:        store.Name,
			JournalMode: string(store.JournalMode),
			Synchronous: string(store.Synchronous),
			TempStore:   string(store.TempStore),
			LockingMode: string(store.LockingMode),
			AutoVacuum:  string(store.AutoVacuum),
			PageSize:    store.PageSize,
			CacheSize:   store.CacheSize,
			MmapSize:    store.MmapSize,
			BusyTimeout: store.BusyTimeout,
		},
		Cache:     CacheConfig{TTL: cache.DefaultTTL},
		Telemetry: TelemetryConfig{Endpoint: "localhost:4318", Insecure: true},
	}
}

// DefaultDataDir is the per-user application data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("APPDATA"); dir != "" {
			return filepath.Join(dir, "waypoint")
		}
		return filepath.Join(home, "AppData", "Roaming", "waypoint")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "waypoint")
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, "waypoint")
		}
		return filepath.Join(home, ".local", "share", "waypoint")
	}
}

// Load reads path over the defaults, then applies envFile (if present) and
// the environment. An empty path tries DefaultFile; a missing default file
// is not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Storage.BaseDir = v
	}
	if v := os.Getenv(EnvDBName); v != "" {
		c.Storage.Name = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvMaxRequests); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvMaxRequests, err)
		}
		c.Server.MaxRequestsPerWindow = n
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv(EnvTransport); v != "" {
		c.Transport.Kind = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Transport.Addr = v
	}
	return nil
}

// Validate checks the settings that have no safe fallback.
func (c Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Server.MaxRequestsPerWindow < 0 {
		return fmt.Errorf("server.maxRequestsPerWindow cannot be negative")
	}
	if c.Server.MemoryHeapFraction < 0 || c.Server.MemoryHeapFraction > 1 {
		return fmt.Errorf("server.memoryHeapFraction must be between 0 and 1")
	}
	if c.Health.FailureThreshold < 0 {
		return fmt.Errorf("health.failureThreshold cannot be negative")
	}
	if err := c.StoreConfig().Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ServerConfig maps the server, health and memory settings onto the coordinator.
func (c Config) ServerConfig() server.Config {
	return server.Config{
		Name:                 c.Server.Name,
		Version:              c.Server.Version,
		MaxRequestsPerWindow: c.Server.MaxRequestsPerWindow,
		RateWindow:           c.Server.RateWindow,
		RequestTimeout:       c.Server.RequestTimeout,
		ShutdownTimeout:      c.Server.ShutdownTimeout,
		MemoryThreshold:      c.Server.MemoryThresholdMB << 20,
		MemoryHeapFraction:   c.Server.MemoryHeapFraction,
		MemoryCheckInterval:  c.Server.MemoryCheckInterval,
		Health: health.Config{
			CheckInterval:       c.Health.CheckInterval,
			FailureThreshold:    c.Health.FailureThreshold,
			ShutdownGracePeriod: c.Health.ShutdownGracePeriod,
			ClientPingTimeout:   c.Health.ClientPingTimeout,
		},
	}
}

// StoreConfig maps the storage settings onto the store.
func (c Config) StoreConfig() sqlite.Config {
	return sqlite.Config{
		BaseDir:     c.Storage.BaseDir,
		Name:        c.Storage.Name,
		JournalMode: sqlite.JournalMode(strings.ToUpper(c.Storage.JournalMode)),
		Synchronous: sqlite.Synchronous(strings.ToUpper(c.Storage.Synchronous)),
		TempStore:   sqlite.TempStore(strings.ToUpper(c.Storage.TempStore)),
		LockingMode: sqlite.LockingMode(strings.ToUpper(c.Storage.LockingMode)),
		AutoVacuum:  sqlite.AutoVacuum(strings.ToUpper(c.Storage.AutoVacuum)),
		PageSize:    c.Storage.PageSize,
		CacheSize:   c.Storage.CacheSize,
		MmapSize:    c.Storage.MmapSize,
		BusyTimeout: c.Storage.BusyTimeout,
	}
}

// Save writes cfg as YAML to path.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
