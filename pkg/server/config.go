package server

import (
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/server/health"
)

// Defaults applied to zero Config fields.
const (
	DefaultName                 = "waypoint"
	DefaultVersion              = "dev"
	DefaultMaxRequestsPerWindow = 600
	DefaultRateWindow           = 60 * time.Second
	DefaultRequestTimeout       = 30 * time.Second
	DefaultShutdownTimeout      = 30 * time.Second
	DefaultMemoryThreshold      = uint64(1 << 30)
	DefaultMemoryHeapFraction   = 0.85
	DefaultMemoryCheckInterval  = 30 * time.Second
	DefaultCatalogAttempts      = 3
	DefaultCatalogBackoff       = 100 * time.Millisecond

	drainPollInterval = 100 * time.Millisecond
)

// Config tunes the coordinator and its monitors.
type Config struct {
	Name    string
	Version string

	MaxRequestsPerWindow int
	RateWindow           time.Duration
	RequestTimeout       time.Duration
	ShutdownTimeout      time.Duration

	// Memory pressure is reported when heap use exceeds MemoryThreshold
	// bytes or MemoryHeapFraction of the heap obtained from the OS.
	MemoryThreshold     uint64
	MemoryHeapFraction  float64
	MemoryCheckInterval time.Duration

	CatalogAttempts int
	CatalogBackoff  time.Duration

	Health health.Config
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.MaxRequestsPerWindow <= 0 {
		c.MaxRequestsPerWindow = DefaultMaxRequestsPerWindow
	}
	if c.RateWindow <= 0 {
		c.RateWindow = DefaultRateWindow
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.MemoryThreshold == 0 {
		c.MemoryThreshold = DefaultMemoryThreshold
	}
	if c.MemoryHeapFraction <= 0 || c.MemoryHeapFraction > 1 {
		c.MemoryHeapFraction = DefaultMemoryHeapFraction
	}
	if c.MemoryCheckInterval <= 0 {
		c.MemoryCheckInterval = DefaultMemoryCheckInterval
	}
	if c.CatalogAttempts <= 0 {
		c.CatalogAttempts = DefaultCatalogAttempts
	}
	if c.CatalogBackoff <= 0 {
		c.CatalogBackoff = DefaultCatalogBackoff
	}
	return c
}
