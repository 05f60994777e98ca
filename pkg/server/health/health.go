// Package health decides when sustained failures should take the server down.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/server/metrics"
	"github.com/felixgeelhaar/waypoint/pkg/server/ratelimit"
)

// Defaults applied to zero Config fields.
const (
	DefaultCheckInterval       = 300 * time.Second
	DefaultFailureThreshold    = 5
	DefaultShutdownGracePeriod = 10 * time.Second
	DefaultClientPingTimeout   = 300 * time.Second
)

// Config tunes the failure policy.
type Config struct {
	CheckInterval       time.Duration
	FailureThreshold    int
	ShutdownGracePeriod time.Duration
	ClientPingTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.ShutdownGracePeriod <= 0 {
		c.ShutdownGracePeriod = DefaultShutdownGracePeriod
	}
	if c.ClientPingTimeout <= 0 {
		c.ClientPingTimeout = DefaultClientPingTimeout
	}
	return c
}

// ComponentStatus is the snapshot evaluated on each check.
type ComponentStatus struct {
	Storage     domain.StorageMetrics
	StorageErr  error
	RateLimiter ratelimit.Status
	Metrics     metrics.Snapshot
}

// Probe gathers a ComponentStatus for one check.
type Probe func(ctx context.Context) ComponentStatus

// Report is what Status returns.
type Report struct {
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastClientPing      time.Time `json:"lastClientPing"`
	ShutdownTriggered   bool      `json:"shutdownTriggered"`
}

// Monitor counts consecutive failed checks and fires the shutdown callback
// once, after the grace period, when the threshold is reached.
type Monitor struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	failures   int
	lastPing   time.Time
	onShutdown func()
	triggered  bool
	graceTimer *time.Timer

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns a monitor. The client is considered active at creation.
func New(cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "health_monitor")
	m.lastPing = m.now()
	return m
}

// Interval returns the configured check interval.
func (m *Monitor) Interval() time.Duration {
	return m.cfg.CheckInterval
}

// SetOnShutdown registers the callback fired when the threshold is crossed.
func (m *Monitor) SetOnShutdown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onShutdown = fn
}

// RecordClientPing marks client activity now.
func (m *Monitor) RecordClientPing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPing = m.now()
}

// Check applies the failure policy to one snapshot. A storage error or a
// client silent for longer than the ping timeout counts as a failure; any
// other snapshot resets the count.
func (m *Monitor) Check(status ComponentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	silent := m.now().Sub(m.lastPing)
	switch {
	case status.StorageErr != nil:
		m.failures++
		m.logger.Warn("health check failed", "reason", "storage", "error", status.StorageErr, "failures", m.failures)
	case silent > m.cfg.ClientPingTimeout:
		m.failures++
		m.logger.Warn("health check failed", "reason", "client inactive", "silent_for", silent, "failures", m.failures)
	default:
		if m.failures > 0 {
			m.logger.Info("health recovered", "previous_failures", m.failures)
		}
		m.failures = 0
		return
	}

	if m.failures >= m.cfg.FailureThreshold && !m.triggered {
		m.triggered = true
		m.logger.Error("failure threshold reached, scheduling shutdown",
			"failures", m.failures, "grace_period", m.cfg.ShutdownGracePeriod)
		cb := m.onShutdown
		m.graceTimer = time.AfterFunc(m.cfg.ShutdownGracePeriod, func() {
			if cb != nil {
				cb()
			}
		})
	}
}

// Start runs checks on every interval tick in a background goroutine until
// ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context, probe Probe) {
	select {
	case <-m.done:
		return
	default:
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.CheckInterval)
		defer ticker.Stop()

		m.logger.Debug("health monitor started", "interval", m.cfg.CheckInterval)
		for {
			select {
			case <-ticker.C:
				m.Check(probe(ctx))
			case <-ctx.Done():
				return
			case <-m.done:
				return
			}
		}
	}()
}

// Stop ends the check loop and waits for it to return. A shutdown already
// scheduled by the threshold still fires.
func (m *Monitor) Stop() {
	m.closeOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

// CancelPendingShutdown stops a scheduled grace timer that has not fired.
func (m *Monitor) CancelPendingShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graceTimer == nil {
		return false
	}
	return m.graceTimer.Stop()
}

// Status reports the current failure count and last client activity.
func (m *Monitor) Status() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Report{
		ConsecutiveFailures: m.failures,
		LastClientPing:      m.lastPing,
		ShutdownTriggered:   m.triggered,
	}
}
