// Package server coordinates request admission, tracking, health-driven
// self-shutdown and graceful drain in front of a Handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/server/health"
	"github.com/felixgeelhaar/waypoint/pkg/server/metrics"
	"github.com/felixgeelhaar/waypoint/pkg/server/ratelimit"
	"github.com/felixgeelhaar/waypoint/pkg/server/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Transport carries requests to the coordinator until closed.
type Transport interface {
	Serve(ctx context.Context) error
	Close(ctx context.Context) error
}

// TransportFactory installs the coordinator's operations onto a transport.
type TransportFactory func(c *Coordinator, caps Capabilities) (Transport, error)

// Capabilities is what the coordinator advertises after init.
type Capabilities struct {
	Name              string
	Version           string
	Tools             []ToolSpec
	Resources         []Resource
	ResourceTemplates bool
}

var errEmptyCatalog = errors.New("tool catalog is empty")

// Coordinator is the process-wide request lifecycle owner. Obtain it with
// GetInstance, or New followed by Init in tests.
type Coordinator struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	limiter *ratelimit.Limiter
	health  *health.Monitor
	metrics *metrics.Collector
	tracer  *trace.Tracer
	life    *lifecycle

	transportFactory TransportFactory
	transport        Transport
	readMemory       func() memorySample
	tracerProvider   oteltrace.TracerProvider

	shuttingDown atomic.Bool

	mu           sync.Mutex
	active       map[string]context.CancelFunc
	catalog      []ToolSpec
	toolNames    map[string]struct{}
	caps         Capabilities
	memoryStop   chan struct{}
	memoryDone   chan struct{}
	signals      chan os.Signal
	runCancel    context.CancelFunc
	shutdownDone chan struct{}
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTransport sets the factory that binds the coordinator to a transport.
// Without one the coordinator serves in-process calls only.
func WithTransport(f TransportFactory) Option {
	return func(c *Coordinator) {
		c.transportFactory = f
	}
}

// WithTracerProvider exports request spans through tp.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(c *Coordinator) {
		c.tracerProvider = tp
	}
}

// WithLimiter replaces the rate limiter built from Config.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithHealthMonitor replaces the health monitor built from Config.
func WithHealthMonitor(m *health.Monitor) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.health = m
		}
	}
}

// New wires the monitors around h. It does not contact the handler.
func New(cfg Config, h Handler, opts ...Option) (*Coordinator, error) {
	if h == nil {
		return nil, domain.Errorf(domain.ErrValidation, "newCoordinator", "handler is required")
	}
	cfg = cfg.withDefaults()
	life, err := newLifecycle()
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		cfg:          cfg,
		handler:      h,
		logger:       slog.Default(),
		metrics:      metrics.New(),
		life:         life,
		readMemory:   readRuntimeMemory,
		active:       make(map[string]context.CancelFunc),
		toolNames:    make(map[string]struct{}),
		signals:      make(chan os.Signal, 1),
		shutdownDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "coordinator")
	if c.limiter == nil {
		c.limiter = ratelimit.New(cfg.MaxRequestsPerWindow, cfg.RateWindow)
	}
	if c.health == nil {
		c.health = health.New(cfg.Health, health.WithLogger(c.logger))
	}
	if c.tracerProvider != nil {
		c.tracer = trace.New(trace.WithTracerProvider(c.tracerProvider))
	} else {
		c.tracer = trace.New()
	}
	return c, nil
}

// Init fetches the catalog, advertises capabilities, installs the transport
// and starts the health and memory monitors.
func (c *Coordinator) Init(ctx context.Context) error {
	if c.life.current() != StateCreated {
		return nil
	}

	tools, err := c.fetchCatalog(ctx)
	if err != nil {
		return fmt.Errorf("fetch tool catalog: %w", err)
	}

	caps := Capabilities{
		Name:      c.cfg.Name,
		Version:   c.cfg.Version,
		Tools:     tools,
		Resources: c.advertisedResources(),
	}
	if _, ok := c.handler.(ResourceTemplateProvider); ok {
		caps.ResourceTemplates = true
	}

	c.mu.Lock()
	c.setCatalogLocked(tools)
	c.caps = caps
	c.mu.Unlock()

	if c.transportFactory != nil {
		t, err := c.transportFactory(c, caps)
		if err != nil {
			return fmt.Errorf("install transport: %w", err)
		}
		c.transport = t
	}

	c.health.SetOnShutdown(c.healthShutdown)
	c.health.Start(context.Background(), c.probe)
	c.startMemoryMonitor()

	c.life.fire(eventStart)
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	c.logger.Info("server initialized",
		"name", c.cfg.Name,
		"version", c.cfg.Version,
		"tools", names,
		"resources", len(caps.Resources),
	)
	return nil
}

// fetchCatalog retries with linear backoff; the handler may still be
// populating its catalog. An empty catalog after the last attempt is accepted.
func (c *Coordinator) fetchCatalog(ctx context.Context) ([]ToolSpec, error) {
	r := retry.New[[]ToolSpec](retry.Config{
		MaxAttempts:   c.cfg.CatalogAttempts,
		InitialDelay:  c.cfg.CatalogBackoff,
		BackoffPolicy: retry.BackoffLinear,
	})
	attempt := 0
	tools, err := r.Do(ctx, func(ctx context.Context) ([]ToolSpec, error) {
		attempt++
		tools, err := c.handler.ListTools(ctx)
		if err != nil {
			c.logger.Warn("tool catalog fetch failed", "attempt", attempt, "error", err)
			return nil, err
		}
		if len(tools) == 0 {
			c.logger.Debug("tool catalog empty, retrying", "attempt", attempt)
			return nil, errEmptyCatalog
		}
		return tools, nil
	})
	if errors.Is(err, errEmptyCatalog) {
		c.logger.Warn("starting with an empty tool catalog", "attempts", attempt)
		return []ToolSpec{}, nil
	}
	if err != nil {
		return nil, err
	}
	return tools, nil
}

func (c *Coordinator) setCatalogLocked(tools []ToolSpec) {
	c.catalog = append([]ToolSpec(nil), tools...)
	c.toolNames = make(map[string]struct{}, len(tools))
	for _, t := range tools {
		c.toolNames[t.Name] = struct{}{}
	}
}

var visualizationResource = Resource{
	URI:         VisualizationURI,
	Name:        "Task Visualizations",
	Description: "Task hierarchy display with progress tracking",
	MimeType:    "text/plain",
}

func (c *Coordinator) advertisedResources() []Resource {
	var out []Resource
	if _, ok := c.handler.(TaskResourceProvider); ok {
		out = append(out, Resource{
			URI:         TaskListURI,
			Name:        "Current Task List Overview",
			Description: "Overview of all tasks including status counts and recent updates",
			MimeType:    "application/json",
		})
	}
	if _, ok := c.handler.(VisualizationResourceProvider); ok {
		out = append(out, visualizationResource)
	}
	if _, ok := c.handler.(TemplateResourceProvider); ok {
		out = append(out, Resource{
			URI:         TemplatesURI,
			Name:        "Available Templates",
			Description: "Task templates with their metadata and variables",
			MimeType:    "application/json",
		})
	}
	return out
}

// probe gathers the snapshot the health monitor evaluates.
func (c *Coordinator) probe(ctx context.Context) health.ComponentStatus {
	m, err := c.handler.StorageMetrics(ctx)
	return health.ComponentStatus{
		Storage:     m,
		StorageErr:  err,
		RateLimiter: c.limiter.Status(),
		Metrics:     c.metrics.Snapshot(),
	}
}

func (c *Coordinator) healthShutdown() {
	c.logger.Info("health monitor triggered shutdown")
	c.mu.Lock()
	cancel := c.runCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		return
	}
	if err := c.Shutdown(context.Background()); err != nil {
		c.logger.Error("health-triggered shutdown failed", "error", err)
	}
}

// Capabilities returns what was advertised at init.
func (c *Coordinator) Capabilities() Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

// State returns the lifecycle state.
func (c *Coordinator) State() string {
	return c.life.current()
}

// ActiveRequests returns the number of requests in flight.
func (c *Coordinator) ActiveRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Metrics returns a snapshot of the request counters.
func (c *Coordinator) Metrics() metrics.Snapshot {
	return c.metrics.Snapshot()
}

// Health returns the health monitor's report.
func (c *Coordinator) Health() health.Report {
	return c.health.Status()
}

// RateLimit returns current window usage.
func (c *Coordinator) RateLimit() ratelimit.Status {
	return c.limiter.Status()
}
