package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/cache"
	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/server"
	"github.com/felixgeelhaar/waypoint/pkg/storage/sqlite"
)

// TaskHandler serves the task tools and resources on top of the store,
// reading through and writing through the task cache.
type TaskHandler struct {
	store  *sqlite.Store
	cache  *cache.TaskCache
	logger *slog.Logger
	now    func() time.Time
}

// Compile-time checks for the optional coordinator capabilities.
var (
	_ server.Handler                       = (*TaskHandler)(nil)
	_ server.CacheClearer                  = (*TaskHandler)(nil)
	_ server.Cleaner                       = (*TaskHandler)(nil)
	_ server.TaskResourceProvider          = (*TaskHandler)(nil)
	_ server.TemplateResourceProvider      = (*TaskHandler)(nil)
	_ server.HierarchyResourceProvider     = (*TaskHandler)(nil)
	_ server.StatusResourceProvider        = (*TaskHandler)(nil)
	_ server.VisualizationResourceProvider = (*TaskHandler)(nil)
	_ server.ResourceTemplateProvider      = (*TaskHandler)(nil)
)

// HandlerOption customizes a TaskHandler.
type HandlerOption func(*TaskHandler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *TaskHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock replaces the time source used for member join times.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *TaskHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewTaskHandler returns a handler over an initialized store. A nil cache
// gets a default one.
func NewTaskHandler(store *sqlite.Store, c *cache.TaskCache, opts ...HandlerOption) *TaskHandler {
	if c == nil {
		c = cache.New()
	}
	h := &TaskHandler{
		store:  store,
		cache:  c,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListTools returns the static tool catalog.
func (h *TaskHandler) ListTools(context.Context) ([]server.ToolSpec, error) {
	out := make([]server.ToolSpec, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t.spec())
	}
	return out, nil
}

// CallTool validates args against the tool's schema and dispatches it.
func (h *TaskHandler) CallTool(ctx context.Context, name string, args json.RawMessage) (*server.ToolResult, error) {
	tool, ok := toolsByName[name]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, name, "unknown tool %s", name)
	}
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	if err := tool.validate(args); err != nil {
		return nil, err
	}
	result, err := tool.run(h, ctx, args)
	if err != nil {
		return nil, err
	}
	return jsonResult(result)
}

// StorageMetrics reports the store's metrics with the cache block filled in
// from the handler's cache.
func (h *TaskHandler) StorageMetrics(ctx context.Context) (domain.StorageMetrics, error) {
	m, err := h.store.GetMetrics(ctx)
	if err != nil {
		return domain.StorageMetrics{}, err
	}
	m.Storage.Cache = h.cache.Metrics()
	return m, nil
}

// ClearCaches drops every cached task.
func (h *TaskHandler) ClearCaches(context.Context) error {
	n := h.cache.Len()
	h.cache.Clear()
	h.logger.Info("task cache cleared", "entries", n)
	return nil
}

// Cleanup closes the store.
func (h *TaskHandler) Cleanup(context.Context) error {
	return h.store.Close()
}

func jsonResult(v any) (*server.ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return server.TextResult(string(data)), nil
}

func decodeArgs[T any](name string, args json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(args, &v); err != nil {
		return v, domain.Errorf(domain.ErrValidation, name, "invalid arguments: %v", err)
	}
	return v, nil
}
