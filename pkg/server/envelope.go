package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/server/metrics"
	"github.com/google/uuid"
)

type outcome[T any] struct {
	value T
	err   error
}

// envelope runs fn under admission control, request tracking, tracing,
// the per-request timeout and metrics. A timed-out fn keeps running; its
// result is discarded.
func envelope[T any](ctx context.Context, c *Coordinator, kind metrics.EventType, subject string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	requestID := uuid.NewString()

	if c.shuttingDown.Load() {
		return zero, c.rejectShutdown(kind, subject)
	}
	if err := c.limiter.Check(); err != nil {
		return zero, c.fail(kind, subject, err)
	}

	// Shutdown sets the flag under mu, so a request registered here is
	// always seen by drain.
	reqCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.shuttingDown.Load() {
		c.mu.Unlock()
		cancel()
		return zero, c.rejectShutdown(kind, subject)
	}
	c.active[requestID] = cancel
	c.mu.Unlock()
	c.health.RecordClientPing()

	start := time.Now()
	reqCtx = c.tracer.Start(reqCtx, requestID, string(kind), subject)

	value, err := race(reqCtx, cancel, c, kind, fn)

	c.mu.Lock()
	delete(c.active, requestID)
	c.mu.Unlock()
	c.tracer.End(requestID, err)

	if err != nil {
		return zero, c.fail(kind, subject, err)
	}
	c.metrics.RecordSuccess(metrics.Event{Type: kind, Subject: subject, Duration: time.Since(start)})
	return value, nil
}

// race waits for fn, the request timeout, or cancellation of the request
// by shutdown, whichever comes first. cancel releases ctx once fn returns.
func race[T any](ctx context.Context, cancel context.CancelFunc, c *Coordinator, kind metrics.EventType, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: panicError(kind, r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		cancel()
		return out.value, out.err
	case <-timer.C:
		go func() {
			<-done
			cancel()
		}()
		return zero, domain.Errorf(domain.ErrTimeout, string(kind), "request timed out after %s", c.cfg.RequestTimeout)
	case <-ctx.Done():
		cancel()
		if c.shuttingDown.Load() {
			return zero, domain.Errorf(domain.ErrShuttingDown, string(kind), "request abandoned during shutdown")
		}
		return zero, ctx.Err()
	}
}

// fail records the error metric and classifies err for the caller.
// Caller-actionable kinds and storage errors pass through unchanged;
// anything else is logged with detail and rewritten as an internal error.
func (c *Coordinator) fail(kind metrics.EventType, subject string, err error) error {
	c.metrics.RecordError(metrics.Event{Type: kind, Subject: subject, Err: err})

	switch {
	case domain.IsCallerError(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case domain.IsStorageError(err):
		c.logger.Error("storage error", "type", kind, "subject", subject, "error", err)
		return err
	}
	c.logger.Error("unexpected error in handler",
		"type", kind,
		"subject", subject,
		"error", err,
		"metrics", c.metrics.Snapshot(),
	)
	return &domain.Error{Kind: domain.ErrInternal, Op: string(kind), Message: "an unexpected error occurred"}
}

// ListTools returns the handler's catalog.
func (c *Coordinator) ListTools(ctx context.Context) ([]ToolSpec, error) {
	return envelope(ctx, c, metrics.ListTools, "", func(ctx context.Context) ([]ToolSpec, error) {
		tools, err := c.handler.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.setCatalogLocked(tools)
		c.mu.Unlock()
		return tools, nil
	})
}

// CallTool invokes a named tool. A missing name, malformed arguments or an
// unknown tool fail before admission.
func (c *Coordinator) CallTool(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error) {
	if name == "" {
		return nil, domain.Errorf(domain.ErrValidation, "callTool", "missing tool name")
	}
	if len(args) > 0 && !json.Valid(args) {
		return nil, domain.Errorf(domain.ErrValidation, "callTool", "arguments for %s are not valid JSON", name)
	}
	if !c.knowsTool(name) {
		return nil, domain.Errorf(domain.ErrNotFound, "callTool", "unknown tool %s", name)
	}
	return envelope(ctx, c, metrics.ToolExecution, name, func(ctx context.Context) (*ToolResult, error) {
		return c.handler.CallTool(ctx, name, args)
	})
}

// knowsTool checks the catalog cached at Init and refreshed by ListTools.
// It never reaches the handler, since it runs before admission.
func (c *Coordinator) knowsTool(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.toolNames[name]
	return ok
}

// ListResources returns the task, visualization and template resources the
// handler exposes.
func (c *Coordinator) ListResources(ctx context.Context) ([]Resource, error) {
	return envelope(ctx, c, metrics.ListResources, "", func(ctx context.Context) ([]Resource, error) {
		out := []Resource{}
		if p, ok := c.handler.(TaskResourceProvider); ok {
			rs, err := p.ListTaskResources(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		if _, ok := c.handler.(VisualizationResourceProvider); ok {
			out = append(out, visualizationResource)
		}
		if p, ok := c.handler.(TemplateResourceProvider); ok {
			rs, err := p.ListTemplateResources(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return out, nil
	})
}

// ListResourceTemplates returns parameterized resource addresses.
func (c *Coordinator) ListResourceTemplates(ctx context.Context) ([]ResourceTemplate, error) {
	return envelope(ctx, c, metrics.ListResourceTemplates, "", func(ctx context.Context) ([]ResourceTemplate, error) {
		p, ok := c.handler.(ResourceTemplateProvider)
		if !ok {
			return []ResourceTemplate{}, nil
		}
		return p.ResourceTemplates(ctx)
	})
}

// ReadResource resolves uri by scheme. Unknown schemes, and schemes whose
// capability the handler lacks, fail with domain.ErrNotFound.
func (c *Coordinator) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	if uri == "" {
		return nil, domain.Errorf(domain.ErrValidation, "readResource", "missing resource uri")
	}
	return envelope(ctx, c, metrics.ReadResource, uri, func(ctx context.Context) (*ResourceContent, error) {
		return c.routeResource(ctx, uri)
	})
}

func (c *Coordinator) rejectShutdown(kind metrics.EventType, subject string) error {
	return c.fail(kind, subject, domain.Errorf(domain.ErrShuttingDown, string(kind), "request rejected"))
}

func panicError(kind metrics.EventType, v any) error {
	return fmt.Errorf("panic in %s handler: %v\n%s", kind, v, debug.Stack())
}
