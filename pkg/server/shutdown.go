package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
)

// Run serves the transport until ctx is done, a termination signal
// arrives, the transport fails, or the health monitor gives up, then shuts
// down gracefully.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.State() != StateRunning {
		return fmt.Errorf("coordinator is %s, not running", c.State())
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.runCancel = cancel
	c.mu.Unlock()
	signal.Notify(c.signals, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	if c.transport != nil {
		go func() { serveErr <- c.transport.Serve(ctx) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case sig := <-c.signals:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("transport stopped", "error", err)
			runErr = err
		}
	}
	cancel()

	return errors.Join(runErr, c.Shutdown(context.Background()))
}

// Shutdown drains in-flight requests and releases everything the
// coordinator started. Only the first call does the work; later calls wait
// for it and return nil.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if !c.life.fire(eventDrain) {
		select {
		case <-c.shutdownDone:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
	c.mu.Lock()
	c.shuttingDown.Store(true)
	c.mu.Unlock()
	c.logger.Info("starting graceful shutdown")
	defer close(c.shutdownDone)

	c.health.Stop()
	c.stopMemoryMonitor()

	cancels := c.drain(ctx)
	for _, cancel := range cancels {
		cancel()
	}
	c.health.CancelPendingShutdown()
	signal.Stop(c.signals)

	var errs []error
	if cl, ok := c.handler.(Cleaner); ok {
		t := timeout.New[struct{}](timeout.Config{DefaultTimeout: c.cfg.ShutdownTimeout})
		_, err := t.Execute(ctx, c.cfg.ShutdownTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, cl.Cleanup(ctx)
		})
		if err != nil {
			c.logger.Error("handler cleanup failed", "error", err)
			errs = append(errs, fmt.Errorf("handler cleanup: %w", err))
		}
	}
	if c.transport != nil {
		if err := c.transport.Close(ctx); err != nil {
			c.logger.Error("transport close failed", "error", err)
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	c.tracer.Reset()

	c.life.fire(eventStop)
	clearInstance(c)

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("error during shutdown", "error", err, "metrics", c.metrics.Snapshot())
		return err
	}
	c.logger.Info("server closed", "metrics", c.metrics.Snapshot())
	return nil
}

// drain polls the active set until it empties or the shutdown timeout
// passes, then force-clears it. It returns the cancel funcs of every
// request still registered.
func (c *Coordinator) drain(ctx context.Context) []context.CancelFunc {
	deadline := time.NewTimer(c.cfg.ShutdownTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(drainPollInterval)
	defer poll.Stop()

	for c.ActiveRequests() > 0 {
		select {
		case <-poll.C:
			continue
		case <-deadline.C:
		case <-ctx.Done():
		}
		c.logger.Warn("shutdown timeout reached, forcing shutdown", "active_requests", c.ActiveRequests())
		break
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cancels := make([]context.CancelFunc, 0, len(c.active))
	for id, cancel := range c.active {
		cancels = append(cancels, cancel)
		delete(c.active, id)
	}
	return cancels
}
