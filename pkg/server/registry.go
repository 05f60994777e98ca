package server

import (
	"context"
	"sync"
)

// initCall is one in-flight initialization that concurrent callers share.
type initCall struct {
	done chan struct{}
	c    *Coordinator
	err  error
}

var registry struct {
	mu       sync.Mutex
	instance *Coordinator
	pending  *initCall
}

// GetInstance returns the process-wide coordinator, creating and
// initializing it on first use. Concurrent callers during initialization
// wait for the same attempt. A failed attempt leaves no instance behind, so
// the next call tries again.
func GetInstance(ctx context.Context, cfg Config, h Handler, opts ...Option) (*Coordinator, error) {
	registry.mu.Lock()
	if c := registry.instance; c != nil {
		registry.mu.Unlock()
		return c, nil
	}
	if call := registry.pending; call != nil {
		registry.mu.Unlock()
		select {
		case <-call.done:
			return call.c, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &initCall{done: make(chan struct{})}
	registry.pending = call
	registry.mu.Unlock()

	c, err := New(cfg, h, opts...)
	if err == nil {
		if err = c.Init(ctx); err != nil {
			_ = c.Shutdown(context.Background())
			c = nil
		}
	}
	if err != nil {
		c = nil
	}

	registry.mu.Lock()
	call.c, call.err = c, err
	registry.instance = c
	registry.pending = nil
	registry.mu.Unlock()
	close(call.done)
	return c, err
}

// clearInstance forgets c if it is the registered instance.
func clearInstance(c *Coordinator) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.instance == c {
		registry.instance = nil
	}
}
