// Package ratelimit provides a global fixed-window admission gate.
package ratelimit

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
)

// DefaultWindow is the window length used when none is configured.
const DefaultWindow = time.Minute

// Status describes usage of the current window.
type Status struct {
	Current     int           `json:"current"`
	Limit       int           `json:"limit"`
	Window      time.Duration `json:"window"`
	WindowStart time.Time     `json:"windowStart"`
	ResetsIn    time.Duration `json:"resetsIn"`
}

// Limiter counts admissions per window and rejects once the ceiling is hit.
// Rejection is immediate; nothing is queued.
type Limiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns a limiter admitting limit requests per window.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{limit: limit, window: window, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.windowStart = l.now()
	return l
}

// Check admits one request or fails with domain.ErrRateLimited.
func (l *Limiter) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.roll()
	if l.count >= l.limit {
		return domain.Errorf(domain.ErrRateLimited, "checkLimit",
			"%d requests per %s", l.limit, l.window)
	}
	l.count++
	return nil
}

// Status reports usage of the current window.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.roll()
	return Status{
		Current:     l.count,
		Limit:       l.limit,
		Window:      l.window,
		WindowStart: l.windowStart,
		ResetsIn:    l.window - l.now().Sub(l.windowStart),
	}
}

func (l *Limiter) roll() {
	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
}
