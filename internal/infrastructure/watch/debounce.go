package watch

import (
	"sync"
	"time"
)

// debouncer folds a burst of triggers into one call of fire, window after
// the last trigger.
type debouncer struct {
	window time.Duration
	fire   func()

	mu      sync.Mutex
	pending *time.Timer
}

func newDebouncer(window time.Duration, fire func()) *debouncer {
	return &debouncer{window: window, fire: fire}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = time.AfterFunc(d.window, d.fire)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
