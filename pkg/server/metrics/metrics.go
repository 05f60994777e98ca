// Package metrics accumulates per-event-type request counters in memory.
package metrics

import (
	"sync"
	"time"
)

// EventType names a class of recorded outcome.
type EventType string

const (
	ListTools             EventType = "list_tools"
	ToolExecution         EventType = "tool_execution"
	ListResources         EventType = "list_resources"
	ListResourceTemplates EventType = "list_resource_templates"
	ReadResource          EventType = "read_resource"
	Error                 EventType = "error"
)

// Event is one recorded outcome.
type Event struct {
	Type     EventType
	Subject  string
	Duration time.Duration
	Err      error
}

// Stat aggregates the events of one type.
type Stat struct {
	Count         int64         `json:"count"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"totalDuration"`
	MaxDuration   time.Duration `json:"maxDuration"`
	LastError     string        `json:"lastError,omitempty"`
}

// Average returns the mean duration of the timed events.
func (s Stat) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Count)
}

// Snapshot is a point-in-time copy of the collector.
type Snapshot struct {
	Events    map[EventType]Stat `json:"events"`
	Total     int64              `json:"total"`
	Errors    int64              `json:"errors"`
	StartedAt time.Time          `json:"startedAt"`
}

// Collector is safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	stats     map[EventType]*Stat
	startedAt time.Time
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{stats: make(map[EventType]*Stat), startedAt: time.Now()}
}

// RecordSuccess counts a successful event and its duration.
func (c *Collector) RecordSuccess(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stat(e.Type)
	s.Count++
	s.TotalDuration += e.Duration
	if e.Duration > s.MaxDuration {
		s.MaxDuration = e.Duration
	}
}

// RecordError counts a failure under its own type and under Error.
func (c *Collector) RecordError(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Type != "" && e.Type != Error {
		s := c.stat(e.Type)
		s.Errors++
		s.LastError = msg
	}
	s := c.stat(Error)
	s.Count++
	s.Errors++
	s.LastError = msg
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{Events: make(map[EventType]Stat, len(c.stats)), StartedAt: c.startedAt}
	for k, s := range c.stats {
		snap.Events[k] = *s
		if k == Error {
			snap.Errors += s.Count
			continue
		}
		snap.Total += s.Count
	}
	return snap
}

func (c *Collector) stat(t EventType) *Stat {
	s, ok := c.stats[t]
	if !ok {
		s = &Stat{}
		c.stats[t] = s
	}
	return s
}
