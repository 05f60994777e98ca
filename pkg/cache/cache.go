// Package cache holds short-lived copies of tasks in front of the store.
// The store stays the system of record; any entry may be dropped at any time.
package cache

import (
	"runtime"
	"sync"
	"time"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
)

// DefaultTTL is how long an entry is served before a read falls through.
const DefaultTTL = 5 * time.Minute

// Transition records a status change observed between two cached writes.
type Transition struct {
	From      task.Status `json:"from"`
	To        task.Status `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
}

// StatusMetadata is attached to an entry when its status changed on write.
type StatusMetadata struct {
	LastTransition *Transition `json:"lastTransition,omitempty"`
}

// Entry is a cached task copy plus its insertion time.
type Entry struct {
	Task           task.Task
	InsertedAt     time.Time
	StatusMetadata StatusMetadata
}

// TaskCache maps task paths to deep copies of their last known state.
type TaskCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
	memory  func() uint64
}

// Option customizes a TaskCache.
type Option func(*TaskCache)

// WithTTL overrides the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *TaskCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *TaskCache) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns an empty cache.
func New(opts ...Option) *TaskCache {
	c := &TaskCache{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		memory:  heapInUse,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores a deep copy of t. If the previous entry held a different
// status, the new entry records the transition.
func (c *TaskCache) Set(t task.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(t)
}

func (c *TaskCache) setLocked(t task.Task) {
	now := c.now()
	entry := Entry{Task: t.Clone(), InsertedAt: now}
	if prev, ok := c.entries[t.Path]; ok && prev.Task.Status != t.Status {
		entry.StatusMetadata.LastTransition = &Transition{
			From:      prev.Task.Status,
			To:        t.Status,
			Timestamp: now,
		}
	}
	c.entries[t.Path] = entry
}

// Get returns a copy of the cached task while it is fresh. A stale entry
// is evicted and reported as a miss.
func (c *TaskCache) Get(path string) (task.Task, bool) {
	entry, ok := c.Entry(path)
	if !ok {
		return task.Task{}, false
	}
	return entry.Task, true
}

// Entry returns a copy of the fresh entry for path, transition record included.
func (c *TaskCache) Entry(path string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return Entry{}, false
	}
	if c.staleLocked(entry) {
		delete(c.entries, path)
		return Entry{}, false
	}
	entry.Task = entry.Task.Clone()
	if tr := entry.StatusMetadata.LastTransition; tr != nil {
		copied := *tr
		entry.StatusMetadata.LastTransition = &copied
	}
	return entry, true
}

func (c *TaskCache) staleLocked(e Entry) bool {
	return c.now().Sub(e.InsertedAt) >= c.ttl
}

// UpdateStatus patches the status of a cached task in place, bumping its
// updated time and version. It does nothing when path is not cached, and
// evicts the entry instead when it is stale.
func (c *TaskCache) UpdateStatus(path string, status task.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return
	}
	if c.staleLocked(entry) {
		delete(c.entries, path)
		return
	}
	next := entry.Task.Clone()
	next.Status = status
	next.Metadata.Updated = c.now()
	next.Metadata.Version++
	c.setLocked(next)
}

// Delete drops path from the cache.
func (c *TaskCache) Delete(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		delete(c.entries, p)
	}
}

// Clear drops every entry.
func (c *TaskCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len returns the number of entries, stale ones included.
func (c *TaskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Metrics reports the entry count, the share of entries still fresh, and
// the process heap in use. The figures are advisory.
func (c *TaskCache) Metrics() domain.CacheStats {
	c.mu.Lock()
	now := c.now()
	total := len(c.entries)
	fresh := 0
	for _, e := range c.entries {
		if now.Sub(e.InsertedAt) < c.ttl {
			fresh++
		}
	}
	c.mu.Unlock()

	stats := domain.CacheStats{EntryCount: total, MemoryUsage: c.memory()}
	if total > 0 {
		stats.HitRate = float64(fresh) / float64(total)
	}
	return stats
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}
