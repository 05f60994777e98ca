package server

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"
)

type memorySample struct {
	HeapAlloc uint64
	HeapSys   uint64
}

func (m memorySample) fraction() float64 {
	if m.HeapSys == 0 {
		return 0
	}
	return float64(m.HeapAlloc) / float64(m.HeapSys)
}

func readRuntimeMemory() memorySample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return memorySample{HeapAlloc: ms.HeapAlloc, HeapSys: ms.HeapSys}
}

const mb = 1 << 20

func (c *Coordinator) startMemoryMonitor() {
	c.mu.Lock()
	if c.memoryStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.memoryStop, c.memoryDone = stop, done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cfg.MemoryCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.checkMemory()
			case <-stop:
				return
			}
		}
	}()
}

func (c *Coordinator) stopMemoryMonitor() {
	c.mu.Lock()
	stop, done := c.memoryStop, c.memoryDone
	c.memoryStop, c.memoryDone = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Coordinator) overThreshold(s memorySample) bool {
	return s.HeapAlloc > c.cfg.MemoryThreshold || s.fraction() > c.cfg.MemoryHeapFraction
}

// checkMemory is advisory: under pressure it asks the handler to drop its
// caches and forces a collection, logging if pressure persists.
func (c *Coordinator) checkMemory() {
	sample := c.readMemory()
	if sample.fraction() > 0.5 {
		c.logger.Debug("memory usage",
			"heap_alloc_mb", sample.HeapAlloc/mb,
			"heap_sys_mb", sample.HeapSys/mb,
		)
	}
	if !c.overThreshold(sample) {
		return
	}

	c.logger.Warn("high memory usage detected, triggering cleanup",
		"heap_alloc_mb", sample.HeapAlloc/mb,
		"heap_sys_mb", sample.HeapSys/mb,
		"threshold_mb", c.cfg.MemoryThreshold/mb,
	)
	if cc, ok := c.handler.(CacheClearer); ok {
		if err := cc.ClearCaches(context.Background()); err != nil {
			c.logger.Warn("cache clear failed", "error", err)
		}
	}
	runtime.GC()
	debug.FreeOSMemory()

	after := c.readMemory()
	if c.overThreshold(after) {
		c.logger.Warn("memory still high after cleanup, may need restart",
			"heap_alloc_mb", after.HeapAlloc/mb,
			"threshold_mb", c.cfg.MemoryThreshold/mb,
		)
	}
}
