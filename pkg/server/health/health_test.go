package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(cfg Config) (*Monitor, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(cfg, WithClock(clock.Now), WithLogger(quietLogger())), clock
}

func TestMonitor_StorageFailuresTriggerShutdownOnce(t *testing.T) {
	m, _ := newTestMonitor(Config{FailureThreshold: 3, ShutdownGracePeriod: 10 * time.Millisecond})
	var fired atomic.Int32
	done := make(chan struct{}, 4)
	m.SetOnShutdown(func() {
		fired.Add(1)
		done <- struct{}{}
	})

	bad := ComponentStatus{StorageErr: errors.New("disk I/O error")}
	for i := 0; i < 5; i++ {
		m.Check(bad)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback did not fire")
	}
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("callback fired %d times, want 1", fired.Load())
	}
	if st := m.Status(); !st.ShutdownTriggered || st.ConsecutiveFailures != 5 {
		t.Errorf("status = %+v", st)
	}
}

func TestMonitor_HealthyCheckResetsFailures(t *testing.T) {
	m, _ := newTestMonitor(Config{FailureThreshold: 3})
	m.SetOnShutdown(func() { t.Error("shutdown should not fire") })

	bad := ComponentStatus{StorageErr: errors.New("locked")}
	m.Check(bad)
	m.Check(bad)
	m.Check(ComponentStatus{})
	m.Check(bad)
	m.Check(bad)

	if got := m.Status().ConsecutiveFailures; got != 2 {
		t.Errorf("failures = %d, want 2", got)
	}
}

func TestMonitor_ClientInactivity(t *testing.T) {
	m, clock := newTestMonitor(Config{FailureThreshold: 10, ClientPingTimeout: time.Minute})

	clock.Advance(30 * time.Second)
	m.Check(ComponentStatus{})
	if m.Status().ConsecutiveFailures != 0 {
		t.Fatal("client within timeout counted as failure")
	}

	clock.Advance(31 * time.Second)
	m.Check(ComponentStatus{})
	if m.Status().ConsecutiveFailures != 1 {
		t.Fatal("silent client not counted as failure")
	}

	m.RecordClientPing()
	m.Check(ComponentStatus{})
	if m.Status().ConsecutiveFailures != 0 {
		t.Error("ping did not reset the failure count")
	}
}

func TestMonitor_CancelPendingShutdown(t *testing.T) {
	m, _ := newTestMonitor(Config{FailureThreshold: 1, ShutdownGracePeriod: time.Hour})
	m.SetOnShutdown(func() { t.Error("cancelled shutdown fired") })

	m.Check(ComponentStatus{StorageErr: errors.New("boom")})
	if !m.CancelPendingShutdown() {
		t.Error("expected a pending timer to be stopped")
	}
}

func TestMonitor_StartStop(t *testing.T) {
	m := New(Config{CheckInterval: 5 * time.Millisecond, FailureThreshold: 100}, WithLogger(quietLogger()))
	var probes atomic.Int32
	m.Start(context.Background(), func(context.Context) ComponentStatus {
		probes.Add(1)
		return ComponentStatus{StorageErr: errors.New("x")}
	})

	deadline := time.Now().Add(time.Second)
	for probes.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	after := probes.Load()
	if after < 2 {
		t.Fatalf("probe ran %d times", after)
	}
	time.Sleep(20 * time.Millisecond)
	if probes.Load() != after {
		t.Error("probe ran after Stop")
	}

	m.Stop()
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.CheckInterval != 300*time.Second || c.FailureThreshold != 5 || c.ClientPingTimeout != 300*time.Second || c.ShutdownGracePeriod != 10*time.Second {
		t.Errorf("defaults = %+v", c)
	}
}
