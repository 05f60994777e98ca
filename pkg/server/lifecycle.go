package server

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// Coordinator lifecycle states. Untyped so they convert to statekit.StateID
// without a cast.
const (
	StateCreated  = "created"
	StateRunning  = "running"
	StateDraining = "draining"
	StateStopped  = "stopped"
)

const (
	eventStart = "start"
	eventDrain = "drain"
	eventStop  = "stop"
)

type lifecycleContext struct{}

// lifecycle serializes access to the interpreter; statekit leaves that to us.
type lifecycle struct {
	mu          sync.Mutex
	interpreter *statekit.Interpreter[lifecycleContext]
}

func newLifecycle() (*lifecycle, error) {
	builder := statekit.NewMachine[lifecycleContext]("coordinator-lifecycle").
		WithInitial(statekit.StateID(StateCreated)).
		WithContext(lifecycleContext{})

	builder.State(StateCreated).
		On(eventStart).Target(StateRunning).
		On(eventDrain).Target(StateDraining).
		Done()

	builder.State(StateRunning).
		On(eventDrain).Target(StateDraining).
		Done()

	builder.State(StateDraining).
		On(eventStop).Target(StateStopped).
		Done()

	builder.State(StateStopped).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build lifecycle machine: %w", err)
	}
	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &lifecycle{interpreter: interpreter}, nil
}

// fire sends event and reports whether the state changed.
func (l *lifecycle) fire(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	before := l.interpreter.State().Value
	l.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	return l.interpreter.State().Value != before
}

func (l *lifecycle) current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return string(l.interpreter.State().Value)
}
