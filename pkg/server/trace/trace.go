// Package trace keeps open request spans keyed by request id and mirrors
// them as OpenTelemetry spans.
package trace

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans created by this package.
const InstrumentationName = "github.com/felixgeelhaar/waypoint/pkg/server"

// Event describes one request span.
type Event struct {
	RequestID string    `json:"requestId"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
}

// Duration is zero while the span is open.
func (e Event) Duration() time.Duration {
	if e.EndedAt.IsZero() {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}

type openSpan struct {
	event Event
	span  oteltrace.Span
}

// Tracer is safe for concurrent use. A span that is never ended stays in
// the open set until the tracer is reset.
type Tracer struct {
	mu     sync.Mutex
	open   map[string]openSpan
	tracer oteltrace.Tracer
	now    func() time.Time
}

// Option customizes a Tracer.
type Option func(*Tracer)

// WithTracerProvider exports spans through tp instead of the global provider.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(t *Tracer) {
		if tp != nil {
			t.tracer = tp.Tracer(InstrumentationName)
		}
	}
}

// New returns a tracer using the global TracerProvider by default.
func New(opts ...Option) *Tracer {
	t := &Tracer{
		open:   make(map[string]openSpan),
		tracer: otel.Tracer(InstrumentationName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens a span for requestID and returns ctx carrying it.
func (t *Tracer) Start(ctx context.Context, requestID, eventType, subject string) context.Context {
	attrs := []attribute.KeyValue{
		attribute.String("request.id", requestID),
		attribute.String("request.type", eventType),
	}
	if subject != "" {
		attrs = append(attrs, attribute.String("request.subject", subject))
	}
	ctx, span := t.tracer.Start(ctx, eventType, oteltrace.WithAttributes(attrs...))

	t.mu.Lock()
	t.open[requestID] = openSpan{
		event: Event{RequestID: requestID, Type: eventType, Subject: subject, StartedAt: t.now()},
		span:  span,
	}
	t.mu.Unlock()
	return ctx
}

// End closes the span for requestID, marking it failed when err is non-nil.
// Ending an unknown id reports false.
func (t *Tracer) End(requestID string, err error) (Event, bool) {
	t.mu.Lock()
	s, ok := t.open[requestID]
	delete(t.open, requestID)
	t.mu.Unlock()
	if !ok {
		return Event{}, false
	}

	s.event.EndedAt = t.now()
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
	return s.event, true
}

// Open returns the number of spans not yet ended.
func (t *Tracer) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// Reset ends every open span and empties the set.
func (t *Tracer) Reset() {
	t.mu.Lock()
	open := t.open
	t.open = make(map[string]openSpan)
	t.mu.Unlock()
	for _, s := range open {
		s.span.End()
	}
}
