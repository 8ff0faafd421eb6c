package chatports

import "context"

// Tracer emits spans/events for observability.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error))
	Event(ctx context.Context, name string, attrs map[string]any)
}

// NoopTracer discards all spans and events.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(error) {}
}

func (NoopTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

var _ Tracer = NoopTracer{}
