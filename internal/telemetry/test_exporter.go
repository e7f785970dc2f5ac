package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/sdk/trace"
)

// SpanRecorder is an in-memory exporter used by tests to assert on spans.
type SpanRecorder struct {
	mu    sync.RWMutex
	spans []trace.ReadOnlySpan
}

func NewSpanRecorder() *SpanRecorder {
	return &SpanRecorder{}
}

// NewTestTracerProvider exports synchronously so spans are visible as soon as
// they end.
func NewTestTracerProvider(recorder *SpanRecorder) *trace.TracerProvider {
	return trace.NewTracerProvider(trace.WithSyncer(recorder))
}

func (r *SpanRecorder) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spans = append(r.spans, spans...)
	return nil
}

func (r *SpanRecorder) Shutdown(ctx context.Context) error {
	return nil
}

func (r *SpanRecorder) ByName(name string) []trace.ReadOnlySpan {
	return r.filter(func(s trace.ReadOnlySpan) bool { return s.Name() == name })
}

func (r *SpanRecorder) ByOperation(operation string) []trace.ReadOnlySpan {
	return r.filter(func(s trace.ReadOnlySpan) bool {
		for _, attr := range s.Attributes() {
			if attr.Key == "operation" && attr.Value.AsString() == operation {
				return true
			}
		}
		return false
	})
}

func (r *SpanRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spans = nil
}

func (r *SpanRecorder) filter(keep func(trace.ReadOnlySpan) bool) []trace.ReadOnlySpan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []trace.ReadOnlySpan
	for _, span := range r.spans {
		if keep(span) {
			result = append(result, span)
		}
	}
	return result
}
