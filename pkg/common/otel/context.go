package otel

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// zeroTraceID is returned when no span is recording on the context, so log
// records always carry a fixed-width trace id field.
const zeroTraceID = "00000000000000000000000000000000"

// GetTraceID returns the trace id of the span on ctx, or the zero id when
// the context carries no valid span.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return zeroTraceID
	}
	return sc.TraceID().String()
}
