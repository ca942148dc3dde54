package otelbridge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/GriffinCanCode/apmtrace/internal/shared/id"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

// InstrumentationName identifies spans created by the exporter.
const InstrumentationName = "github.com/GriffinCanCode/apmtrace/internal/integrations/otelbridge"

// Exporter implements tracing.TraceSampler on top of a trace.TracerProvider.
type Exporter struct {
	tracer trace.Tracer
}

var _ tracing.TraceSampler = (*Exporter)(nil)

// New creates an exporter emitting spans through tp.
func New(tp trace.TracerProvider) *Exporter {
	return &Exporter{tracer: tp.Tracer(InstrumentationName)}
}

// TransactionFinished emits one root span for the transaction and one child
// span per finished segment, keeping the recorded timestamps.
func (e *Exporter) TransactionFinished(tr *tracing.Trace) {
	kind := trace.SpanKindInternal
	if tr.IsWeb {
		kind = trace.SpanKindServer
	}

	attrs := []attribute.KeyValue{
		attribute.String("apm.transaction.guid", tr.GUID),
		attribute.Bool("apm.transaction.web", tr.IsWeb),
		attribute.Int("apm.integrity_errors", tr.IntegrityErrors),
	}
	if tr.CrossAppCaller {
		attrs = append(attrs, attribute.Bool("apm.cat.caller", true))
	}
	if tr.Inbound != nil {
		attrs = append(attrs,
			attribute.String("apm.cat.referring_cross_process_id", tr.Inbound.CrossProcessID),
			attribute.String("apm.cat.referring_transaction_guid", tr.Inbound.ReferringGUID),
			attribute.String("apm.cat.trip_id", tr.Inbound.ReferringTripID),
		)
	}
	if tr.Synthetics != "" {
		attrs = append(attrs, attribute.Bool("apm.synthetics", true))
	}

	rootCtx, root := e.tracer.Start(context.Background(), tr.Name,
		trace.WithTimestamp(tr.Start),
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)

	contexts := make(map[id.SegmentID]context.Context, len(tr.Segments))
	for _, seg := range tr.Segments {
		parent := rootCtx
		if pc, ok := contexts[seg.ParentID]; ok {
			parent = pc
		}
		ctx, span := e.tracer.Start(parent, seg.Name,
			trace.WithTimestamp(seg.Start),
			trace.WithSpanKind(segmentKind(seg.Kind)),
			trace.WithAttributes(segmentAttributes(seg)...),
		)
		span.End(trace.WithTimestamp(seg.End))
		contexts[seg.ID] = ctx
	}

	root.End(trace.WithTimestamp(tr.End))
}

func segmentKind(k tracing.Kind) trace.SpanKind {
	switch k {
	case tracing.KindDatastore, tracing.KindExternal:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

func segmentAttributes(seg tracing.FinishedSegment) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("apm.segment.kind", seg.Kind.String()),
		attribute.Int64("apm.segment.exclusive_us", seg.Exclusive.Microseconds()),
	}
	if seg.Forced {
		attrs = append(attrs, attribute.Bool("apm.segment.forced", true))
	}
	if seg.SQL != nil {
		attrs = append(attrs, attribute.String("db.statement", seg.SQL.SQL))
	}
	for k, v := range seg.Params {
		attrs = append(attrs, param("apm.param."+k, v))
	}
	return attrs
}

func param(key string, v any) attribute.KeyValue {
	switch v := v.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
