// Package telemetry wraps OpenTelemetry tracing around the controller's
// per-file and per-block work. With no exporter configured, the global
// no-op tracer applies: spans cost nothing beyond a few interface calls,
// but the instrumentation points exist for a caller that wires a real
// TracerProvider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/paineta/nfdump/internal/pipeline"

// Tracer wraps the tracer used to instrument one anonymization run.
type Tracer struct {
	tracer trace.Tracer
}

// New builds a Tracer against the currently registered global
// TracerProvider (a no-op provider unless the caller has installed one via
// otel.SetTracerProvider).
func New() *Tracer {
	return &Tracer{tracer: otel.Tracer(instrumentationName)}
}

// WithExporter builds a Tracer against an explicit TracerProvider, letting a
// caller opt into real span export without touching the global provider.
func WithExporter(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(instrumentationName)}
}

// FileSpan starts a span covering one input file's processing and returns
// a function that ends it, recording the file's totals.
func (t *Tracer) FileSpan(path string) (end func(blocks, records, anonymized uint64)) {
	_, span := t.tracer.Start(context.Background(), "nfanon.file",
		trace.WithAttributes(attribute.String("nfanon.file", path)))
	return func(blocks, records, anonymized uint64) {
		span.SetAttributes(
			attribute.Int64("nfanon.blocks", int64(blocks)),
			attribute.Int64("nfanon.records", int64(records)),
			attribute.Int64("nfanon.anonymized", int64(anonymized)),
		)
		span.End()
	}
}

// BlockSpan records a single block's processing as a short-lived span.
func (t *Tracer) BlockSpan(path string, blockType uint16, numRecords uint32) {
	_, span := t.tracer.Start(context.Background(), "nfanon.block",
		trace.WithAttributes(
			attribute.String("nfanon.file", path),
			attribute.Int64("nfanon.block_type", int64(blockType)),
			attribute.Int64("nfanon.num_records", int64(numRecords)),
		))
	span.End()
}
