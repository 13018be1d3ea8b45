package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs a global tracer provider backed by a span recorder
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)
	entityID := uuid.New()

	ctx, span := telemetry.StartSpan(context.Background(), "organisation.create_entity",
		telemetry.WithAttribute(telemetry.SpanAttrEntityID, entityID),
		telemetry.WithAttribute(telemetry.SpanAttrAttempt, 2),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	assert.NotEmpty(t, telemetry.GetSpanID(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "organisation.create_entity", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, entityID.String(), attrs[telemetry.SpanAttrEntityID].AsString())
	assert.Equal(t, int64(2), attrs[telemetry.SpanAttrAttempt].AsInt64())
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "projector", "batch")
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, "projector.batch", sr.Ended()[0].Name())
}

func TestSetAttributesAndRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span, "kind", "organisation.entity_created", "count", int64(3), 42, "ignored")
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(span, nil)
	span.End()

	ended := sr.Ended()[0]
	attrs := attrMap(ended.Attributes())
	assert.Equal(t, "organisation.entity_created", attrs["kind"].AsString())
	assert.Equal(t, int64(3), attrs["count"].AsInt64())
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "boom", ended.Status().Description)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
	assert.Empty(t, telemetry.GetSpanID(context.Background()))
}
