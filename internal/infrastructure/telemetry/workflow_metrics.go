package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor is given no meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// WorkflowMetrics records organisation workflow and projector activity.
// A nil *WorkflowMetrics records nothing.
type WorkflowMetrics struct {
	entitiesCreated   *Counter
	extractsInitiated *Counter
	conflictRetries   *Counter
	messagesPublished *Counter
	publishFailures   *Counter
	messagesConsumed  *Counter
	batchDuration     *Histogram
	projectorLag      *Gauge
}

// NewWorkflowMetrics creates the workflow instruments on meter.
func NewWorkflowMetrics(meter metric.Meter) (*WorkflowMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &WorkflowMetrics{}
	var err error
	counters := []struct {
		dst                     **Counter
		name, description, unit string
	}{
		{&m.entitiesCreated, "org_entities_created_total", "Total number of organisation entities created", "{entities}"},
		{&m.extractsInitiated, "org_extracts_initiated_total", "Total number of extracts initiated", "{extracts}"},
		{&m.conflictRetries, "org_concurrency_retries_total", "Total number of retries after a concurrency conflict", "{retries}"},
		{&m.messagesPublished, "org_messages_published_total", "Total number of integration messages published", "{messages}"},
		{&m.publishFailures, "org_publish_failures_total", "Total number of failed projector publishes", "{failures}"},
		{&m.messagesConsumed, "org_messages_consumed_total", "Total number of integration messages consumed", "{messages}"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.description, c.unit); err != nil {
			return nil, err
		}
	}

	m.batchDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "org_projector_batch_duration_seconds",
		Description: "Time taken to publish one projector batch",
		Unit:        "s",
		Boundaries:  BatchDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.projectorLag, err = NewGauge(meter, "org_projector_lag", "Committed events not yet published", "{events}")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordEntityCreated counts a created entity.
func (m *WorkflowMetrics) RecordEntityCreated(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.entitiesCreated.Inc(ctx, AttrTenantID.String(tenantID))
}

// RecordExtractInitiated counts an initiated extract by type.
func (m *WorkflowMetrics) RecordExtractInitiated(ctx context.Context, extractType string) {
	if m == nil {
		return
	}
	m.extractsInitiated.Inc(ctx, AttrExtractType.String(extractType))
}

// RecordConflictRetry counts a retry of operation after a concurrency conflict.
func (m *WorkflowMetrics) RecordConflictRetry(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.conflictRetries.Inc(ctx, AttrOperation.String(operation))
}

// RecordBatch records a published projector batch.
func (m *WorkflowMetrics) RecordBatch(ctx context.Context, projector string, published int, d time.Duration) {
	if m == nil {
		return
	}
	m.messagesPublished.Add(ctx, int64(published), AttrProjector.String(projector))
	m.batchDuration.RecordDuration(ctx, d, AttrProjector.String(projector))
}

// RecordPublishFailure counts a batch abandoned because the transport failed.
func (m *WorkflowMetrics) RecordPublishFailure(ctx context.Context, projector string) {
	if m == nil {
		return
	}
	m.publishFailures.Inc(ctx, AttrProjector.String(projector))
}

// RecordProjectorLag records how far the projector trails the commit log.
func (m *WorkflowMetrics) RecordProjectorLag(ctx context.Context, projector string, lag int64) {
	if m == nil {
		return
	}
	m.projectorLag.Record(ctx, lag, AttrProjector.String(projector))
}

// RecordMessageConsumed counts a consumed message by kind and outcome.
func (m *WorkflowMetrics) RecordMessageConsumed(ctx context.Context, kind string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.messagesConsumed.Inc(ctx, AttrMessageKind.String(kind), AttrOutcome.String(outcome))
}
