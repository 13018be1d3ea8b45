package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ProjectorConfig holds configuration for the change projector
type ProjectorConfig struct {
	// Name keys the projector's checkpoint
	Name string
	// BatchSize is the maximum number of events published per batch
	BatchSize int
	// PollInterval is how often the commit log is checked for new events
	PollInterval time.Duration
	// StartFromPresent skips history on first start: a missing checkpoint is
	// initialised to the current high-water mark
	StartFromPresent bool
}

// DefaultProjectorConfig returns default configuration
func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{
		Name:         "integration-messages",
		BatchSize:    10,
		PollInterval: time.Second,
	}
}

// Projector follows the event log's global commit order and publishes one
// integration message per committed event. The checkpoint only advances
// after every event of a batch was published, so delivery is at-least-once.
type Projector struct {
	log         shared.EventLog
	checkpoints shared.CheckpointStore
	registry    *MessageRegistry
	publisher   shared.MessagePublisher
	config      ProjectorConfig
	logger      *zap.Logger
	metrics     *telemetry.WorkflowMetrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ProjectorOption is a functional option for Projector
type ProjectorOption func(*Projector)

// WithProjectorMetrics records batch metrics
func WithProjectorMetrics(metrics *telemetry.WorkflowMetrics) ProjectorOption {
	return func(p *Projector) {
		p.metrics = metrics
	}
}

// NewProjector creates a new change projector
func NewProjector(
	log shared.EventLog,
	checkpoints shared.CheckpointStore,
	registry *MessageRegistry,
	publisher shared.MessagePublisher,
	config ProjectorConfig,
	logger *zap.Logger,
	opts ...ProjectorOption,
) *Projector {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultProjectorConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultProjectorConfig().PollInterval
	}
	p := &Projector{
		log:         log,
		checkpoints: checkpoints,
		registry:    registry,
		publisher:   publisher,
		config:      config,
		logger:      logger.With(zap.String("projector", config.Name)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start initialises the checkpoint and starts the background poll loop
func (p *Projector) Start(ctx context.Context) error {
	if err := p.initCheckpoint(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	p.logger.Info("projector started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the projector, waiting for the in-flight batch
func (p *Projector) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("projector stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Projector) initCheckpoint(ctx context.Context) error {
	if !p.config.StartFromPresent {
		return nil
	}
	_, ok, err := p.checkpoints.Load(ctx, p.config.Name)
	if err != nil || ok {
		return err
	}
	hwm, err := p.log.HighWaterMark(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("initialising checkpoint at high-water mark", zap.Int64("position", hwm))
	return p.checkpoints.Save(ctx, p.config.Name, hwm)
}

func (p *Projector) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Drain(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("projector batch failed, retrying on next poll", zap.Error(err))
			}
		}
	}
}

// Drain publishes batches until the projector has caught up with the
// commit log or a batch fails. It returns the number of events published.
func (p *Projector) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := p.ProcessBatch(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

// ProcessBatch publishes the next range of at most BatchSize events after
// the checkpoint and then advances the checkpoint to the range's ceiling.
// On any failure the checkpoint is left untouched so the range is retried.
func (p *Projector) ProcessBatch(ctx context.Context) (int, error) {
	start := time.Now()

	floor, _, err := p.checkpoints.Load(ctx, p.config.Name)
	if err != nil {
		return 0, err
	}
	hwm, err := p.log.HighWaterMark(ctx)
	if err != nil {
		return 0, err
	}
	if hwm <= floor {
		p.metrics.RecordProjectorLag(ctx, p.config.Name, 0)
		return 0, nil
	}
	ceiling := min(hwm, floor+int64(p.config.BatchSize))

	ctx, span := telemetry.StartServiceSpan(ctx, "projector", "batch",
		telemetry.WithAttribute(telemetry.SpanAttrFloor, floor),
		telemetry.WithAttribute(telemetry.SpanAttrCeiling, ceiling),
	)
	defer span.End()

	events, err := p.log.ReadCommitRange(ctx, floor, ceiling)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	// Build every message first: an unknown kind halts the batch before
	// anything is published.
	msgs := make([]shared.Message, 0, len(events))
	for _, evt := range events {
		msg, err := p.registry.FromCommitted(evt)
		if err != nil {
			telemetry.RecordError(span, err)
			return 0, fmt.Errorf("event %s at sequence %d: %w", evt.ID, evt.Sequence, err)
		}
		msgs = append(msgs, msg)
	}

	for _, msg := range msgs {
		if err := p.publisher.Publish(ctx, msg); err != nil {
			p.metrics.RecordPublishFailure(ctx, p.config.Name)
			telemetry.RecordError(span, err)
			return 0, fmt.Errorf("publish sequence %d: %w", msg.Meta().Sequence, err)
		}
	}

	if err := p.checkpoints.Save(ctx, p.config.Name, ceiling); err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to advance checkpoint to %d: %w", ceiling, err)
	}

	p.metrics.RecordBatch(ctx, p.config.Name, len(msgs), time.Since(start))
	p.metrics.RecordProjectorLag(ctx, p.config.Name, hwm-ceiling)
	p.logger.Debug("batch published",
		zap.Int64("floor", floor),
		zap.Int64("ceiling", ceiling),
		zap.Int("events", len(msgs)),
	)
	return len(msgs), nil
}
