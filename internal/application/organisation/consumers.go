package organisation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const consumerService = "WorkflowConsumer"

// NamedHandler is a message handler with a stable name, used to scope
// idempotency keys per consumer
type NamedHandler interface {
	shared.MessageHandler
	Name() string
}

// Workflow drives extracts through their lifecycle in response to the
// integration messages their own events produce
type Workflow struct {
	repo    organisation.Repository
	risk    organisation.RiskDataService
	asic    organisation.AsicDataService
	retrier *Retrier
	metrics *telemetry.WorkflowMetrics
	logger  *zap.Logger
}

// NewWorkflow creates the workflow consumers' shared dependencies
func NewWorkflow(
	repo organisation.Repository,
	risk organisation.RiskDataService,
	asic organisation.AsicDataService,
	retrier *Retrier,
	metrics *telemetry.WorkflowMetrics,
	logger *zap.Logger,
) *Workflow {
	return &Workflow{
		repo:    repo,
		risk:    risk,
		asic:    asic,
		retrier: retrier,
		metrics: metrics,
		logger:  logger,
	}
}

// Handlers returns one handler per workflow step
func (w *Workflow) Handlers() []NamedHandler {
	return []NamedHandler{
		newStep(w, "risk-extract-fetcher", organisation.KindRiskExtractInitiated, w.fetchRiskReport),
		newStep(w, "risk-extract-completer", organisation.KindRiskExtractReceived, w.completeRiskExtract),
		newStep(w, "asic-order-creator", organisation.KindAsicExtractInitiated, w.createAsicOrder),
		newStep(w, "asic-order-fetcher", organisation.KindAsicExtractOrderCreated, w.fetchAsicOrder),
		newStep(w, "asic-order-completer", organisation.KindAsicExtractReceived, w.completeAsicOrder),
	}
}

// step adapts one typed workflow function to shared.MessageHandler
type step[T organisation.ExtractEvent] struct {
	w    *Workflow
	name string
	kind organisation.EventKind
	run  func(ctx context.Context, evt T) error
}

func newStep[T organisation.ExtractEvent](w *Workflow, name string, kind organisation.EventKind, run func(context.Context, T) error) *step[T] {
	return &step[T]{w: w, name: name, kind: kind, run: run}
}

func (s *step[T]) Name() string { return s.name }

func (s *step[T]) MessageKinds() []string { return []string{string(s.kind)} }

func (s *step[T]) Handle(ctx context.Context, msg shared.Message) error {
	meta := msg.Meta()
	evt, ok := shared.MessageData[T](msg)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T for %s", s.name, msg.Payload(), meta.Kind)
	}

	// events written by this step are caused by the message
	ctx = shared.WithEventMetadata(ctx, shared.EventMetadata{
		TenantID:      meta.TenantID,
		CausationID:   meta.ID.String(),
		CorrelationID: meta.CorrelationID,
		Headers:       meta.Headers,
	})
	ctx, span := telemetry.StartServiceSpan(ctx, consumerService, s.name,
		telemetry.WithAttribute(telemetry.SpanAttrMessageID, meta.ID),
		telemetry.WithAttribute(telemetry.SpanAttrMessageKind, meta.Kind),
		telemetry.WithAttribute(telemetry.SpanAttrEntityID, evt.AggregateID()),
		telemetry.WithAttribute(telemetry.SpanAttrExtractID, evt.TargetExtractID()))
	defer span.End()

	err := s.run(ctx, evt)
	if errors.Is(err, shared.ErrInvalidTransition) {
		// the extract was superseded or has moved on; nothing left to do
		s.w.logger.Warn("dropping stale workflow message",
			zap.String("consumer", s.name),
			zap.String("message_id", meta.ID.String()),
			zap.String("extract_id", evt.TargetExtractID().String()),
			zap.Error(err),
		)
		err = nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.w.logger.Error("workflow step failed",
			zap.String("consumer", s.name),
			zap.String("message_id", meta.ID.String()),
			zap.Error(err),
		)
	}
	s.w.metrics.RecordMessageConsumed(ctx, meta.Kind, err)
	return err
}

func (w *Workflow) fetchRiskReport(ctx context.Context, evt organisation.RiskExtractInitiated) error {
	pending, err := w.awaiting(ctx, evt.EntityID, evt.ExtractID, organisation.StatusReceived)
	if err != nil || !pending {
		return err
	}
	if err := w.risk.FetchRiskReport(ctx, evt.EntityID, evt.ExtractID); err != nil {
		return fmt.Errorf("fetch risk report: %w", err)
	}
	return w.mutate(ctx, "receive_risk_extract", evt.EntityID, func(e *organisation.Entity) error {
		return e.ReceiveRiskExtract(evt.ExtractID)
	})
}

func (w *Workflow) completeRiskExtract(ctx context.Context, evt organisation.RiskExtractReceived) error {
	return w.mutate(ctx, "complete_risk_extract", evt.EntityID, func(e *organisation.Entity) error {
		return e.CompleteRiskExtract(evt.ExtractID)
	})
}

func (w *Workflow) createAsicOrder(ctx context.Context, evt organisation.AsicExtractInitiated) error {
	pending, err := w.awaiting(ctx, evt.EntityID, evt.ExtractID, organisation.StatusOrderCreated)
	if err != nil || !pending {
		return err
	}
	orderID, err := w.asic.CreateOrder(ctx, evt.ExtractID, evt.ACN)
	if err != nil {
		return fmt.Errorf("create asic order: %w", err)
	}
	return w.mutate(ctx, "create_asic_extract_order", evt.EntityID, func(e *organisation.Entity) error {
		return e.CreateAsicExtractOrder(evt.ExtractID, orderID)
	})
}

func (w *Workflow) fetchAsicOrder(ctx context.Context, evt organisation.AsicExtractOrderCreated) error {
	pending, err := w.awaiting(ctx, evt.EntityID, evt.ExtractID, organisation.StatusReceived)
	if err != nil || !pending {
		return err
	}
	if err := w.asic.FetchOrder(ctx, evt.OrderID); err != nil {
		return fmt.Errorf("fetch asic order %d: %w", evt.OrderID, err)
	}
	return w.mutate(ctx, "receive_asic_extract", evt.EntityID, func(e *organisation.Entity) error {
		return e.ReceiveAsicExtract(evt.ExtractID)
	})
}

func (w *Workflow) completeAsicOrder(ctx context.Context, evt organisation.AsicExtractReceived) error {
	return w.mutate(ctx, "complete_asic_extract_order", evt.EntityID, func(e *organisation.Entity) error {
		return e.CompleteAsicExtractOrder(evt.ExtractID)
	})
}

// awaiting reports whether the extract still needs to reach target, so a
// redelivered message does not call the data service again
func (w *Workflow) awaiting(ctx context.Context, entityID, extractID uuid.UUID, target organisation.ExtractStatus) (bool, error) {
	e, err := w.repo.Find(ctx, entityID)
	if err != nil {
		return false, err
	}
	x, ok := e.Extract(extractID)
	if !ok {
		return false, shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("extract %s is no longer tracked", extractID))
	}
	return x.Status() < target, nil
}

func (w *Workflow) mutate(ctx context.Context, operation string, entityID uuid.UUID, fn organisation.Mutation) error {
	return w.retrier.Do(ctx, operation, func(ctx context.Context) error {
		_, err := w.repo.GetAndUpdate(ctx, entityID, fn)
		return err
	})
}
