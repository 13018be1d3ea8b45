package organisation

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const serviceName = "OrganisationService"

// Service handles organisation commands and queries
type Service struct {
	repo    organisation.Repository
	history organisation.HistoryRepository
	retrier *Retrier
	metrics *telemetry.WorkflowMetrics
	logger  *zap.Logger
}

// NewService creates a new organisation Service; metrics may be nil
func NewService(
	repo organisation.Repository,
	history organisation.HistoryRepository,
	retrier *Retrier,
	metrics *telemetry.WorkflowMetrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:    repo,
		history: history,
		retrier: retrier,
		metrics: metrics,
		logger:  logger,
	}
}

// CreateEntity starts a new entity stream and returns its id
func (s *Service) CreateEntity(ctx context.Context) (*EntityDTO, error) {
	id := uuid.New()
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "CreateEntity",
		telemetry.WithAttribute(telemetry.SpanAttrEntityID, id))
	defer span.End()

	e, err := organisation.Initialise(organisation.EntityCreated{EntityID: id})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Add(ctx, e); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordEntityCreated(ctx, shared.EventMetadataFromContext(ctx).TenantID)
	s.logger.Info("entity created", zap.String("entity_id", id.String()))
	return ToEntityDTO(e), nil
}

// GetEntity returns the current state of an entity
func (s *Service) GetEntity(ctx context.Context, id uuid.UUID) (*EntityDTO, error) {
	e, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToEntityDTO(e), nil
}

// InitiateRiskExtract opens a new risk extract on an entity and returns its id.
// An unfinished risk extract blocks a new one.
func (s *Service) InitiateRiskExtract(ctx context.Context, entityID uuid.UUID) (uuid.UUID, error) {
	// generated once so a retried attempt initiates the same extract
	extractID := uuid.New()
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "InitiateRiskExtract",
		telemetry.WithAttribute(telemetry.SpanAttrEntityID, entityID),
		telemetry.WithAttribute(telemetry.SpanAttrExtractID, extractID))
	defer span.End()

	err := s.retrier.Do(ctx, "initiate_risk_extract", func(ctx context.Context) error {
		_, err := s.repo.GetAndUpdate(ctx, entityID, func(e *organisation.Entity) error {
			return e.InitiateRiskExtract(extractID)
		})
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return uuid.Nil, err
	}
	s.metrics.RecordExtractInitiated(ctx, string(organisation.ExtractTypeRisk))
	s.logger.Info("risk extract initiated",
		zap.String("entity_id", entityID.String()),
		zap.String("extract_id", extractID.String()),
	)
	return extractID, nil
}

// InitiateAsicExtract opens a new ASIC extract for the given ACN and returns its id
func (s *Service) InitiateAsicExtract(ctx context.Context, entityID uuid.UUID, acn string) (uuid.UUID, error) {
	acn = strings.TrimSpace(acn)
	if acn == "" {
		return uuid.Nil, shared.NewDomainError(shared.CodeInvalidInput, "acn is required")
	}
	extractID := uuid.New()
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "InitiateAsicExtract",
		telemetry.WithAttribute(telemetry.SpanAttrEntityID, entityID),
		telemetry.WithAttribute(telemetry.SpanAttrExtractID, extractID))
	defer span.End()

	err := s.retrier.Do(ctx, "initiate_asic_extract", func(ctx context.Context) error {
		_, err := s.repo.GetAndUpdate(ctx, entityID, func(e *organisation.Entity) error {
			return e.InitiateAsicExtract(extractID, acn)
		})
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return uuid.Nil, err
	}
	s.metrics.RecordExtractInitiated(ctx, string(organisation.ExtractTypeAsic))
	s.logger.Info("asic extract initiated",
		zap.String("entity_id", entityID.String()),
		zap.String("extract_id", extractID.String()),
	)
	return extractID, nil
}

// History returns the entity's audit trail in commit order. The read model
// lags the event log, so a fresh entity may have an empty history.
func (s *Service) History(ctx context.Context, entityID uuid.UUID) ([]HistoryEntryDTO, error) {
	if _, err := s.repo.Find(ctx, entityID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "entity not found")
		}
		return nil, err
	}
	entries, err := s.history.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return ToHistoryDTOs(entries), nil
}
