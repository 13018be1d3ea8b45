package event

import (
	"context"
	"fmt"
	"slices"

	"github.com/orgextract/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ProjectionService reports and adjusts projector checkpoints
type ProjectionService struct {
	log         shared.EventLog
	checkpoints shared.CheckpointStore
	names       []string
	logger      *zap.Logger
}

// NewProjectionService creates a new projection service for the named projectors
func NewProjectionService(
	log shared.EventLog,
	checkpoints shared.CheckpointStore,
	names []string,
	logger *zap.Logger,
) *ProjectionService {
	return &ProjectionService{
		log:         log,
		checkpoints: checkpoints,
		names:       slices.Clone(names),
		logger:      logger,
	}
}

// ProjectionStatusDTO describes how far a projector has got through the commit log
type ProjectionStatusDTO struct {
	Name          string `json:"name"`
	Checkpoint    int64  `json:"checkpoint"`
	HighWaterMark int64  `json:"high_water_mark"`
	Lag           int64  `json:"lag"`
	Initialised   bool   `json:"initialised"`
}

// RewindRequest moves a checkpoint back so the range after it is published again
type RewindRequest struct {
	Position *int64 `json:"position" binding:"required,min=0"`
}

// List returns the status of every known projector
func (s *ProjectionService) List(ctx context.Context) ([]ProjectionStatusDTO, error) {
	hwm, err := s.log.HighWaterMark(ctx)
	if err != nil {
		return nil, fmt.Errorf("read high water mark: %w", err)
	}
	out := make([]ProjectionStatusDTO, 0, len(s.names))
	for _, name := range s.names {
		status, err := s.status(ctx, name, hwm)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

// Get returns the status of one projector
func (s *ProjectionService) Get(ctx context.Context, name string) (*ProjectionStatusDTO, error) {
	if !slices.Contains(s.names, name) {
		return nil, shared.NewDomainError(shared.CodeNotFound, "projection not found")
	}
	hwm, err := s.log.HighWaterMark(ctx)
	if err != nil {
		return nil, fmt.Errorf("read high water mark: %w", err)
	}
	status, err := s.status(ctx, name, hwm)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Rewind moves a projector's checkpoint back to position. Events after it
// are published again, so consumers must tolerate redelivery. Moving a
// checkpoint forward would skip events and is rejected.
func (s *ProjectionService) Rewind(ctx context.Context, name string, position int64) (*ProjectionStatusDTO, error) {
	current, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if position < 0 || position > current.Checkpoint {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("position must be between 0 and the current checkpoint %d", current.Checkpoint))
	}
	if err := s.checkpoints.Save(ctx, name, position); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	s.logger.Warn("projection checkpoint rewound",
		zap.String("projection", name),
		zap.Int64("from", current.Checkpoint),
		zap.Int64("to", position),
	)
	return s.Get(ctx, name)
}

func (s *ProjectionService) status(ctx context.Context, name string, hwm int64) (ProjectionStatusDTO, error) {
	position, ok, err := s.checkpoints.Load(ctx, name)
	if err != nil {
		return ProjectionStatusDTO{}, fmt.Errorf("load checkpoint %s: %w", name, err)
	}
	return ProjectionStatusDTO{
		Name:          name,
		Checkpoint:    position,
		HighWaterMark: hwm,
		Lag:           max(hwm-position, 0),
		Initialised:   ok,
	}, nil
}
