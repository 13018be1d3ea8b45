package eventstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orgextract/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCheckpointStore persists projector positions in projection_checkpoints
type GormCheckpointStore struct {
	db *gorm.DB
}

// NewGormCheckpointStore creates a new GORM checkpoint store
func NewGormCheckpointStore(db *gorm.DB) *GormCheckpointStore {
	return &GormCheckpointStore{db: db}
}

// Load returns the stored position for name
func (s *GormCheckpointStore) Load(ctx context.Context, name string) (int64, bool, error) {
	var model CheckpointModel
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load checkpoint %s: %w", name, err)
	}
	return model.Position, true, nil
}

// Save upserts the position for name
func (s *GormCheckpointStore) Save(ctx context.Context, name string, position int64) error {
	model := CheckpointModel{
		Name:      name,
		Position:  position,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", name, err)
	}
	return nil
}

// InMemoryCheckpointStore keeps projector positions in memory
type InMemoryCheckpointStore struct {
	mu        sync.RWMutex
	positions map[string]int64
}

// NewInMemoryCheckpointStore creates an empty in-memory checkpoint store
func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{positions: make(map[string]int64)}
}

// Load returns the stored position for name
func (s *InMemoryCheckpointStore) Load(ctx context.Context, name string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[name]
	return pos, ok, nil
}

// Save records the position for name
func (s *InMemoryCheckpointStore) Save(ctx context.Context, name string, position int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[name] = position
	return nil
}

var (
	_ shared.CheckpointStore = (*GormCheckpointStore)(nil)
	_ shared.CheckpointStore = (*InMemoryCheckpointStore)(nil)
)
