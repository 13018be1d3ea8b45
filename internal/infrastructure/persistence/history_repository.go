package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/organisation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntityHistoryModel is one row of the entity history read model
type EntityHistoryModel struct {
	EventID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntityID    uuid.UUID `gorm:"type:uuid;not null;index:idx_entity_history_entity_seq,priority:1"`
	Sequence    int64     `gorm:"not null;index:idx_entity_history_entity_seq,priority:2"`
	Kind        string    `gorm:"type:varchar(128);not null"`
	Description string    `gorm:"type:text;not null"`
	OccurredAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntityHistoryModel) TableName() string {
	return "entity_history"
}

// GormHistoryRepository implements organisation.HistoryRepository
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new history repository
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Record inserts an entry, ignoring redelivered events
func (r *GormHistoryRepository) Record(ctx context.Context, entry organisation.HistoryEntry) error {
	model := EntityHistoryModel{
		EventID:     entry.EventID,
		EntityID:    entry.EntityID,
		Sequence:    entry.Sequence,
		Kind:        string(entry.Kind),
		Description: entry.Description,
		OccurredAt:  entry.OccurredAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// ListByEntity returns an entity's history in commit order
func (r *GormHistoryRepository) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]organisation.HistoryEntry, error) {
	var models []EntityHistoryModel
	if err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("sequence ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	entries := make([]organisation.HistoryEntry, len(models))
	for i, m := range models {
		entries[i] = organisation.HistoryEntry{
			EventID:     m.EventID,
			EntityID:    m.EntityID,
			Sequence:    m.Sequence,
			Kind:        organisation.EventKind(m.Kind),
			Description: m.Description,
			OccurredAt:  m.OccurredAt,
		}
	}
	return entries, nil
}

// Ensure GormHistoryRepository implements HistoryRepository
var _ organisation.HistoryRepository = (*GormHistoryRepository)(nil)
