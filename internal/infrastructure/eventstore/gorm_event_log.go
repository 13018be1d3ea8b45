package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/orgextract/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// commitLogLockKey is the advisory lock serialising appends on PostgreSQL so
// that sequence order equals commit order
const commitLogLockKey int64 = 0x6f72675f6c6f67

// GormEventLog implements shared.EventLog on a relational database
type GormEventLog struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewGormEventLog creates a new GORM backed event log
func NewGormEventLog(db *gorm.DB, logger *zap.Logger) *GormEventLog {
	return &GormEventLog{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Append commits events atomically after expectedVersion
func (l *GormEventLog) Append(ctx context.Context, streamID uuid.UUID, expectedVersion int64, events []shared.PendingEvent) (int64, error) {
	if len(events) == 0 {
		return expectedVersion, shared.NewDomainError(shared.CodeInvalidInput, "nothing to append")
	}
	if expectedVersion < 0 {
		return expectedVersion, shared.NewDomainError(shared.CodeInvalidInput, "expected version cannot be negative")
	}

	md := shared.EventMetadataFromContext(ctx)
	headers, err := encodeHeaders(md.Headers)
	if err != nil {
		return expectedVersion, fmt.Errorf("failed to encode headers: %w", err)
	}

	newVersion := expectedVersion + int64(len(events))
	now := l.now()

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.lockCommitLog(tx); err != nil {
			return err
		}

		if expectedVersion == shared.ExpectNoStream {
			if err := l.createStream(tx, streamID, newVersion, now); err != nil {
				return err
			}
		} else if err := l.advanceStream(tx, streamID, expectedVersion, newVersion, now); err != nil {
			return err
		}

		var maxSeq int64
		if err := tx.Model(&EventModel{}).Select("COALESCE(MAX(sequence), 0)").Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("failed to read high water mark: %w", err)
		}

		rows := make([]EventModel, len(events))
		for i, evt := range events {
			id := evt.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			rows[i] = EventModel{
				ID:            id,
				StreamID:      streamID,
				Version:       expectedVersion + int64(i) + 1,
				Sequence:      maxSeq + int64(i) + 1,
				Kind:          evt.Kind,
				Data:          []byte(evt.Data),
				Headers:       headers,
				TenantID:      md.TenantID,
				CausationID:   md.CausationID,
				CorrelationID: md.CorrelationID,
				CommittedAt:   now,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrConcurrencyConflict
			}
			return fmt.Errorf("failed to insert events: %w", err)
		}
		return nil
	})
	if err != nil {
		return expectedVersion, err
	}

	l.logger.Debug("events appended",
		zap.String("stream_id", streamID.String()),
		zap.Int64("version", newVersion),
		zap.Int("count", len(events)),
	)
	return newVersion, nil
}

// ReadStream returns the stream's events in version order
func (l *GormEventLog) ReadStream(ctx context.Context, streamID uuid.UUID) ([]shared.CommittedEvent, error) {
	var rows []EventModel
	if err := l.db.WithContext(ctx).
		Where("stream_id = ?", streamID).
		Order("version ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", streamID, err)
	}
	if len(rows) == 0 {
		return nil, shared.ErrNotFound
	}
	return toCommitted(rows)
}

// ReadCommitRange returns events with floor < sequence <= ceiling
func (l *GormEventLog) ReadCommitRange(ctx context.Context, floor, ceiling int64) ([]shared.CommittedEvent, error) {
	if ceiling <= floor {
		return nil, nil
	}
	var rows []EventModel
	if err := l.db.WithContext(ctx).
		Where("sequence > ? AND sequence <= ?", floor, ceiling).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read commit range (%d, %d]: %w", floor, ceiling, err)
	}
	return toCommitted(rows)
}

// HighWaterMark returns the highest committed sequence
func (l *GormEventLog) HighWaterMark(ctx context.Context) (int64, error) {
	var maxSeq int64
	if err := l.db.WithContext(ctx).
		Model(&EventModel{}).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error; err != nil {
		return 0, fmt.Errorf("failed to read high water mark: %w", err)
	}
	return maxSeq, nil
}

func (l *GormEventLog) lockCommitLog(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", commitLogLockKey).Error; err != nil {
		return fmt.Errorf("failed to lock commit log: %w", err)
	}
	return nil
}

func (l *GormEventLog) createStream(tx *gorm.DB, streamID uuid.UUID, version int64, now time.Time) error {
	var count int64
	if err := tx.Model(&StreamModel{}).Where("id = ?", streamID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check stream: %w", err)
	}
	if count > 0 {
		return shared.ErrStreamAlreadyExists
	}
	err := tx.Create(&StreamModel{ID: streamID, Version: version, CreatedAt: now, UpdatedAt: now}).Error
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrStreamAlreadyExists
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

func (l *GormEventLog) advanceStream(tx *gorm.DB, streamID uuid.UUID, expected, next int64, now time.Time) error {
	result := tx.Model(&StreamModel{}).
		Where("id = ? AND version = ?", streamID, expected).
		Updates(map[string]any{
			"version":    next,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to advance stream: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func encodeHeaders(headers map[string]any) ([]byte, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	return json.Marshal(headers)
}

func toCommitted(rows []EventModel) ([]shared.CommittedEvent, error) {
	out := make([]shared.CommittedEvent, 0, len(rows))
	for i := range rows {
		evt, err := rows[i].ToCommitted()
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", rows[i].ID, err)
		}
		out = append(out, evt)
	}
	return out, nil
}

// Ensure GormEventLog implements EventLog
var _ shared.EventLog = (*GormEventLog)(nil)
