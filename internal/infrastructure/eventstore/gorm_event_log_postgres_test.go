package eventstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newMockPostgresLog creates an event log over a mocked PostgreSQL connection
func newMockPostgresLog(t *testing.T) (*GormEventLog, sqlmock.Sqlmock) {
	t.Helper()
	m := testutil.NewMockDB(t)
	return NewGormEventLog(m.DB, zap.NewNop()), m.Mock
}

func onePending() []shared.PendingEvent {
	return []shared.PendingEvent{{ID: uuid.New(), Kind: "k", Data: json.RawMessage(`{}`)}}
}

func TestGormEventLog_Postgres_AppendTakesAdvisoryLock(t *testing.T) {
	log, mock := newMockPostgresLog(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE "event_streams" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(sequence\), 0\) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(41))
	mock.ExpectExec(`INSERT INTO "events"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	version, err := log.Append(context.Background(), uuid.New(), 3, onePending())

	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormEventLog_Postgres_StaleVersionConflicts(t *testing.T) {
	log, mock := newMockPostgresLog(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE "event_streams" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := log.Append(context.Background(), uuid.New(), 3, onePending())

	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormEventLog_Postgres_UniqueViolationMapping(t *testing.T) {
	t.Run("duplicate stream row", func(t *testing.T) {
		log, mock := newMockPostgresLog(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "event_streams"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`INSERT INTO "event_streams"`).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()

		_, err := log.Append(context.Background(), uuid.New(), shared.ExpectNoStream, onePending())

		assert.ErrorIs(t, err, shared.ErrStreamAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate event version", func(t *testing.T) {
		log, mock := newMockPostgresLog(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE "event_streams" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT COALESCE\(MAX\(sequence\), 0\) FROM "events"`).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))
		mock.ExpectExec(`INSERT INTO "events"`).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()

		_, err := log.Append(context.Background(), uuid.New(), 1, onePending())

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
