package postgresql

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"parking_market/internal/domain"
	"parking_market/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventLogColumns = []string{
	"id", "received_at", "source", "event_name", "space_id", "payload", "processed_status", "processing_notes", "message_id",
}

func TestRealtimeEventLogRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPgRealtimeEventLogRepository(db)
	ctx := t.Context()

	t.Run("Success", func(t *testing.T) {
		entry := &domain.RealtimeEventLog{
			ReceivedAt:      time.Now(),
			Source:          "websocket",
			EventName:       domain.EventParkingUpdated,
			SpaceID:         "a1",
			Payload:         json.RawMessage(`{"parkingId":"a1"}`),
			ProcessedStatus: domain.EventLogApplied,
		}

		mock.ExpectQuery(`INSERT INTO realtime_event_log`).
			WithArgs(sqlmock.AnyArg(), "websocket", domain.EventParkingUpdated, "a1",
				sqlmock.AnyArg(), domain.EventLogApplied, nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

		require.NoError(t, repo.Create(ctx, entry))
		assert.Equal(t, int64(42), entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Redelivered message", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO realtime_event_log`).
			WithArgs(sqlmock.AnyArg(), "sqs", nil, nil, sqlmock.AnyArg(), domain.EventLogDropped, nil, "m-1").
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, &domain.RealtimeEventLog{Source: "sqs", MessageID: "m-1", ProcessedStatus: domain.EventLogDropped})
		assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Redelivered message via pgx", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO realtime_event_log`).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(ctx, &domain.RealtimeEventLog{Source: "amqp", MessageID: "m-2", ProcessedStatus: domain.EventLogApplied})
		assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Other constraint error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO realtime_event_log`).
			WillReturnError(&pq.Error{Code: "23502"})

		err := repo.Create(ctx, &domain.RealtimeEventLog{Source: "sqs", ProcessedStatus: domain.EventLogDropped})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, repository.ErrDuplicateEntry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO realtime_event_log`).
			WillReturnError(fmt.Errorf("connection reset"))

		err := repo.Create(ctx, &domain.RealtimeEventLog{Source: "amqp", ProcessedStatus: domain.EventLogError})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RealtimeEventLogRepository.Create")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRealtimeEventLogRepository_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPgRealtimeEventLogRepository(db)
	now := time.Now()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM realtime_event_log WHERE id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(eventLogColumns).
				AddRow(int64(7), now, "websocket", "parking-released", "b2", []byte(`{}`), "applied", nil, "m-7"))

		entry, err := repo.FindByID(t.Context(), 7)
		require.NoError(t, err)
		assert.Equal(t, "b2", entry.SpaceID)
		assert.Equal(t, "parking-released", entry.EventName)
		assert.Equal(t, "m-7", entry.MessageID)
		assert.Empty(t, entry.ProcessingNotes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM realtime_event_log WHERE id = \$1`).
			WithArgs(int64(8)).
			WillReturnError(sql.ErrNoRows)

		entry, err := repo.FindByID(t.Context(), 8)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRealtimeEventLogRepository_FindRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPgRealtimeEventLogRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM realtime_event_log WHERE space_id = \$1 ORDER BY received_at DESC LIMIT 100`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(eventLogColumns).
			AddRow(int64(2), now, "sqs", "parking-updated", "a1", nil, "applied", nil, nil).
			AddRow(int64(1), now.Add(-time.Minute), "sqs", "parking-updated", "a1", nil, "dropped", "unknown space", nil))

	entries, err := repo.FindRecent(t.Context(), "a1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "unknown space", entries[1].ProcessingNotes)
	assert.Nil(t, entries[0].Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRealtimeEventLogRepository_DeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPgRealtimeEventLogRepository(db)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM realtime_event_log WHERE received_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.DeleteOlderThan(t.Context(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
