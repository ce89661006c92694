package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parking_market/internal/domain"
	"parking_market/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type pgRealtimeEventLogRepository struct {
	db *sql.DB
}

func NewPgRealtimeEventLogRepository(db *sql.DB) repository.RealtimeEventLogRepository {
	return &pgRealtimeEventLogRepository{db: db}
}

func (r *pgRealtimeEventLogRepository) Create(ctx context.Context, entry *domain.RealtimeEventLog) error {
	query := `INSERT INTO realtime_event_log
                (received_at, source, event_name, space_id, payload, processed_status, processing_notes, message_id)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	var payloadToStore []byte
	if entry.Payload != nil {
		payloadToStore = entry.Payload
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		entry.ReceivedAt,
		entry.Source,
		sql.NullString{String: entry.EventName, Valid: entry.EventName != ""},
		sql.NullString{String: entry.SpaceID, Valid: entry.SpaceID != ""},
		payloadToStore,
		entry.ProcessedStatus,
		sql.NullString{String: entry.ProcessingNotes, Valid: entry.ProcessingNotes != ""},
		sql.NullString{String: entry.MessageID, Valid: entry.MessageID != ""},
	).Scan(&id)
	if err != nil {
		// only (source, message_id) is unique
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s message %s", repository.ErrDuplicateEntry, entry.Source, entry.MessageID)
		}
		return fmt.Errorf("RealtimeEventLogRepository.Create: %w", err)
	}
	entry.ID = id
	return nil
}

func (r *pgRealtimeEventLogRepository) FindByID(ctx context.Context, id int64) (*domain.RealtimeEventLog, error) {
	query := `SELECT id, received_at, source, event_name, space_id, payload, processed_status, processing_notes, message_id
              FROM realtime_event_log WHERE id = $1`

	entry, err := scanEventLog(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("RealtimeEventLogRepository.FindByID: %w", err)
	}
	return entry, nil
}

// FindRecent lists the newest rows first. An empty spaceID lists all spaces.
func (r *pgRealtimeEventLogRepository) FindRecent(ctx context.Context, spaceID string, limit int) ([]domain.RealtimeEventLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, received_at, source, event_name, space_id, payload, processed_status, processing_notes, message_id
              FROM realtime_event_log`
	args := []interface{}{}
	if spaceID != "" {
		query += ` WHERE space_id = $1`
		args = append(args, spaceID)
	}
	query += fmt.Sprintf(` ORDER BY received_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("RealtimeEventLogRepository.FindRecent: %w", err)
	}
	defer rows.Close()

	entries := []domain.RealtimeEventLog{}
	for rows.Next() {
		entry, err := scanEventLog(rows)
		if err != nil {
			return nil, fmt.Errorf("RealtimeEventLogRepository.FindRecent scan: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RealtimeEventLogRepository.FindRecent rows: %w", err)
	}
	return entries, nil
}

func (r *pgRealtimeEventLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM realtime_event_log WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("RealtimeEventLogRepository.DeleteOlderThan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("RealtimeEventLogRepository.DeleteOlderThan rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEventLog(row rowScanner) (*domain.RealtimeEventLog, error) {
	var (
		entry     domain.RealtimeEventLog
		eventName sql.NullString
		spaceID   sql.NullString
		notes     sql.NullString
		messageID sql.NullString
		payload   []byte
	)
	if err := row.Scan(&entry.ID, &entry.ReceivedAt, &entry.Source, &eventName, &spaceID,
		&payload, &entry.ProcessedStatus, &notes, &messageID); err != nil {
		return nil, err
	}
	entry.EventName = eventName.String
	entry.SpaceID = spaceID.String
	entry.ProcessingNotes = notes.String
	entry.MessageID = messageID.String
	if len(payload) > 0 {
		entry.Payload = payload
	}
	return &entry, nil
}

// isUniqueViolation recognises the error shapes of both supported drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
