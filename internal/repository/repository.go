package repository

import (
	"context"
	"errors"
	"time"

	"parking_market/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")

// RealtimeEventLogRepository stores an audit trail of received realtime frames.
type RealtimeEventLogRepository interface {
	Create(ctx context.Context, entry *domain.RealtimeEventLog) error
	FindByID(ctx context.Context, id int64) (*domain.RealtimeEventLog, error)
	FindRecent(ctx context.Context, spaceID string, limit int) ([]domain.RealtimeEventLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
