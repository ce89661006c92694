package domain

import (
	"encoding/json"
	"time"
)

const (
	EventLogApplied = "applied"
	EventLogDropped = "dropped"
	EventLogError   = "error"
)

// RealtimeEventLog is an audit row for a received realtime frame.
type RealtimeEventLog struct {
	ID              int64           `json:"id"`
	ReceivedAt      time.Time       `json:"received_at"`
	Source          string          `json:"source"`
	MessageID       string          `json:"message_id,omitempty"`
	EventName       string          `json:"event_name"`
	SpaceID         string          `json:"space_id"`
	Payload         json.RawMessage `json:"payload"`
	ProcessedStatus string          `json:"processed_status"`
	ProcessingNotes string          `json:"processing_notes,omitempty"`
}
