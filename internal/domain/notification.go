package domain

import "time"

type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyInfo    NotificationLevel = "info"
	NotifyError   NotificationLevel = "error"
)

// Notification is a transient, user-visible message (a toast).
type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
