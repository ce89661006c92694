package service

import (
	"sync"

	"parking_market/internal/clock"
	"parking_market/internal/domain"

	"github.com/google/uuid"
)

const maxPendingNotifications = 50

// Notifier queues transient user-visible messages until the UI drains them.
type Notifier struct {
	mu      sync.Mutex
	clock   clock.Clock
	pending []domain.Notification
}

func NewNotifier(c clock.Clock) *Notifier {
	if c == nil {
		c = clock.Real()
	}
	return &Notifier{clock: c}
}

func (n *Notifier) Success(msg string) domain.Notification {
	return n.push(domain.NotifySuccess, msg, "")
}

func (n *Notifier) Info(msg string) domain.Notification {
	return n.push(domain.NotifyInfo, msg, "")
}

func (n *Notifier) Error(msg, code string) domain.Notification {
	return n.push(domain.NotifyError, msg, code)
}

func (n *Notifier) push(level domain.NotificationLevel, msg, code string) domain.Notification {
	note := domain.Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		Code:      code,
		CreatedAt: n.clock.Now(),
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, note)
	if over := len(n.pending) - maxPendingNotifications; over > 0 {
		n.pending = n.pending[over:]
	}
	return note
}

// Drain returns and clears the queue.
func (n *Notifier) Drain() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending
	n.pending = nil
	if out == nil {
		out = []domain.Notification{}
	}
	return out
}

func (n *Notifier) Pending() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification{}, n.pending...)
}
