// Package realtime receives listing updates from the upstream push channel
// and fans them out to every open buyer and detail view.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"parking_market/internal/domain"
	"parking_market/internal/repository"

	"github.com/sirupsen/logrus"
)

var ErrHubStopped = errors.New("realtime hub is not running")

// Subscriber applies a decoded event to its own state and reports whether
// anything changed.
type Subscriber interface {
	ApplyRealtime(name string, ev domain.RealtimeEvent) bool
}

// Sink accepts raw envelopes from a transport.
type Sink interface {
	Publish(ctx context.Context, source string, body []byte) error
}

// MessageSink also accepts the broker's message id, so that a redelivered
// message is audited once.
type MessageSink interface {
	Sink
	PublishMessage(ctx context.Context, source, messageID string, body []byte) error
}

// publishTo hands body to sink with its message id when the sink keeps ids.
func publishTo(ctx context.Context, sink Sink, source, messageID string, body []byte) error {
	if ms, ok := sink.(MessageSink); ok && messageID != "" {
		return ms.PublishMessage(ctx, source, messageID, body)
	}
	return sink.Publish(ctx, source, body)
}

type inbound struct {
	source     string
	messageID  string
	body       []byte
	receivedAt time.Time
}

// Hub serialises realtime frames so that every subscriber sees them in
// arrival order.
type Hub struct {
	subscribers map[string]Subscriber
	mutex       sync.RWMutex

	inbound  chan inbound
	eventLog repository.RealtimeEventLogRepository
	logger   *logrus.Logger

	ready     chan struct{}
	readyOnce sync.Once

	lifecycle sync.Mutex
	active    bool
	done      chan struct{} // closed when the current run ends
}

// NewHub creates a hub. eventLog may be nil.
func NewHub(eventLog repository.RealtimeEventLogRepository, logger *logrus.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]Subscriber),
		inbound:     make(chan inbound, 256),
		ready:       make(chan struct{}),
		eventLog:    eventLog,
		logger:      logger,
	}
}

func (h *Hub) Register(id string, sub Subscriber) {
	h.mutex.Lock()
	h.subscribers[id] = sub
	total := len(h.subscribers)
	h.mutex.Unlock()
	h.logger.WithFields(logrus.Fields{"subscriber": id, "total": total}).Debug("Realtime subscriber registered")
}

func (h *Hub) Unregister(id string) {
	h.mutex.Lock()
	delete(h.subscribers, id)
	total := len(h.subscribers)
	h.mutex.Unlock()
	h.logger.WithFields(logrus.Fields{"subscriber": id, "total": total}).Debug("Realtime subscriber unregistered")
}

func (h *Hub) SubscriberCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subscribers)
}

// Start processes frames until ctx is cancelled. A second Start while the
// hub is running returns at once; Start after a stop resumes with any
// frames still queued.
func (h *Hub) Start(ctx context.Context) {
	h.lifecycle.Lock()
	if h.active {
		h.lifecycle.Unlock()
		h.logger.Warn("Realtime hub already running")
		return
	}
	h.active = true
	done := make(chan struct{})
	h.done = done
	h.lifecycle.Unlock()

	defer func() {
		h.lifecycle.Lock()
		h.active = false
		close(done)
		h.lifecycle.Unlock()
	}()

	h.readyOnce.Do(func() { close(h.ready) })
	h.logger.Info("Realtime hub started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Realtime hub stopped")
			return
		case msg := <-h.inbound:
			h.process(ctx, msg)
		}
	}
}

// Ready is closed once Start has run for the first time.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Running reports whether Start is processing frames.
func (h *Hub) Running() bool {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	return h.active
}

// Publish queues a raw envelope. It blocks while the queue is full and
// returns ErrHubStopped when the hub is not running.
func (h *Hub) Publish(ctx context.Context, source string, body []byte) error {
	return h.enqueue(ctx, inbound{source: source, body: body})
}

// PublishMessage is Publish for transports that carry a message id.
func (h *Hub) PublishMessage(ctx context.Context, source, messageID string, body []byte) error {
	return h.enqueue(ctx, inbound{source: source, messageID: messageID, body: body})
}

func (h *Hub) enqueue(ctx context.Context, msg inbound) error {
	h.lifecycle.Lock()
	active, done := h.active, h.done
	h.lifecycle.Unlock()
	if !active {
		return ErrHubStopped
	}
	msg.body = append([]byte(nil), msg.body...)
	msg.receivedAt = time.Now()
	select {
	case h.inbound <- msg:
		return nil
	case <-done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process decodes and dispatches one frame. Undecodable frames and frames
// without an identifier are dropped.
func (h *Hub) process(ctx context.Context, msg inbound) {
	name, ev, err := domain.DecodeEnvelope(msg.body)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"source": msg.source,
			"event":  name,
		}).WithError(err).Debug("Dropping realtime frame")
		h.audit(ctx, msg, name, "", domain.EventLogError, err.Error())
		return
	}

	h.mutex.RLock()
	subs := make([]Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mutex.RUnlock()

	changed := 0
	for _, s := range subs {
		if s.ApplyRealtime(name, ev) {
			changed++
		}
	}

	status := domain.EventLogApplied
	if changed == 0 {
		status = domain.EventLogDropped
	}
	h.logger.WithFields(logrus.Fields{
		"source":   msg.source,
		"event":    name,
		"space_id": ev.ID,
		"changed":  changed,
	}).Debug("Realtime event dispatched")
	h.audit(ctx, msg, name, ev.ID.String(), status, fmt.Sprintf("%d of %d views changed", changed, len(subs)))
}

func (h *Hub) audit(ctx context.Context, msg inbound, name, spaceID, status, notes string) {
	if h.eventLog == nil {
		return
	}
	payload := json.RawMessage(msg.body)
	if !json.Valid(msg.body) {
		payload = nil
	}
	entry := &domain.RealtimeEventLog{
		ReceivedAt:      msg.receivedAt,
		Source:          msg.source,
		MessageID:       msg.messageID,
		EventName:       name,
		SpaceID:         spaceID,
		Payload:         payload,
		ProcessedStatus: status,
		ProcessingNotes: notes,
	}
	logCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := h.eventLog.Create(logCtx, entry)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicateEntry):
		h.logger.WithFields(logrus.Fields{
			"source":     msg.source,
			"message_id": msg.messageID,
		}).Debug("Redelivered realtime message already logged")
	default:
		h.logger.WithError(err).Warn("Failed to write realtime event log")
	}
}
