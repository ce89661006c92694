package service

import (
	"sync"
	"time"

	"parking_market/internal/clock"
	"parking_market/internal/domain"

	"github.com/sirupsen/logrus"
)

// DetailSnapshot is the render state of the detail screen. Space is nil once
// the listing has been withdrawn.
type DetailSnapshot struct {
	ID        string               `json:"id"`
	Space     *domain.ParkingSpace `json:"space"`
	User      domain.User          `json:"user"`
	Available bool                 `json:"available"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// DetailView holds the copy of a space handed to the detail screen and keeps
// it fresh from the realtime channel only.
type DetailView struct {
	id        string
	user      domain.User
	clock     clock.Clock
	publisher UpdatePublisher
	logger    *logrus.Logger

	mu         sync.Mutex
	space      *domain.ParkingSpace
	updatedAt  time.Time
	lastActive time.Time
}

func NewDetailView(id string, handoff domain.DetailHandoff, c clock.Clock, publisher UpdatePublisher, logger *logrus.Logger) *DetailView {
	if c == nil {
		c = clock.Real()
	}
	space := handoff.Space
	domain.AnnotatePrice(&space)
	return &DetailView{
		id:         id,
		user:       handoff.User,
		clock:      c,
		publisher:  publisher,
		logger:     logger,
		space:      &space,
		updatedAt:  c.Now(),
		lastActive: c.Now(),
	}
}

func (d *DetailView) ID() string { return d.id }

// Touch records client activity for the idle sweep.
func (d *DetailView) Touch() {
	now := d.clock.Now()
	d.mu.Lock()
	d.lastActive = now
	d.mu.Unlock()
}

func (d *DetailView) LastActive() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastActive
}

// ApplyRealtime patches the held space. The detail screen has no time
// window, so only status and online changes withdraw it.
func (d *DetailView) ApplyRealtime(name string, ev domain.RealtimeEvent) bool {
	d.mu.Lock()
	outcome := Reconcile(SlotProjection{Slot: &d.space}, ev, false)
	if outcome != Ignored {
		d.updatedAt = d.clock.Now()
	}
	d.mu.Unlock()

	if outcome == Ignored {
		return false
	}
	d.logger.WithFields(logrus.Fields{
		"detail_id": d.id,
		"event":     name,
		"space_id":  ev.ID,
		"outcome":   outcome.String(),
	}).Debug("Realtime event applied to detail view")
	if d.publisher != nil {
		d.publisher.PublishToSession(d.id, d.Snapshot())
	}
	return true
}

func (d *DetailView) Snapshot() DetailSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := DetailSnapshot{ID: d.id, User: d.user, UpdatedAt: d.updatedAt}
	if d.space != nil {
		s := *d.space
		snap.Space = &s
		snap.Available = true
	}
	return snap
}
