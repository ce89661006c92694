package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"parking_market/internal/clock"
	"parking_market/internal/domain"
	"parking_market/internal/realtime"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrDetailNotFound  = errors.New("detail view not found")
)

// RealtimeRegistry is the subscription side of the realtime hub.
type RealtimeRegistry interface {
	Register(id string, sub realtime.Subscriber)
	Unregister(id string)
}

// Watchers tracks the live downstream connections of sessions and detail
// views.
type Watchers interface {
	HasWatchers(id string) bool
	Disconnect(id string)
}

// SessionService keeps the open buyer sessions and detail views and
// subscribes them to realtime updates.
type SessionService struct {
	deps     BuyerDeps
	registry RealtimeRegistry
	watchers Watchers
	logger   *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*BuyerView
	details  map[string]*DetailView
	// detailParent maps a detail view to the buyer session that opened it.
	detailParent map[string]string
}

func NewSessionService(deps BuyerDeps, registry RealtimeRegistry) *SessionService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &SessionService{
		deps:         deps,
		registry:     registry,
		logger:       deps.Logger,
		sessions:     make(map[string]*BuyerView),
		details:      make(map[string]*DetailView),
		detailParent: make(map[string]string),
	}
}

// SetWatchers lets the idle sweep spare views with a live connection and
// lets Close drop those connections.
func (s *SessionService) SetWatchers(w Watchers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = w
}

func (s *SessionService) currentWatchers() Watchers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watchers
}

// Create opens a buyer session and performs its initial load. The session
// is returned even when the load fails.
func (s *SessionService) Create(ctx context.Context, src PositionSource) (*BuyerView, error) {
	id := uuid.NewString()
	view := NewBuyerView(id, s.deps)

	s.mu.Lock()
	s.sessions[id] = view
	s.mu.Unlock()
	if s.registry != nil {
		s.registry.Register(id, view)
	}

	s.logger.WithField("session_id", id).Info("Buyer session opened")
	err := view.Load(ctx, src)
	return view, err
}

func (s *SessionService) Get(id string) (*BuyerView, error) {
	s.mu.RLock()
	view, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	view.Touch()
	return view, nil
}

// Close ends a buyer session together with the detail views it opened.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	view, ok := s.sessions[id]
	delete(s.sessions, id)
	var children []string
	for detailID, parent := range s.detailParent {
		if parent == id {
			children = append(children, detailID)
		}
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if s.registry != nil {
		s.registry.Unregister(id)
	}
	view.Close()
	if w := s.currentWatchers(); w != nil {
		w.Disconnect(id)
	}
	for _, detailID := range children {
		_ = s.CloseDetail(detailID)
	}
	s.logger.WithFields(logrus.Fields{"session_id": id, "details": len(children)}).Info("Buyer session closed")
	return nil
}

func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// OpenDetail starts a detail view from a handoff made by session parentID.
func (s *SessionService) OpenDetail(parentID string, handoff domain.DetailHandoff) *DetailView {
	id := uuid.NewString()
	view := NewDetailView(id, handoff, s.deps.Clock, s.deps.Publisher, s.logger)

	s.mu.Lock()
	s.details[id] = view
	if parentID != "" {
		s.detailParent[id] = parentID
	}
	s.mu.Unlock()
	if s.registry != nil {
		s.registry.Register(id, view)
	}
	return view
}

func (s *SessionService) GetDetail(id string) (*DetailView, error) {
	s.mu.RLock()
	view, ok := s.details[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrDetailNotFound
	}
	view.Touch()
	return view, nil
}

func (s *SessionService) CloseDetail(id string) error {
	s.mu.Lock()
	_, ok := s.details[id]
	delete(s.details, id)
	delete(s.detailParent, id)
	s.mu.Unlock()
	if !ok {
		return ErrDetailNotFound
	}
	if s.registry != nil {
		s.registry.Unregister(id)
	}
	if w := s.currentWatchers(); w != nil {
		w.Disconnect(id)
	}
	return nil
}

// SweepIdle closes buyer sessions and detail views idle for longer than
// maxIdle. A view with a live connection counts as active.
func (s *SessionService) SweepIdle(now time.Time, maxIdle time.Duration) int {
	w := s.currentWatchers()
	watched := func(id string) bool { return w != nil && w.HasWatchers(id) }

	s.mu.RLock()
	var staleSessions, staleDetails []string
	for id, view := range s.sessions {
		if watched(id) {
			view.Touch()
			continue
		}
		if now.Sub(view.LastActive()) > maxIdle {
			staleSessions = append(staleSessions, id)
		}
	}
	for id, view := range s.details {
		if watched(id) {
			view.Touch()
			continue
		}
		if now.Sub(view.LastActive()) > maxIdle {
			staleDetails = append(staleDetails, id)
		}
	}
	s.mu.RUnlock()

	closed := 0
	for _, id := range staleSessions {
		if s.Close(id) == nil {
			closed++
		}
	}
	// Details of a closed session may already be gone.
	for _, id := range staleDetails {
		if s.CloseDetail(id) == nil {
			closed++
		}
	}
	return closed
}

// CloseAll closes every session and detail view, used on shutdown.
func (s *SessionService) CloseAll() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.Close(id)
	}

	s.mu.RLock()
	detailIDs := make([]string, 0, len(s.details))
	for id := range s.details {
		detailIDs = append(detailIDs, id)
	}
	s.mu.RUnlock()
	for _, id := range detailIDs {
		_ = s.CloseDetail(id)
	}
}
