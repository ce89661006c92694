// Package sheet implements the drag-to-resize state machine behind the
// buyer screen's bottom sheets.
//
// A sheet moves Idle -> Dragging on pointer-down at the grab handle,
// follows pointer-move while dragging, and on pointer-up or cancel snaps to
// Min or Max and enters Settling until the height animation has finished.
// Pointer input is only accepted while the sheet is open.
package sheet

import (
	"errors"
	"sync"
	"time"

	"parking_market/internal/clock"
)

type State string

const (
	Idle     State = "idle"
	Dragging State = "dragging"
	Settling State = "settling"
)

var (
	ErrClosed        = errors.New("sheet is closed")
	ErrNotDragging   = errors.New("sheet is not being dragged")
	ErrPointerNotOwn = errors.New("pointer is not captured by this sheet")
)

type Config struct {
	Name string
	Min  float64
	Max  float64
	// Mid is the release threshold: heights above it snap to Max.
	Mid     float64
	Initial float64
	// SettleDuration matches the CSS height transition.
	SettleDuration time.Duration
}

// ListConfig is the results list sheet.
func ListConfig() Config {
	return Config{Name: "list", Min: 120, Max: 640, Mid: 380, Initial: 120, SettleDuration: 300 * time.Millisecond}
}

// FilterConfig is the amenity/price filter sheet.
func FilterConfig() Config {
	return Config{Name: "filters", Min: 0, Max: 560, Mid: 280, Initial: 0, SettleDuration: 300 * time.Millisecond}
}

// Snapshot is the render state of a sheet.
type Snapshot struct {
	Name              string  `json:"name"`
	State             State   `json:"state"`
	Height            float64 `json:"height"`
	Open              bool    `json:"open"`
	TransitionEnabled bool    `json:"transition_enabled"`
}

type Controller struct {
	mu    sync.Mutex
	cfg   Config
	clock clock.Clock

	state        State
	height       float64
	originY      float64
	originHeight float64
	pointerID    int
	transitions  bool
	listening    bool
	settleTimer  clock.Timer
}

func New(cfg Config, c clock.Clock) *Controller {
	if c == nil {
		c = clock.Real()
	}
	return &Controller{
		cfg:         cfg,
		clock:       c,
		state:       Idle,
		height:      clamp(cfg.Initial, cfg.Min, cfg.Max),
		transitions: true,
	}
}

// Open attaches the global pointer listeners.
func (s *Controller) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listening = true
}

// Close detaches the listeners and abandons any drag in progress.
func (s *Controller) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listening = false
	s.stopSettleLocked()
	if s.state == Dragging {
		s.height = s.snap(s.height)
	}
	s.state = Idle
	s.transitions = true
}

// PointerDown captures the pointer at the grab handle.
func (s *Controller) PointerDown(pointerID int, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.listening {
		return ErrClosed
	}
	s.stopSettleLocked()
	s.state = Dragging
	s.pointerID = pointerID
	s.originY = y
	s.originHeight = s.height
	s.transitions = false
	return nil
}

// PointerMove resizes the sheet. Dragging up (smaller y) grows it.
func (s *Controller) PointerMove(pointerID int, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkDragLocked(pointerID); err != nil {
		return err
	}
	s.height = clamp(s.originHeight+(s.originY-y), s.cfg.Min, s.cfg.Max)
	return nil
}

// PointerUp releases the pointer and snaps the sheet.
func (s *Controller) PointerUp(pointerID int) error {
	return s.release(pointerID)
}

// PointerCancel behaves like PointerUp.
func (s *Controller) PointerCancel(pointerID int) error {
	return s.release(pointerID)
}

func (s *Controller) release(pointerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkDragLocked(pointerID); err != nil {
		return err
	}
	s.transitions = true
	s.height = s.snap(s.height)
	s.state = Settling
	s.settleTimer = s.clock.AfterFunc(s.cfg.SettleDuration, s.Settle)
	return nil
}

// Settle ends the snap animation.
func (s *Controller) Settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Settling {
		s.state = Idle
	}
	s.settleTimer = nil
}

func (s *Controller) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Name:              s.cfg.Name,
		State:             s.state,
		Height:            s.height,
		Open:              s.listening,
		TransitionEnabled: s.transitions,
	}
}

func (s *Controller) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Controller) Height() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *Controller) checkDragLocked(pointerID int) error {
	if !s.listening {
		return ErrClosed
	}
	if s.state != Dragging {
		return ErrNotDragging
	}
	if pointerID != s.pointerID {
		return ErrPointerNotOwn
	}
	return nil
}

func (s *Controller) stopSettleLocked() {
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
}

func (s *Controller) snap(h float64) float64 {
	if h > s.cfg.Mid {
		return s.cfg.Max
	}
	return s.cfg.Min
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
