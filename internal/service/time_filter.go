package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parking_market/internal/clock"
	"parking_market/internal/domain"
)

// TimeFilterState is the render state of the booking time picker.
type TimeFilterState struct {
	Start   *time.Time         `json:"start_time"`
	End     *time.Time         `json:"end_time"`
	MinEnd  *time.Time         `json:"min_end_time"`
	Applied *domain.TimeWindow `json:"applied"`
}

// WindowLoader refetches the collection under window (nil for no window)
// and returns how many spaces are now shown. It returns ErrFetchSuperseded
// when a newer fetch replaced the result.
type WindowLoader func(ctx context.Context, window *domain.TimeWindow) (int, error)

// TimeFilterController edits and applies the booking time window.
type TimeFilterController struct {
	mu       sync.Mutex
	clock    clock.Clock
	notifier *Notifier
	load     WindowLoader

	start   *time.Time
	end     *time.Time
	applied *domain.TimeWindow
}

func NewTimeFilterController(c clock.Clock, notifier *Notifier, load WindowLoader) *TimeFilterController {
	if c == nil {
		c = clock.Real()
	}
	return &TimeFilterController{clock: c, notifier: notifier, load: load}
}

// SetStart changes the start bound. An end at or before the new start is
// cleared.
func (t *TimeFilterController) SetStart(start time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = &start
	if t.end != nil && !t.end.After(start) {
		t.end = nil
	}
}

func (t *TimeFilterController) SetEnd(end time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.end = &end
}

// MinEnd is start+30min, or nil before a start is chosen.
func (t *TimeFilterController) MinEnd() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.minEndLocked()
}

func (t *TimeFilterController) minEndLocked() *time.Time {
	if t.start == nil {
		return nil
	}
	m := domain.MinEndTime(*t.start)
	return &m
}

// Validate checks the draft window without fetching.
func (t *TimeFilterController) Validate() (domain.TimeWindow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.start == nil || t.end == nil {
		return domain.TimeWindow{}, &domain.ValidationError{
			Code:    domain.CodeIncomplete,
			Message: "Please select both a start and an end time",
		}
	}
	w := domain.TimeWindow{Start: *t.start, End: *t.end}
	if err := domain.ValidateTimeWindow(t.clock.Now(), w); err != nil {
		return domain.TimeWindow{}, err
	}
	return w, nil
}

// Apply validates the draft and refetches with availability filtering.
// A rejected window surfaces a notification and issues no fetch.
func (t *TimeFilterController) Apply(ctx context.Context) (int, error) {
	w, err := t.Validate()
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			t.notifier.Error(verr.Message, verr.Code)
		}
		return 0, err
	}

	n, err := t.load(ctx, &w)
	if errors.Is(err, ErrFetchSuperseded) {
		return 0, err
	}
	if err != nil {
		t.notifier.Error("Could not load parking spaces for the selected time.", "fetch_failed")
		return 0, err
	}

	t.mu.Lock()
	t.applied = &w
	t.mu.Unlock()

	t.notifier.Success(fmt.Sprintf("Found %d parking spaces available for the selected time", n))
	return n, nil
}

// Clear refetches with no time constraint and, once the unconstrained
// results are shown, resets both bounds.
func (t *TimeFilterController) Clear(ctx context.Context) (int, error) {
	n, err := t.load(ctx, nil)
	if errors.Is(err, ErrFetchSuperseded) {
		return 0, err
	}
	if err != nil {
		t.notifier.Error("Could not load parking spaces.", "fetch_failed")
		return 0, err
	}

	t.mu.Lock()
	t.start = nil
	t.end = nil
	t.applied = nil
	t.mu.Unlock()

	t.notifier.Info("Time filter cleared")
	return n, nil
}

// Applied is the window currently constraining results.
func (t *TimeFilterController) Applied() *domain.TimeWindow {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.applied == nil {
		return nil
	}
	w := *t.applied
	return &w
}

func (t *TimeFilterController) State() TimeFilterState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := TimeFilterState{MinEnd: t.minEndLocked()}
	if t.start != nil {
		s := *t.start
		st.Start = &s
	}
	if t.end != nil {
		e := *t.end
		st.End = &e
	}
	if t.applied != nil {
		w := *t.applied
		st.Applied = &w
	}
	return st
}
