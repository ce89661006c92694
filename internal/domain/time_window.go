package domain

import (
	"fmt"
	"time"
)

const (
	// SlotGranularity is the step offered by booking time pickers.
	SlotGranularity = 30 * time.Minute
	// MinBookingDuration is the shortest bookable window.
	MinBookingDuration = 30 * time.Minute
	// BookingHorizon bounds how far ahead a window may reach.
	BookingHorizon = 30 * 24 * time.Hour
)

// Validation codes, in the order they are checked.
const (
	CodeStartInPast      = "start_in_past"
	CodeEndNotAfter      = "end_not_after_start"
	CodeDurationTooShort = "duration_too_short"
	CodeBeyondHorizon    = "beyond_horizon"
	CodeIncomplete       = "incomplete_window"
)

// TimeWindow constrains results to listings with capacity between Start and End.
type TimeWindow struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// ValidationError is a user-facing rejection of a time window.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidateTimeWindow checks a window against now. The first failing rule wins.
func ValidateTimeWindow(now time.Time, w TimeWindow) error {
	if w.Start.Before(now) {
		return &ValidationError{Code: CodeStartInPast, Message: "Start time cannot be in the past"}
	}
	if !w.End.After(w.Start) {
		return &ValidationError{Code: CodeEndNotAfter, Message: "End time must be after start time"}
	}
	if w.Duration() < MinBookingDuration {
		return &ValidationError{Code: CodeDurationTooShort, Message: "Minimum booking duration is 30 minutes"}
	}
	limit := now.Add(BookingHorizon)
	if w.Start.After(limit) || w.End.After(limit) {
		return &ValidationError{Code: CodeBeyondHorizon, Message: "Bookings can be made at most 30 days ahead"}
	}
	return nil
}

// MinEndTime is the earliest end a picker should offer for start.
func MinEndTime(start time.Time) time.Time {
	return start.Add(MinBookingDuration)
}

// NextSlot rounds t up to the next SlotGranularity boundary.
func NextSlot(t time.Time) time.Time {
	truncated := t.Truncate(SlotGranularity)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(SlotGranularity)
}
