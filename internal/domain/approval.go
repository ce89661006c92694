package domain

import "strings"

// IsApproved reports whether a stored record is submitted and online.
// A record without isOnline decodes to false and is therefore excluded.
func IsApproved(s ParkingSpace) bool {
	return strings.ToLower(s.Status) == StatusSubmitted && s.IsOnline
}

// HasCapacity reports whether the record advertises at least one free spot.
func HasCapacity(s ParkingSpace) bool {
	return s.AvailableSpots.Valid && s.AvailableSpots.Int64 > 0
}

// IsVisible is the buyer visibility rule: approved, and when a time window
// is active, with remaining capacity.
func IsVisible(s ParkingSpace, windowActive bool) bool {
	if !IsApproved(s) {
		return false
	}
	return !windowActive || HasCapacity(s)
}

// FilterApproved keeps approved records in their original order. A nil
// input yields an empty, non-nil slice.
func FilterApproved(spaces []ParkingSpace) []ParkingSpace {
	out := make([]ParkingSpace, 0, len(spaces))
	for _, s := range spaces {
		if IsApproved(s) {
			out = append(out, s)
		}
	}
	return out
}

// FilterAvailable keeps records with availableSpots > 0.
func FilterAvailable(spaces []ParkingSpace) []ParkingSpace {
	out := make([]ParkingSpace, 0, len(spaces))
	for _, s := range spaces {
		if HasCapacity(s) {
			out = append(out, s)
		}
	}
	return out
}
