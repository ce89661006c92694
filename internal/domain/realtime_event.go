package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"gopkg.in/guregu/null.v4"
)

// Event names published by the realtime channel. Both are handled alike.
const (
	EventParkingUpdated  = "parking-updated"
	EventParkingReleased = "parking-released"
)

var (
	ErrMissingIdentifier = errors.New("realtime event has no identifier")
	ErrUnknownEvent      = errors.New("unknown realtime event name")
)

// RealtimeEnvelope is the wire frame carried by every realtime transport.
type RealtimeEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RealtimeEvent is a partial listing update pushed by the realtime channel.
type RealtimeEvent struct {
	ID       SpaceID
	Status   null.String
	IsOnline null.Bool
	// Spots is resolved from availableSpots when numeric, else from available.
	Spots null.Int

	Title        null.String
	Address      null.String
	Location     *GeoPoint
	PriceParking null.Float
	PricePerHour null.Float
	Price        null.Float
	Discount     null.Float
	Amenities    *AmenitySet
	Owner        SpaceID
	Rating       null.Float
	Description  null.String
	Image        null.String
}

type realtimePayload struct {
	ParkingID      SpaceID         `json:"parkingId"`
	UnderscoreID   SpaceID         `json:"_id"`
	ID             SpaceID         `json:"id"`
	Status         null.String     `json:"status"`
	IsOnline       null.Bool       `json:"isOnline"`
	AvailableSpots json.RawMessage `json:"availableSpots"`
	Available      json.RawMessage `json:"available"`
	Title          null.String     `json:"title"`
	Address        null.String     `json:"address"`
	Location       *GeoPoint       `json:"location"`
	PriceParking   null.Float      `json:"priceParking"`
	PricePerHour   null.Float      `json:"pricePerHour"`
	Price          null.Float      `json:"price"`
	Discount       null.Float      `json:"discount"`
	Amenities      *AmenitySet     `json:"amenities"`
	Owner          SpaceID         `json:"owner"`
	Rating         null.Float      `json:"rating"`
	Description    null.String     `json:"description"`
	Image          null.String     `json:"image"`
}

// DecodeRealtimeEvent parses an event payload. Payloads without any
// identifier are rejected with ErrMissingIdentifier.
func DecodeRealtimeEvent(data []byte) (RealtimeEvent, error) {
	var p realtimePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return RealtimeEvent{}, fmt.Errorf("decode realtime payload: %w", err)
	}

	id := p.ParkingID
	if id.IsZero() {
		id = p.UnderscoreID
	}
	if id.IsZero() {
		id = p.ID
	}
	if id.IsZero() {
		return RealtimeEvent{}, ErrMissingIdentifier
	}

	spots := numericInt(p.AvailableSpots)
	if !spots.Valid {
		spots = numericInt(p.Available)
	}

	return RealtimeEvent{
		ID:           id,
		Status:       p.Status,
		IsOnline:     p.IsOnline,
		Spots:        spots,
		Title:        p.Title,
		Address:      p.Address,
		Location:     p.Location,
		PriceParking: p.PriceParking,
		PricePerHour: p.PricePerHour,
		Price:        p.Price,
		Discount:     p.Discount,
		Amenities:    p.Amenities,
		Owner:        p.Owner,
		Rating:       p.Rating,
		Description:  p.Description,
		Image:        p.Image,
	}, nil
}

// DecodeEnvelope parses a transport frame and its event payload.
func DecodeEnvelope(data []byte) (string, RealtimeEvent, error) {
	var env RealtimeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", RealtimeEvent{}, fmt.Errorf("decode realtime envelope: %w", err)
	}
	switch env.Event {
	case EventParkingUpdated, EventParkingReleased:
	default:
		return env.Event, RealtimeEvent{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	ev, err := DecodeRealtimeEvent(env.Data)
	return env.Event, ev, err
}

// numericInt accepts only JSON numbers; strings, booleans, null and values
// outside the int64 range are absent. Fractions round up so that a count is
// <= 0 exactly when the reported value is.
func numericInt(raw json.RawMessage) null.Int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return null.Int{}
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Int{}
	}
	f = math.Ceil(f)
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return null.Int{}
	}
	return null.IntFrom(int64(f))
}

// Online applies the event-side default: an absent flag means online.
// Stored records default the other way, see IsApproved.
func (e RealtimeEvent) Online() bool {
	if !e.IsOnline.Valid {
		return true
	}
	return e.IsOnline.Bool
}

func (e RealtimeEvent) hasForeignStatus() bool {
	if !e.Status.Valid {
		return false
	}
	s := strings.TrimSpace(e.Status.String)
	return s != "" && !strings.EqualFold(s, StatusSubmitted)
}

// ShouldRemove reports whether the event takes the listing off the map.
func (e RealtimeEvent) ShouldRemove(windowActive bool) bool {
	if e.hasForeignStatus() || !e.Online() {
		return true
	}
	return windowActive && e.Spots.Valid && e.Spots.Int64 <= 0
}

// EligibleForInsert is the gate for listings not yet on the map: the event
// must state the submitted status, must not be offline, and under an active
// time window must report free spots.
func (e RealtimeEvent) EligibleForInsert(windowActive bool) bool {
	if e.ShouldRemove(windowActive) {
		return false
	}
	if !e.Status.Valid || !strings.EqualFold(strings.TrimSpace(e.Status.String), StatusSubmitted) {
		return false
	}
	return !windowActive || (e.Spots.Valid && e.Spots.Int64 > 0)
}

func (e RealtimeEvent) touchesPrice() bool {
	return e.PriceParking.Valid || e.PricePerHour.Valid || e.Price.Valid || e.Discount.Valid
}

// ApplyTo shallow-merges the event onto an existing record; event values win.
// availableSpots is only overwritten by a numeric value.
func (e RealtimeEvent) ApplyTo(s *ParkingSpace) {
	if e.Status.Valid {
		s.Status = e.Status.String
	}
	if e.IsOnline.Valid {
		s.IsOnline = e.IsOnline.Bool
	}
	if e.Spots.Valid {
		s.AvailableSpots = e.Spots
	}
	if e.Title.Valid {
		s.Title = e.Title.String
	}
	if e.Address.Valid {
		s.Address = e.Address.String
	}
	if e.Location != nil && e.Location.Valid() {
		s.Location = *e.Location
	}
	if e.PriceParking.Valid {
		s.PriceParking = e.PriceParking
	}
	if e.PricePerHour.Valid {
		s.PricePerHour = e.PricePerHour
	}
	if e.Price.Valid {
		s.Price = e.Price
	}
	if e.Discount.Valid {
		s.Discount = e.Discount
	}
	if e.Amenities != nil {
		s.Amenities = append(AmenitySet(nil), (*e.Amenities)...)
	}
	if !e.Owner.IsZero() {
		s.Owner = e.Owner
	}
	if e.Rating.Valid {
		s.Rating = e.Rating
	}
	if e.Description.Valid {
		s.Description = e.Description.String
	}
	if e.Image.Valid {
		s.Image = e.Image.String
	}
	if e.touchesPrice() {
		s.PriceMeta = nil
		AnnotatePrice(s)
	}
}

// ToSpace builds a fresh, price-annotated record from an event that passed
// EligibleForInsert.
func (e RealtimeEvent) ToSpace() ParkingSpace {
	s := ParkingSpace{ID: e.ID, IsOnline: e.Online()}
	e.ApplyTo(&s)
	s.IsOnline = e.Online()
	s.PriceMeta = nil
	AnnotatePrice(&s)
	return s
}
