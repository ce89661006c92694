package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/guregu/null.v4"
)

// StatusSubmitted is the only listing status buyers may see.
const StatusSubmitted = "submitted"

var ErrSpaceNotFound = errors.New("parking space not found")

// SpaceID is a listing identifier. Upstream payloads carry it either as a
// plain string, a number, or boxed inside an object such as {"$oid": "..."}.
type SpaceID string

func (id SpaceID) String() string { return string(id) }

func (id SpaceID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

func (id *SpaceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SpaceID(s)
		return nil
	case '{':
		var boxed map[string]json.RawMessage
		if err := json.Unmarshal(data, &boxed); err != nil {
			return err
		}
		for _, key := range []string{"$oid", "_id", "id"} {
			if raw, ok := boxed[key]; ok {
				return id.UnmarshalJSON(raw)
			}
		}
		return fmt.Errorf("space id object has no identifier key")
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("space id: %w", err)
		}
		*id = SpaceID(n.String())
		return nil
	}
}

// GeoPoint is a GeoJSON point, coordinates ordered [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type,omitempty"`
	Coordinates []float64 `json:"coordinates"`
}

func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (p GeoPoint) Valid() bool { return len(p.Coordinates) >= 2 }

func (p GeoPoint) Lng() float64 {
	if !p.Valid() {
		return 0
	}
	return p.Coordinates[0]
}

func (p GeoPoint) Lat() float64 {
	if !p.Valid() {
		return 0
	}
	return p.Coordinates[1]
}

func (p GeoPoint) Coordinate() Coordinate {
	return Coordinate{Latitude: p.Lat(), Longitude: p.Lng()}
}

// AmenitySet decodes from either ["ev","covered"] or {"ev": true, "covered": false}.
type AmenitySet []string

func (a *AmenitySet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if data[0] == '{' {
		var flags map[string]bool
		if err := json.Unmarshal(data, &flags); err != nil {
			return err
		}
		out := make([]string, 0, len(flags))
		for name, on := range flags {
			if on {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		*a = out
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = list
	return nil
}

func (a AmenitySet) Has(name string) bool {
	for _, n := range a {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// ParkingSpace is a listing record as served by the parking data API.
type ParkingSpace struct {
	ID             SpaceID    `json:"_id"`
	Title          string     `json:"title,omitempty"`
	Address        string     `json:"address,omitempty"`
	Status         string     `json:"status"`
	IsOnline       bool       `json:"isOnline"`
	Location       GeoPoint   `json:"location"`
	AvailableSpots null.Int   `json:"availableSpots"`
	PriceParking   null.Float `json:"priceParking"`
	PricePerHour   null.Float `json:"pricePerHour"`
	Price          null.Float `json:"price"`
	Discount       null.Float `json:"discount"`
	Amenities      AmenitySet `json:"amenities,omitempty"`
	Owner          SpaceID    `json:"owner,omitempty"`
	Rating         null.Float `json:"rating"`
	Description    string     `json:"description,omitempty"`
	Image          string     `json:"image,omitempty"`
	PriceMeta      *PriceMeta `json:"priceMeta,omitempty"`
}

// UnmarshalJSON accepts "id" as an alternative to "_id".
func (s *ParkingSpace) UnmarshalJSON(data []byte) error {
	type alias ParkingSpace
	aux := struct {
		*alias
		AltID SpaceID `json:"id"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if s.ID.IsZero() {
		s.ID = aux.AltID
	}
	return nil
}

// Coordinate is a WGS84 position.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Viewport is the map camera state.
type Viewport struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
	Bearing   float64 `json:"bearing"`
}

const (
	DefaultZoom = 14
	SearchZoom  = 15
)

func ViewportAt(c Coordinate, zoom float64) Viewport {
	return Viewport{Latitude: c.Latitude, Longitude: c.Longitude, Zoom: zoom}
}

// CloneSpaces returns a copy of the slice with its own backing array.
func CloneSpaces(in []ParkingSpace) []ParkingSpace {
	out := make([]ParkingSpace, len(in))
	copy(out, in)
	return out
}
