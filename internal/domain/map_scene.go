package domain

import (
	"strconv"

	"gopkg.in/guregu/null.v4"
)

// Marker is one listing pin on the map.
type Marker struct {
	ID         SpaceID    `json:"id"`
	Position   Coordinate `json:"position"`
	PriceLabel string     `json:"price_label"`
	Discounted bool       `json:"discounted"`
	Selected   bool       `json:"selected"`
}

// Popup is the info card anchored to the selected listing.
type Popup struct {
	SpaceID        SpaceID    `json:"space_id"`
	Position       Coordinate `json:"position"`
	Title          string     `json:"title"`
	Address        string     `json:"address"`
	Price          PriceMeta  `json:"price"`
	AvailableSpots null.Int   `json:"available_spots"`
	Amenities      AmenitySet `json:"amenities"`
	Rating         null.Float `json:"rating"`
}

// MapScene is what the map surface draws.
type MapScene struct {
	Viewport     Viewport   `json:"viewport"`
	UserLocation Coordinate `json:"user_location"`
	Markers      []Marker   `json:"markers"`
	Popup        *Popup     `json:"popup"`
	Route        *Route     `json:"route"`
}

// BuildMapScene lays out markers for the rendered listings. Listings without
// a usable location get no marker. The selected listing gets a popup even
// when it is not among the rendered ones.
func BuildMapScene(vp Viewport, user Coordinate, rendered []ParkingSpace, selected *ParkingSpace, route *Route) MapScene {
	scene := MapScene{
		Viewport:     vp,
		UserLocation: user,
		Markers:      make([]Marker, 0, len(rendered)),
		Route:        route,
	}
	for _, s := range rendered {
		if !s.Location.Valid() {
			continue
		}
		meta := priceMetaOf(s)
		scene.Markers = append(scene.Markers, Marker{
			ID:         s.ID,
			Position:   s.Location.Coordinate(),
			PriceLabel: priceLabel(meta.DiscountedPrice),
			Discounted: meta.HasDiscount,
			Selected:   selected != nil && selected.ID == s.ID,
		})
	}
	if selected != nil && selected.Location.Valid() {
		scene.Popup = &Popup{
			SpaceID:        selected.ID,
			Position:       selected.Location.Coordinate(),
			Title:          selected.Title,
			Address:        selected.Address,
			Price:          priceMetaOf(*selected),
			AvailableSpots: selected.AvailableSpots,
			Amenities:      selected.Amenities,
			Rating:         selected.Rating,
		}
	}
	return scene
}

func priceMetaOf(s ParkingSpace) PriceMeta {
	if s.PriceMeta != nil {
		return *s.PriceMeta
	}
	return ComputePriceMeta(s)
}

func priceLabel(p float64) string {
	return "$" + strconv.FormatFloat(p, 'f', -1, 64)
}
