package domain

// GeocodeResult is one place match from the mapping provider.
type GeocodeResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

func (r GeocodeResult) Coordinate() Coordinate {
	return Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// Route is a driving route overlay between two coordinates.
type Route struct {
	SpaceID  SpaceID     `json:"space_id"`
	From     Coordinate  `json:"from"`
	To       Coordinate  `json:"to"`
	Geometry [][]float64 `json:"geometry"` // [lng, lat] pairs
	Distance float64     `json:"distance_meters"`
	Duration float64     `json:"duration_seconds"`
}
