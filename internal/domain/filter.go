package domain

// Amenities offered as filter toggles.
var KnownAmenities = []string{"covered", "security", "ev_charging", "cctv", "wheelchair", "24_7"}

// FilterState is the buyer's amenity and price filter. It only narrows the
// already fetched, already approved list and is never sent upstream.
type FilterState struct {
	Amenities map[string]bool `json:"amenities"`
	MinPrice  float64         `json:"min_price"`
	MaxPrice  float64         `json:"max_price"`
	Active    bool            `json:"active"`
}

func DefaultFilterState() FilterState {
	return FilterState{Amenities: map[string]bool{}, MinPrice: 0, MaxPrice: 1000}
}

// Matches reports whether a listing carries every toggled amenity and its
// payable price falls inside [MinPrice, MaxPrice]. Inactive filters match all.
func (f FilterState) Matches(s ParkingSpace) bool {
	if !f.Active {
		return true
	}
	for name, on := range f.Amenities {
		if on && !s.Amenities.Has(name) {
			return false
		}
	}
	meta := ComputePriceMeta(s)
	if s.PriceMeta != nil {
		meta = *s.PriceMeta
	}
	price := meta.DiscountedPrice
	if price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && price > f.MaxPrice {
		return false
	}
	return true
}

// Apply returns the listings matching the filter, order preserved.
func (f FilterState) Apply(spaces []ParkingSpace) []ParkingSpace {
	out := make([]ParkingSpace, 0, len(spaces))
	for _, s := range spaces {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}
