package domain

import "math"

// PriceMeta is the display price derived from a listing's raw price fields.
type PriceMeta struct {
	BasePrice       float64 `json:"basePrice"`
	DiscountedPrice float64 `json:"discountedPrice"`
	DiscountPercent float64 `json:"discountPercent"`
	HasDiscount     bool    `json:"hasDiscount"`
}

// BasePrice picks the first present of priceParking, pricePerHour, price.
// Missing, negative or non-finite prices count as 0.
func (s ParkingSpace) BasePrice() float64 {
	var p float64
	switch {
	case s.PriceParking.Valid:
		p = s.PriceParking.Float64
	case s.PricePerHour.Valid:
		p = s.PricePerHour.Float64
	case s.Price.Valid:
		p = s.Price.Float64
	}
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}

// ComputePriceMeta derives PriceMeta without touching the record.
func ComputePriceMeta(s ParkingSpace) PriceMeta {
	base := round2(s.BasePrice())

	discount := 0.0
	if s.Discount.Valid {
		discount = clampDiscount(s.Discount.Float64)
	}

	discounted := round2(base * (1 - discount/100))
	return PriceMeta{
		BasePrice:       base,
		DiscountedPrice: discounted,
		DiscountPercent: discount,
		HasDiscount:     discount > 0 && discounted < base,
	}
}

// AnnotatePrice caches PriceMeta on the record unless it is already there.
func AnnotatePrice(s *ParkingSpace) {
	if s.PriceMeta != nil {
		return
	}
	meta := ComputePriceMeta(*s)
	s.PriceMeta = &meta
}

// AnnotateAll annotates every record in place and returns the slice.
func AnnotateAll(spaces []ParkingSpace) []ParkingSpace {
	for i := range spaces {
		AnnotatePrice(&spaces[i])
	}
	return spaces
}

func clampDiscount(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return math.Min(100, math.Max(0, d))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
