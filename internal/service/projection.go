package service

import "parking_market/internal/domain"

// Projection is one view of the space collection that realtime events patch.
type Projection interface {
	// Lookup returns the stored record for id, or nil.
	Lookup(id domain.SpaceID) *domain.ParkingSpace
	Remove(id domain.SpaceID)
	// Insert adds a new record and reports whether the projection accepts
	// insertions at all.
	Insert(s domain.ParkingSpace) bool
}

// ListProjection is a whole collection. Removal splices, insertion prepends.
type ListProjection struct {
	Spaces *[]domain.ParkingSpace
}

func (p ListProjection) Lookup(id domain.SpaceID) *domain.ParkingSpace {
	list := *p.Spaces
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

func (p ListProjection) Remove(id domain.SpaceID) {
	list := *p.Spaces
	out := list[:0]
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	*p.Spaces = out
}

func (p ListProjection) Insert(s domain.ParkingSpace) bool {
	list := make([]domain.ParkingSpace, 0, len(*p.Spaces)+1)
	list = append(list, s)
	*p.Spaces = append(list, *p.Spaces...)
	return true
}

// SlotProjection holds at most one record, like the selected space.
// Removal clears the slot and it never inserts.
type SlotProjection struct {
	Slot **domain.ParkingSpace
}

func (p SlotProjection) Lookup(id domain.SpaceID) *domain.ParkingSpace {
	if *p.Slot == nil || (*p.Slot).ID != id {
		return nil
	}
	return *p.Slot
}

func (p SlotProjection) Remove(id domain.SpaceID) {
	if p.Lookup(id) != nil {
		*p.Slot = nil
	}
}

func (p SlotProjection) Insert(domain.ParkingSpace) bool { return false }
