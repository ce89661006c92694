package service

import "parking_market/internal/domain"

type Outcome int

const (
	Ignored Outcome = iota
	Removed
	Merged
	Inserted
)

func (o Outcome) String() string {
	switch o {
	case Removed:
		return "removed"
	case Merged:
		return "merged"
	case Inserted:
		return "inserted"
	default:
		return "ignored"
	}
}

// Reconcile applies one realtime event to a projection. parking-updated and
// parking-released go through here alike.
//
// A record is removed when the event carries a foreign status, reports the
// space offline, or, under an active time window, reports no free spots.
// Otherwise an existing record is shallow-merged, and an unknown one is
// inserted only if it passes the same eligibility gate.
func Reconcile(p Projection, ev domain.RealtimeEvent, windowActive bool) Outcome {
	existing := p.Lookup(ev.ID)

	if ev.ShouldRemove(windowActive) {
		if existing == nil {
			return Ignored
		}
		p.Remove(ev.ID)
		return Removed
	}

	if existing != nil {
		ev.ApplyTo(existing)
		return Merged
	}

	if !ev.EligibleForInsert(windowActive) {
		return Ignored
	}
	if p.Insert(ev.ToSpace()) {
		return Inserted
	}
	return Ignored
}
