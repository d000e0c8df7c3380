package booking

import "context"

// Overlaps reports whether a and b share at least one minute.  Intervals are
// half-open, so [09:00,10:00) and [10:00,11:00) touch without overlapping.
// Containment and identical bounds are covered by the same test.
func Overlaps(a, b Slot) bool {
	return a.Date == b.Date && a.Start < b.End && a.End > b.Start
}

// Detector finds stored bookings that collide with a candidate slot.
type Detector struct {
	finder Finder
}

// NewDetector checks candidates against the bookings f returns.
func NewDetector(f Finder) *Detector { return &Detector{finder: f} }

// Conflicts returns the bookings on s.Date overlapping s, skipping the
// booking whose id is excludeID (used when a booking is checked against
// its own previous state during an update).  Pass "" to exclude nothing.
func (d *Detector) Conflicts(ctx context.Context, s Slot, excludeID string) ([]Booking, error) {
	day := s.Date
	sameDay, err := d.finder.Find(ctx, Filter{Date: &day})
	if err != nil {
		return nil, err
	}
	var out []Booking
	for _, b := range sameDay {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if Overlaps(b.Slot(), s) {
			out = append(out, b)
		}
	}
	return out, nil
}

// HasConflict reports whether any booking other than excludeID overlaps s.
func (d *Detector) HasConflict(ctx context.Context, s Slot, excludeID string) (bool, error) {
	c, err := d.Conflicts(ctx, s, excludeID)
	if err != nil {
		return false, err
	}
	return len(c) > 0, nil
}
