package booking

import (
	"context"
	"time"
)

// Booking is a reservation of the shared resource for [StartTime, EndTime)
// on Date.  ID and OwnerID never change after creation; CreatedAt and
// UpdatedAt are maintained by the store.
type Booking struct {
	ID        string    `json:"id"`
	OwnerID   uint64    `json:"userId"`
	Date      Date      `json:"date"`
	StartTime TimeOfDay `json:"startTime"`
	EndTime   TimeOfDay `json:"endTime"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Slot returns the interval occupied by b.
func (b Booking) Slot() Slot {
	return Slot{Date: b.Date, Start: b.StartTime, End: b.EndTime}
}

// Filter narrows Find.  Zero fields do not filter.
type Filter struct {
	Date    *Date
	OwnerID uint64
}

// Finder is the read capability the conflict detector needs.
type Finder interface {
	Find(ctx context.Context, f Filter) ([]Booking, error)
}

// Store is the booking persistence capability.  FindByID, UpdateByID and
// DeleteByID return ErrNotFound for unknown ids.
//
// WithinDays runs fn with exclusive write access to the given dates: no
// other WithinDays call touching any of those dates runs concurrently.  The
// Store passed to fn must be used for all reads and writes inside fn.  An
// error returned by fn is returned unchanged and nothing written inside fn
// is kept.
type Store interface {
	Finder
	FindByID(ctx context.Context, id string) (Booking, error)
	Create(ctx context.Context, b *Booking) error
	UpdateByID(ctx context.Context, id string, s Slot) (Booking, error)
	DeleteByID(ctx context.Context, id string) error
	WithinDays(ctx context.Context, days []Date, fn func(tx Store) error) error
}
