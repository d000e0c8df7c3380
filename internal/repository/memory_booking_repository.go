package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/slot-booking/internal/booking"
)

// MemoryBookingRepo is an in-process booking.Store.  Reads take mu;
// writes additionally hold writeMu for their whole duration, which is what
// WithinDays hands out.  Writes made inside a failed WithinDays are undone.
type MemoryBookingRepo struct {
	writeMu sync.Mutex

	mu     sync.RWMutex
	byID   map[string]booking.Booking
	byDate map[booking.Date]map[string]struct{}

	now   func() time.Time
	newID func() string
}

// NewMemoryBookingRepo returns an empty store.
func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{
		byID:   make(map[string]booking.Booking),
		byDate: make(map[booking.Date]map[string]struct{}),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Len returns the number of stored bookings.
func (r *MemoryBookingRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryBookingRepo) Find(ctx context.Context, f booking.Filter) ([]booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []booking.Booking
	keep := func(b booking.Booking) {
		if f.OwnerID != 0 && b.OwnerID != f.OwnerID {
			return
		}
		out = append(out, b)
	}
	if f.Date != nil {
		for id := range r.byDate[*f.Date] {
			keep(r.byID[id])
		}
	} else {
		for _, b := range r.byID {
			keep(b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *MemoryBookingRepo) FindByID(ctx context.Context, id string) (booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return booking.Booking{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (r *MemoryBookingRepo) Create(ctx context.Context, b *booking.Booking) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.create(ctx, b)
}

func (r *MemoryBookingRepo) UpdateByID(ctx context.Context, id string, s booking.Slot) (booking.Booking, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.update(ctx, id, s)
}

func (r *MemoryBookingRepo) DeleteByID(ctx context.Context, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.delete(ctx, id)
}

// WithinDays serializes fn against every other writer regardless of days.
func (r *MemoryBookingRepo) WithinDays(ctx context.Context, _ []booking.Date, fn func(tx booking.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	snap := r.snapshot()
	if err := fn(memoryTx{r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *MemoryBookingRepo) create(ctx context.Context, b *booking.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	b.ID = r.newID()
	b.CreatedAt, b.UpdatedAt = now, now
	r.put(*b)
	return nil
}

func (r *MemoryBookingRepo) update(ctx context.Context, id string, s booking.Slot) (booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return booking.Booking{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	r.unindex(b)
	b.Date, b.StartTime, b.EndTime = s.Date, s.Start, s.End
	b.UpdatedAt = r.now()
	r.put(b)
	return b, nil
}

func (r *MemoryBookingRepo) delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return booking.ErrNotFound
	}
	r.unindex(b)
	delete(r.byID, id)
	return nil
}

// put and unindex expect mu held for writing.
func (r *MemoryBookingRepo) put(b booking.Booking) {
	r.byID[b.ID] = b
	ids := r.byDate[b.Date]
	if ids == nil {
		ids = make(map[string]struct{})
		r.byDate[b.Date] = ids
	}
	ids[b.ID] = struct{}{}
}

func (r *MemoryBookingRepo) unindex(b booking.Booking) {
	ids := r.byDate[b.Date]
	delete(ids, b.ID)
	if len(ids) == 0 {
		delete(r.byDate, b.Date)
	}
}

func (r *MemoryBookingRepo) snapshot() map[string]booking.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := make(map[string]booking.Booking, len(r.byID))
	for id, b := range r.byID {
		snap[id] = b
	}
	return snap
}

func (r *MemoryBookingRepo) restore(snap map[string]booking.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]booking.Booking, len(snap))
	r.byDate = make(map[booking.Date]map[string]struct{})
	for _, b := range snap {
		r.put(b)
	}
}

// memoryTx is the Store handed to WithinDays callbacks.  writeMu is already
// held, so its writes go straight to the unlocked variants.
type memoryTx struct{ r *MemoryBookingRepo }

func (t memoryTx) Find(ctx context.Context, f booking.Filter) ([]booking.Booking, error) {
	return t.r.Find(ctx, f)
}

func (t memoryTx) FindByID(ctx context.Context, id string) (booking.Booking, error) {
	return t.r.FindByID(ctx, id)
}

func (t memoryTx) Create(ctx context.Context, b *booking.Booking) error { return t.r.create(ctx, b) }

func (t memoryTx) UpdateByID(ctx context.Context, id string, s booking.Slot) (booking.Booking, error) {
	return t.r.update(ctx, id, s)
}

func (t memoryTx) DeleteByID(ctx context.Context, id string) error { return t.r.delete(ctx, id) }

func (t memoryTx) WithinDays(_ context.Context, _ []booking.Date, fn func(tx booking.Store) error) error {
	return fn(t)
}
