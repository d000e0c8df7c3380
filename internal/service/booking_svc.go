// Package service runs the booking lifecycle: validate, check for
// conflicts, persist and announce the change.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/queue"
)

// AnyOwner is the scope that sees every booking.
const AnyOwner uint64 = 0

const publishTimeout = 3 * time.Second

// SlotInput carries the raw, unvalidated fields of a create or update.
type SlotInput struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// BookingSvc coordinates the validator, the conflict detector and the store.
type BookingSvc struct {
	store booking.Store
	pub   queue.Publisher
	log   *zap.Logger
	now   func() time.Time
	loc   *time.Location
}

// Option configures a BookingSvc.
type Option func(*BookingSvc)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *BookingSvc) { s.now = now }
}

// WithLocation sets the zone whose wall clock "now" is read in before
// validation.  Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *BookingSvc) { s.loc = loc }
}

// NewBookingSvc builds the service over store.  A nil pub drops events and a
// nil log discards output.
func NewBookingSvc(store booking.Store, pub queue.Publisher, log *zap.Logger, opts ...Option) *BookingSvc {
	s := &BookingSvc{store: store, pub: pub, log: log, now: time.Now, loc: time.Local}
	for _, o := range opts {
		o(s)
	}
	if s.pub == nil {
		s.pub = queue.NopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *BookingSvc) clock() time.Time { return s.now().In(s.loc) }

// Create validates in, rejects it when it overlaps an existing booking on
// the same date and stores it for owner.
func (s *BookingSvc) Create(ctx context.Context, owner uint64, in SlotInput) (booking.Booking, error) {
	slot, err := booking.Check(in.Date, in.StartTime, in.EndTime, s.clock())
	if err != nil {
		return booking.Booking{}, err
	}

	b := booking.Booking{OwnerID: owner, Date: slot.Date, StartTime: slot.Start, EndTime: slot.End}
	err = s.store.WithinDays(ctx, []booking.Date{slot.Date}, func(tx booking.Store) error {
		conflict, err := booking.NewDetector(tx).HasConflict(ctx, slot, "")
		if err != nil {
			return err
		}
		if conflict {
			return booking.ErrSlotConflict
		}
		return tx.Create(ctx, &b)
	})
	if err != nil {
		return booking.Booking{}, storeErr(err)
	}

	s.log.Info("booking created", zap.String("booking_id", b.ID), zap.Uint64("user_id", b.OwnerID), zap.Stringer("date", b.Date))
	s.publish(ctx, queue.EventCreated, b)
	return b, nil
}

// Get returns the booking with id if scope may see it.
func (s *BookingSvc) Get(ctx context.Context, scope uint64, id string) (booking.Booking, error) {
	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		return booking.Booking{}, storeErr(err)
	}
	if !visible(scope, b) {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

// List returns the bookings visible to scope ordered by date and start.
func (s *BookingSvc) List(ctx context.Context, scope uint64) ([]booking.Booking, error) {
	out, err := s.store.Find(ctx, booking.Filter{OwnerID: scope})
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// Update moves booking id to the slot described by in.  The booking must be
// visible to scope (ErrNotFound otherwise) and in must carry all three fields,
// exactly as for Create.  The booking never conflicts with its own previous
// interval.
func (s *BookingSvc) Update(ctx context.Context, scope uint64, id string, in SlotInput) (booking.Booking, error) {
	cur, err := s.Get(ctx, scope, id)
	if err != nil {
		return booking.Booking{}, err
	}
	slot, err := booking.Check(in.Date, in.StartTime, in.EndTime, s.clock())
	if err != nil {
		return booking.Booking{}, err
	}

	var updated booking.Booking
	err = s.store.WithinDays(ctx, []booking.Date{cur.Date, slot.Date}, func(tx booking.Store) error {
		// The row may have gone while we waited for the lock.
		if _, err := tx.FindByID(ctx, id); err != nil {
			return err
		}
		conflict, err := booking.NewDetector(tx).HasConflict(ctx, slot, id)
		if err != nil {
			return err
		}
		if conflict {
			return booking.ErrSlotConflict
		}
		updated, err = tx.UpdateByID(ctx, id, slot)
		return err
	})
	if err != nil {
		return booking.Booking{}, storeErr(err)
	}

	s.log.Info("booking updated", zap.String("booking_id", id), zap.Uint64("user_id", updated.OwnerID), zap.Stringer("date", updated.Date))
	s.publish(ctx, queue.EventUpdated, updated)
	return updated, nil
}

// Delete removes booking id.  Freeing an interval never conflicts, so no
// day lock is taken.
func (s *BookingSvc) Delete(ctx context.Context, scope uint64, id string) error {
	cur, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return storeErr(err)
	}
	s.log.Info("booking deleted", zap.String("booking_id", id), zap.Uint64("user_id", cur.OwnerID))
	s.publish(ctx, queue.EventDeleted, cur)
	return nil
}

func (s *BookingSvc) publish(ctx context.Context, typ string, b booking.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, queue.NewBookingEvent(typ, b, s.now())); err != nil {
		s.log.Warn("publish booking event failed", zap.String("type", typ), zap.String("booking_id", b.ID), zap.Error(err))
	}
}

func visible(scope uint64, b booking.Booking) bool {
	return scope == AnyOwner || b.OwnerID == scope
}

// storeErr passes business outcomes through and tags everything else as a
// store failure.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, booking.ErrSlotConflict),
		errors.Is(err, booking.ErrStoreUnavailable),
		booking.IsValidation(err):
		return err
	}
	return fmt.Errorf("%w: %w", booking.ErrStoreUnavailable, err)
}
