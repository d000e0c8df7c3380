package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/slot-booking/internal/booking"
)

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const bookingColumns = "id, user_id, booking_date, start_minute, end_minute, created_at, updated_at"

// BookingRepo stores bookings in MySQL.  Times of day are kept as minutes
// since midnight so interval comparisons stay plain integer arithmetic.
type BookingRepo struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

// NewBookingRepo constructs a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db, q: db}
}

// Find returns bookings matching f ordered by date, start time and id.
func (r *BookingRepo) Find(ctx context.Context, f booking.Filter) ([]booking.Booking, error) {
	var (
		where []string
		args  []any
	)
	if f.Date != nil {
		where = append(where, "booking_date = ?")
		args = append(args, f.Date.String())
	}
	if f.OwnerID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.OwnerID)
	}
	q := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY booking_date ASC, start_minute ASC, id ASC"

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FindByID returns booking.ErrNotFound when no row matches.
func (r *BookingRepo) FindByID(ctx context.Context, id string) (booking.Booking, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, err
}

// Create assigns a new id and timestamps to b and inserts it.
func (r *BookingRepo) Create(ctx context.Context, b *booking.Booking) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	b.ID = uuid.NewString()
	b.CreatedAt, b.UpdatedAt = now, now
	const q = `INSERT INTO bookings (id, user_id, booking_date, start_minute, end_minute, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, q, b.ID, b.OwnerID, b.Date.String(), int(b.StartTime), int(b.EndTime), b.CreatedAt, b.UpdatedAt)
	return err
}

// UpdateByID moves the booking to s and returns the stored row.  The DSN
// sets clientFoundRows so an unchanged row still counts as affected.
func (r *BookingRepo) UpdateByID(ctx context.Context, id string, s booking.Slot) (booking.Booking, error) {
	const q = `UPDATE bookings SET booking_date = ?, start_minute = ?, end_minute = ?, updated_at = ? WHERE id = ?`
	res, err := r.q.ExecContext(ctx, q, s.Date.String(), int(s.Start), int(s.End), time.Now().UTC().Truncate(time.Millisecond), id)
	if err != nil {
		return booking.Booking{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return booking.Booking{}, err
	}
	if n == 0 {
		return booking.Booking{}, booking.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// DeleteByID hard-deletes the booking.
func (r *BookingRepo) DeleteByID(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// WithinDays opens a transaction and takes a row lock per day in
// booking_days, ascending, so writers on the same day queue behind each
// other while other days proceed.  fn receives a repo bound to the
// transaction; the transaction commits only when fn returns nil.
func (r *BookingRepo) WithinDays(ctx context.Context, days []booking.Date, fn func(tx booking.Store) error) error {
	if r.tx != nil {
		if err := lockDays(ctx, r.tx, days); err != nil {
			return err
		}
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := lockDays(ctx, tx, days); err != nil {
		return err
	}
	if err := fn(&BookingRepo{db: r.db, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func lockDays(ctx context.Context, tx *sql.Tx, days []booking.Date) error {
	for _, d := range sortedDays(days) {
		if _, err := tx.ExecContext(ctx, "INSERT IGNORE INTO booking_days (day) VALUES (?)", d.String()); err != nil {
			return fmt.Errorf("lock day %s: %w", d, err)
		}
		var day time.Time
		if err := tx.QueryRowContext(ctx, "SELECT day FROM booking_days WHERE day = ? FOR UPDATE", d.String()).Scan(&day); err != nil {
			return fmt.Errorf("lock day %s: %w", d, err)
		}
	}
	return nil
}

// sortedDays returns days ascending without duplicates.
func sortedDays(days []booking.Date) []booking.Date {
	out := make([]booking.Date, 0, len(days))
	seen := make(map[booking.Date]struct{}, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (booking.Booking, error) {
	var (
		b          booking.Booking
		day        time.Time
		start, end int
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &day, &start, &end, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return booking.Booking{}, err
	}
	b.Date = booking.DateOf(day.UTC())
	b.StartTime, b.EndTime = booking.TimeOfDay(start), booking.TimeOfDay(end)
	return b, nil
}
