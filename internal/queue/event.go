// Package queue carries booking lifecycle events over RabbitMQ: the payload,
// the publisher used by the booking service and the audit-log consumer.
package queue

import (
	"time"

	"github.com/iliyamo/slot-booking/internal/booking"
)

// QueueName is the durable queue every booking event is routed to.
const QueueName = "booking.events"

// Event types.
const (
	EventCreated = "booking.created"
	EventUpdated = "booking.updated"
	EventDeleted = "booking.deleted"
)

// BookingEvent is published after a booking write commits.  It is
// self-contained so consumers never need to query the primary database.
type BookingEvent struct {
	Type       string `json:"type"`
	BookingID  string `json:"booking_id"`
	UserID     uint64 `json:"user_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	OccurredAt string `json:"occurred_at"`
}

// NewBookingEvent builds an event of the given type describing b.
func NewBookingEvent(typ string, b booking.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		UserID:     b.OwnerID,
		Date:       b.Date.String(),
		StartTime:  b.StartTime.String(),
		EndTime:    b.EndTime.String(),
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
