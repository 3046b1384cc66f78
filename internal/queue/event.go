// Package queue carries booking events over RabbitMQ: a publisher that
// announces every concluded booking and a consumer that appends them to a
// ledger log file.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// BookingConcludedEvent is published once per ledger row, after the row is
// committed.  EventID lets consumers drop redeliveries.
type BookingConcludedEvent struct {
	EventID         string `json:"event_id"`
	BookingID       uint64 `json:"booking_id"`
	SeatNumber      string `json:"seat_number"`
	RollNumber      string `json:"roll_number"`
	Status          string `json:"status"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	XPEarned        int    `json:"xp_earned"`
	ConcludedAt     string `json:"concluded_at"`
}

// NewBookingConcludedEvent builds the event for rec.
func NewBookingConcludedEvent(rec model.BookingRecord, at time.Time) BookingConcludedEvent {
	return BookingConcludedEvent{
		EventID:         uuid.NewString(),
		BookingID:       rec.ID,
		SeatNumber:      rec.SeatNumber,
		RollNumber:      rec.RollNumber,
		Status:          string(rec.Status),
		StartTime:       rec.StartTime.UTC().Format(time.RFC3339),
		EndTime:         rec.EndTime.UTC().Format(time.RFC3339),
		DurationMinutes: rec.DurationMinutes,
		XPEarned:        rec.XPEarned,
		ConcludedAt:     at.UTC().Format(time.RFC3339),
	}
}
