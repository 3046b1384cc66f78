package model

import "time"

// BookingStatus is the terminal status of a concluded booking attempt.
// COMPLETED is a ledger status only; seats never carry it.
type BookingStatus string

const (
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
	BookingNoShow     BookingStatus = "NO_SHOW"
	BookingAdminFreed BookingStatus = "ADMIN_FREED"
)

// Valid reports whether s is a known ledger status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingCompleted, BookingCancelled, BookingNoShow, BookingAdminFreed:
		return true
	}
	return false
}

// BookingRecord is an immutable ledger entry written exactly once when a
// booking concludes, whatever the path.
type BookingRecord struct {
	ID              uint64        `json:"id"`
	SeatNumber      string        `json:"seat_number"`
	RollNumber      string        `json:"roll_number"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	XPEarned        int           `json:"xp_earned"`
	CreatedAt       time.Time     `json:"created_at"`
}

// DurationMinutes returns the whole minutes between start and end, rounded
// down and never negative.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// EntryLog tracks physical presence.  A row is open while ExitTime is nil.
type EntryLog struct {
	ID         uint64     `json:"id"`
	RollNumber string     `json:"roll_number"`
	SeatNumber string     `json:"seat_number"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
}

// Open reports whether the occupant has not scanned out yet.
func (e EntryLog) Open() bool { return e.ExitTime == nil }
