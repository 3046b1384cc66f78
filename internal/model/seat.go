package model

import "time"

// SeatStatus is the occupancy state of a seat.  The set is closed: a seat
// is always in exactly one of FREE, PENDING or ACTIVE.
type SeatStatus string

const (
	SeatFree    SeatStatus = "FREE"    // nobody holds the seat
	SeatPending SeatStatus = "PENDING" // reserved, arrival not yet validated
	SeatActive  SeatStatus = "ACTIVE"  // occupant scanned in, session running
)

// Valid reports whether s is one of the three seat states.
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatFree, SeatPending, SeatActive:
		return true
	}
	return false
}

// Outstanding reports whether the status counts as a booking the occupant
// still holds.
func (s SeatStatus) Outstanding() bool { return s == SeatPending || s == SeatActive }

// Seat describes one physical seat of the library and its current
// occupancy.  Seats are provisioned once and never deleted.
//
// Fields:
//  ID            – seats.id
//  Number        – unique human readable number such as "F2-15".
//  Floor         – floor index, 0 for the ground floor.
//  Status        – FREE, PENDING or ACTIVE.
//  OccupantRoll  – roll number of the holder (nil when FREE).
//  PlannedStart  – requested arrival time (nil when FREE).
//  PlannedExpiry – end of the booked session (nil when FREE).
type Seat struct {
	ID            uint64     `json:"id"`
	Number        string     `json:"seat_number"`
	Floor         int        `json:"floor"`
	Status        SeatStatus `json:"status"`
	OccupantRoll  *string    `json:"occupant_roll,omitempty"`
	PlannedStart  *time.Time `json:"planned_start,omitempty"`
	PlannedExpiry *time.Time `json:"planned_expiry,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Consistent checks the occupancy invariant:
// FREE <=> no occupant <=> no planned start <=> no planned expiry.
func (s Seat) Consistent() bool {
	if !s.Status.Valid() {
		return false
	}
	free := s.Status == SeatFree
	return free == (s.OccupantRoll == nil) &&
		free == (s.PlannedStart == nil) &&
		free == (s.PlannedExpiry == nil)
}

// Occupant returns the occupant roll number or "" for a free seat.
func (s Seat) Occupant() string {
	if s.OccupantRoll == nil {
		return ""
	}
	return *s.OccupantRoll
}

// Freed returns a copy of s with every occupancy field cleared.
func (s Seat) Freed() Seat {
	s.Status = SeatFree
	s.OccupantRoll = nil
	s.PlannedStart = nil
	s.PlannedExpiry = nil
	return s
}

// Reserved returns a copy of s held as PENDING by roll for [start, start+d).
func (s Seat) Reserved(roll string, start time.Time, d time.Duration) Seat {
	expiry := start.Add(d)
	st := start
	s.Status = SeatPending
	s.OccupantRoll = &roll
	s.PlannedStart = &st
	s.PlannedExpiry = &expiry
	return s
}
