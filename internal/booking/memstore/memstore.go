// Package memstore is an in-process booking.Store.  Every transaction runs
// under one mutex against a private copy of the tables; the copy replaces
// the committed state only when the transaction function succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/model"
)

type tables struct {
	seats   map[string]model.Seat
	records []model.BookingRecord
	entries []model.EntryLog
	nextRec uint64
	nextEnt uint64
}

func (t *tables) clone() *tables {
	c := &tables{
		seats:   make(map[string]model.Seat, len(t.seats)),
		records: make([]model.BookingRecord, len(t.records)),
		entries: make([]model.EntryLog, len(t.entries)),
		nextRec: t.nextRec,
		nextEnt: t.nextEnt,
	}
	for k, v := range t.seats {
		c.seats[k] = v
	}
	copy(c.records, t.records)
	copy(c.entries, t.entries)
	return c
}

// Store keeps seats, ledger and entry logs in memory.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	t   *tables
}

// New returns a store holding the given seats.
func New(seats ...model.Seat) *Store {
	s := &Store{now: time.Now, t: &tables{seats: make(map[string]model.Seat)}}
	for i, seat := range seats {
		if seat.Status == "" {
			seat = seat.Freed()
		}
		if seat.ID == 0 {
			seat.ID = uint64(i + 1)
		}
		s.t.seats[seat.Number] = seat
	}
	return s
}

// UseClock sets the clock used for updated_at and created_at stamps.
func (s *Store) UseClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Atomic implements booking.Store.
func (s *Store) Atomic(ctx context.Context, fn func(tx booking.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.t.clone()
	if err := fn(&tx{t: work, now: s.now}); err != nil {
		return err
	}
	s.t = work
	return nil
}

// Seat implements booking.Store.
func (s *Store) Seat(_ context.Context, number string) (model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.t.seats[number]
	if !ok {
		return model.Seat{}, model.ErrSeatNotFound
	}
	return seat, nil
}

// Seats implements booking.Store.  Seats are ordered by floor then number.
func (s *Store) Seats(_ context.Context, floor *int) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Seat, 0, len(s.t.seats))
	for _, seat := range s.t.seats {
		if floor != nil && seat.Floor != *floor {
			continue
		}
		out = append(out, seat)
	}
	sortSeats(out)
	return out, nil
}

// SeatHeldBy implements booking.Store.
func (s *Store) SeatHeldBy(_ context.Context, roll string) (*model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return heldBy(s.t, roll), nil
}

// DueSeats implements booking.Store.
func (s *Store) DueSeats(_ context.Context, pendingBefore, activeBefore time.Time) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Seat
	for _, seat := range s.t.seats {
		switch {
		case seat.Status == model.SeatPending && seat.PlannedStart != nil && seat.PlannedStart.Before(pendingBefore):
			out = append(out, seat)
		case seat.Status == model.SeatActive && seat.PlannedExpiry != nil && seat.PlannedExpiry.Before(activeBefore):
			out = append(out, seat)
		}
	}
	sortSeats(out)
	return out, nil
}

// Records implements booking.Store, newest first.
func (s *Store) Records(_ context.Context, f booking.RecordFilter) ([]model.BookingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := booking.EffectiveLimit(f.Limit)
	out := make([]model.BookingRecord, 0)
	for i := len(s.t.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.t.records[i]
		if (f.RollNumber != "" && r.RollNumber != f.RollNumber) ||
			(f.SeatNumber != "" && r.SeatNumber != f.SeatNumber) ||
			(f.Status != "" && r.Status != f.Status) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// EntryLogs implements booking.Store, newest first.
func (s *Store) EntryLogs(_ context.Context, f booking.EntryFilter) ([]model.EntryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := booking.EffectiveLimit(f.Limit)
	out := make([]model.EntryLog, 0)
	for i := len(s.t.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.t.entries[i]
		if (f.RollNumber != "" && e.RollNumber != f.RollNumber) || (f.OpenOnly && !e.Open()) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type tx struct {
	t   *tables
	now func() time.Time
}

func (x *tx) LockSeat(_ context.Context, number string) (model.Seat, error) {
	seat, ok := x.t.seats[number]
	if !ok {
		return model.Seat{}, model.ErrSeatNotFound
	}
	return seat, nil
}

func (x *tx) LockSeatHeldBy(_ context.Context, roll string) (*model.Seat, error) {
	return heldBy(x.t, roll), nil
}

func (x *tx) LockOccupiedSeats(context.Context) ([]model.Seat, error) {
	var out []model.Seat
	for _, seat := range x.t.seats {
		if seat.Status != model.SeatFree {
			out = append(out, seat)
		}
	}
	sortSeats(out)
	return out, nil
}

func (x *tx) UpdateSeat(_ context.Context, expect model.SeatStatus, seat model.Seat) (bool, error) {
	cur, ok := x.t.seats[seat.Number]
	if !ok || cur.Status != expect {
		return false, nil
	}
	seat.ID = cur.ID
	seat.Floor = cur.Floor
	seat.UpdatedAt = x.now().UTC()
	x.t.seats[seat.Number] = seat
	return true, nil
}

func (x *tx) AppendRecord(_ context.Context, rec *model.BookingRecord) error {
	x.t.nextRec++
	rec.ID = x.t.nextRec
	rec.CreatedAt = x.now().UTC()
	x.t.records = append(x.t.records, *rec)
	return nil
}

func (x *tx) OpenEntry(_ context.Context, roll string) (*model.EntryLog, error) {
	for i := len(x.t.entries) - 1; i >= 0; i-- {
		if e := x.t.entries[i]; e.RollNumber == roll && e.Open() {
			return &e, nil
		}
	}
	return nil, nil
}

func (x *tx) InsertEntry(_ context.Context, e *model.EntryLog) error {
	x.t.nextEnt++
	e.ID = x.t.nextEnt
	x.t.entries = append(x.t.entries, *e)
	return nil
}

func (x *tx) CloseEntries(_ context.Context, roll string, at time.Time) (int64, error) {
	return x.close(func(e model.EntryLog) bool { return e.RollNumber == roll }, at), nil
}

func (x *tx) CloseAllEntries(_ context.Context, at time.Time) (int64, error) {
	return x.close(func(model.EntryLog) bool { return true }, at), nil
}

func (x *tx) close(match func(model.EntryLog) bool, at time.Time) int64 {
	var n int64
	for i := range x.t.entries {
		if x.t.entries[i].Open() && match(x.t.entries[i]) {
			exit := at
			x.t.entries[i].ExitTime = &exit
			n++
		}
	}
	return n
}

func heldBy(t *tables, roll string) *model.Seat {
	for _, seat := range t.seats {
		if seat.Status.Outstanding() && seat.Occupant() == roll {
			s := seat
			return &s
		}
	}
	return nil
}

func sortSeats(seats []model.Seat) {
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].Floor != seats[j].Floor {
			return seats[i].Floor < seats[j].Floor
		}
		return seats[i].Number < seats[j].Number
	})
}
