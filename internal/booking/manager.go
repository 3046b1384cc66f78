package booking

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// SettingsSource hands out a snapshot of the library settings.  Each
// operation takes one snapshot so that a concurrent admin update cannot
// change the rules halfway through a validation.
type SettingsSource interface {
	Get() model.LibrarySettings
}

// ScanAction tells the scanner what a scan did.
type ScanAction string

const (
	ActionEntry ScanAction = "ENTRY"
	ActionExit  ScanAction = "EXIT"
)

// ScanResult is returned by Scan.  DurationMinutes is only set on EXIT.
type ScanResult struct {
	Action          ScanAction  `json:"action"`
	SeatNumber      string      `json:"seat_number"`
	DurationMinutes *int        `json:"duration_minutes,omitempty"`
	Seat            *model.Seat `json:"seat,omitempty"`
}

// Manager applies the user triggered transitions of the seat state machine.
// All methods are safe for concurrent use; serialization per seat is the
// Store's job.
type Manager struct {
	store    Store
	settings SettingsSource
	clock    clockwork.Clock
	loc      *time.Location
	pub      Publisher
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option { return func(m *Manager) { m.clock = c } }

// WithLocation sets the time zone working hours are expressed in.
func WithLocation(loc *time.Location) Option { return func(m *Manager) { m.loc = loc } }

// WithPublisher announces every concluded booking to p.
func WithPublisher(p Publisher) Option { return func(m *Manager) { m.pub = p } }

// NewManager constructs a Manager.  store and settings must be non-nil.
func NewManager(store Store, settings SettingsSource, opts ...Option) *Manager {
	if store == nil || settings == nil {
		panic("nil dependency passed to booking.NewManager")
	}
	m := &Manager{store: store, settings: settings, clock: clockwork.NewRealClock(), loc: time.UTC}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Reserve holds a FREE seat for roll from start for durationMinutes.  The
// seat becomes PENDING with its planned expiry fixed to start+duration.
// No ledger record is written.
func (m *Manager) Reserve(ctx context.Context, roll, seatNumber string, start time.Time, durationMinutes int) (model.Seat, error) {
	roll = model.NormalizeRoll(roll)
	seatNumber = strings.ToUpper(strings.TrimSpace(seatNumber))
	switch {
	case roll == "":
		return model.Seat{}, model.ErrRollRequired
	case seatNumber == "":
		return model.Seat{}, model.ErrSeatRequired
	case start.IsZero():
		return model.Seat{}, model.ErrStartRequired
	}
	cfg := m.settings.Get()
	if !cfg.DurationAllowed(durationMinutes) {
		return model.Seat{}, model.ErrInvalidDuration
	}
	now := m.clock.Now()
	start = start.In(m.loc).Truncate(time.Second)
	if start.Before(now.Add(-time.Minute)) {
		return model.Seat{}, model.ErrStartInPast
	}
	length := time.Duration(durationMinutes) * time.Minute
	if !cfg.Covers(start, start.Add(length)) {
		return model.Seat{}, model.ErrOutsideHours
	}

	var reserved model.Seat
	err := m.store.Atomic(ctx, func(tx Tx) error {
		// Read-then-write: two reservations by the same roll for two
		// different seats may both pass this check.
		held, err := tx.LockSeatHeldBy(ctx, roll)
		if err != nil {
			return err
		}
		if held != nil {
			return model.ErrAlreadyBooked
		}
		seat, err := tx.LockSeat(ctx, seatNumber)
		if err != nil {
			return err
		}
		if _, ok := model.Transition(seat.Status, model.EvReserve); !ok {
			return model.ErrSeatTaken
		}
		next := seat.Reserved(roll, start.UTC(), length)
		written, err := tx.UpdateSeat(ctx, model.SeatFree, next)
		if err != nil {
			return err
		}
		if !written {
			return model.ErrSeatTaken
		}
		reserved = next
		return nil
	})
	if err != nil {
		return model.Seat{}, model.Internal(err)
	}
	return reserved, nil
}

// ValidateArrival moves the PENDING seat of roll to ACTIVE and opens an
// entry log.  Planned start and expiry are left untouched.
func (m *Manager) ValidateArrival(ctx context.Context, roll string) (model.Seat, error) {
	roll = model.NormalizeRoll(roll)
	if roll == "" {
		return model.Seat{}, model.ErrRollRequired
	}
	now := m.clock.Now()
	var seat model.Seat
	err := m.store.Atomic(ctx, func(tx Tx) error {
		var err error
		seat, err = m.arrive(ctx, tx, roll, now)
		return err
	})
	if err != nil {
		return model.Seat{}, model.Internal(err)
	}
	return seat, nil
}

func (m *Manager) arrive(ctx context.Context, tx Tx, roll string, now time.Time) (model.Seat, error) {
	held, err := tx.LockSeatHeldBy(ctx, roll)
	if err != nil {
		return model.Seat{}, err
	}
	return m.admit(ctx, tx, roll, held, now)
}

// admit activates held, which the caller has already locked.
func (m *Manager) admit(ctx context.Context, tx Tx, roll string, held *model.Seat, now time.Time) (model.Seat, error) {
	if held == nil {
		return model.Seat{}, model.ErrNoPendingBooking
	}
	if held.Status == model.SeatActive {
		return model.Seat{}, model.ErrAlreadyActive
	}
	edge, ok := model.Transition(held.Status, model.EvArrive)
	if !ok {
		return model.Seat{}, model.IllegalTransition(held.Status, model.EvArrive)
	}
	next := *held
	next.Status = edge.To
	written, err := tx.UpdateSeat(ctx, held.Status, next)
	if err != nil {
		return model.Seat{}, err
	}
	if !written {
		return model.Seat{}, model.IllegalTransition(held.Status, model.EvArrive)
	}
	entry := &model.EntryLog{RollNumber: roll, SeatNumber: held.Number, EntryTime: now.UTC()}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return model.Seat{}, err
	}
	return next, nil
}

// Scan is the single barcode endpoint.  An open entry log means the
// occupant is inside and the scan is an exit: the entry is closed, and an
// ACTIVE seat held by the occupant is completed and freed in the same
// transaction.  Without an open entry the scan validates arrival.
func (m *Manager) Scan(ctx context.Context, roll string) (ScanResult, error) {
	roll = model.NormalizeRoll(roll)
	if roll == "" {
		return ScanResult{}, model.ErrRollRequired
	}
	now := m.clock.Now()
	var (
		res       ScanResult
		concluded []model.BookingRecord
	)
	err := m.store.Atomic(ctx, func(tx Tx) error {
		concluded = concluded[:0]
		// Seat row before entry log, the order every other path uses.
		held, err := tx.LockSeatHeldBy(ctx, roll)
		if err != nil {
			return err
		}
		entry, err := tx.OpenEntry(ctx, roll)
		if err != nil {
			return err
		}
		if entry == nil {
			seat, err := m.admit(ctx, tx, roll, held, now)
			if err != nil {
				return err
			}
			res = ScanResult{Action: ActionEntry, SeatNumber: seat.Number, Seat: &seat}
			return nil
		}

		if _, err := tx.CloseEntries(ctx, roll, now.UTC()); err != nil {
			return err
		}
		minutes := model.DurationMinutes(entry.EntryTime, now)
		res = ScanResult{Action: ActionExit, SeatNumber: entry.SeatNumber, DurationMinutes: &minutes}

		if held == nil || held.Status != model.SeatActive {
			return nil
		}
		rec := model.BookingRecord{
			SeatNumber:      held.Number,
			RollNumber:      roll,
			StartTime:       entry.EntryTime.UTC(),
			EndTime:         now.UTC(),
			DurationMinutes: minutes,
			XPEarned:        minutes,
		}
		if err := Free(ctx, tx, *held, model.EvDepart, &rec); err != nil {
			return err
		}
		res.SeatNumber = held.Number
		concluded = append(concluded, rec)
		return nil
	})
	if err != nil {
		return ScanResult{}, model.Internal(err)
	}
	Announce(ctx, m.pub, concluded)
	return res, nil
}

// Cancel gives up the outstanding booking of roll.  A CANCELLED record is
// written with the minutes actually spent inside (0 if the occupant never
// arrived) and the seat is freed.
func (m *Manager) Cancel(ctx context.Context, roll string) (model.BookingRecord, error) {
	roll = model.NormalizeRoll(roll)
	if roll == "" {
		return model.BookingRecord{}, model.ErrRollRequired
	}
	now := m.clock.Now()
	var rec model.BookingRecord
	err := m.store.Atomic(ctx, func(tx Tx) error {
		held, err := tx.LockSeatHeldBy(ctx, roll)
		if err != nil {
			return err
		}
		if held == nil {
			return model.ErrNoActiveBooking
		}
		entry, err := tx.OpenEntry(ctx, roll)
		if err != nil {
			return err
		}
		start, minutes := now, 0
		if held.PlannedStart != nil {
			start = *held.PlannedStart
		}
		if entry != nil {
			start = entry.EntryTime
			minutes = model.DurationMinutes(entry.EntryTime, now)
			if _, err := tx.CloseEntries(ctx, roll, now.UTC()); err != nil {
				return err
			}
		}
		rec = model.BookingRecord{
			SeatNumber:      held.Number,
			RollNumber:      roll,
			StartTime:       start.UTC(),
			EndTime:         now.UTC(),
			DurationMinutes: minutes,
		}
		return Free(ctx, tx, *held, model.EvCancel, &rec)
	})
	if err != nil {
		return model.BookingRecord{}, model.Internal(err)
	}
	Announce(ctx, m.pub, []model.BookingRecord{rec})
	return rec, nil
}

// AdminFreeAll frees every occupied seat, writing an ADMIN_FREED record for
// each seat that had an occupant and closing all open entry logs.  Running
// it again finds nothing to free and writes nothing.
func (m *Manager) AdminFreeAll(ctx context.Context) (int, error) {
	now := m.clock.Now()
	var (
		freed     int
		concluded []model.BookingRecord
	)
	err := m.store.Atomic(ctx, func(tx Tx) error {
		concluded = concluded[:0]
		seats, err := tx.LockOccupiedSeats(ctx)
		if err != nil {
			return err
		}
		freed = len(seats)
		for _, seat := range seats {
			var rec *model.BookingRecord
			if roll := seat.Occupant(); roll != "" {
				start := now
				if seat.PlannedStart != nil {
					start = *seat.PlannedStart
				}
				rec = &model.BookingRecord{
					SeatNumber: seat.Number,
					RollNumber: roll,
					StartTime:  start.UTC(),
					EndTime:    now.UTC(),
				}
			}
			if err := Free(ctx, tx, seat, model.EvAdminFree, rec); err != nil {
				return err
			}
			if rec != nil {
				concluded = append(concluded, *rec)
			}
		}
		_, err = tx.CloseAllEntries(ctx, now.UTC())
		return err
	})
	if err != nil {
		return 0, model.Internal(err)
	}
	Announce(ctx, m.pub, concluded)
	return freed, nil
}

// Status returns the outstanding seat of roll, or nil.
func (m *Manager) Status(ctx context.Context, roll string) (*model.Seat, error) {
	roll = model.NormalizeRoll(roll)
	if roll == "" {
		return nil, model.ErrRollRequired
	}
	seat, err := m.store.SeatHeldBy(ctx, roll)
	return seat, model.Internal(err)
}

// ListSeats returns every seat, optionally restricted to one floor.
func (m *Manager) ListSeats(ctx context.Context, floor *int) ([]model.Seat, error) {
	seats, err := m.store.Seats(ctx, floor)
	return seats, model.Internal(err)
}

// History returns the ledger rows of roll, newest first.
func (m *Manager) History(ctx context.Context, roll string, limit int) ([]model.BookingRecord, error) {
	roll = model.NormalizeRoll(roll)
	if roll == "" {
		return nil, model.ErrRollRequired
	}
	recs, err := m.store.Records(ctx, RecordFilter{RollNumber: roll, Limit: EffectiveLimit(limit)})
	return recs, model.Internal(err)
}

// Ledger lists booking records for the admin panel.
func (m *Manager) Ledger(ctx context.Context, f RecordFilter) ([]model.BookingRecord, error) {
	f.RollNumber = model.NormalizeRoll(f.RollNumber)
	f.Limit = EffectiveLimit(f.Limit)
	recs, err := m.store.Records(ctx, f)
	return recs, model.Internal(err)
}

// EntryLogs lists attendance rows for the admin panel.
func (m *Manager) EntryLogs(ctx context.Context, f EntryFilter) ([]model.EntryLog, error) {
	f.RollNumber = model.NormalizeRoll(f.RollNumber)
	f.Limit = EffectiveLimit(f.Limit)
	logs, err := m.store.EntryLogs(ctx, f)
	return logs, model.Internal(err)
}
