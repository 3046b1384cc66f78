// Package reconciler enforces the timeouts of the seat state machine.  A
// sweep turns PENDING seats whose start has passed into NO_SHOW records and
// ACTIVE seats whose planned expiry has passed into COMPLETED records.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/model"
)

// Result summarises one sweep.
type Result struct {
	NoShows   int  `json:"no_shows"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped,omitempty"`
}

// Locker keeps several replicas from sweeping at the same time.  ok is
// false when another holder owns the lock; unlock is only valid when ok.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// Reconciler runs sweeps against a booking.Store.
type Reconciler struct {
	store      booking.Store
	settings   booking.SettingsSource
	clock      clockwork.Clock
	applyGrace bool
	pub        booking.Publisher
	locker     Locker
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithClock(c clockwork.Clock) Option { return func(r *Reconciler) { r.clock = c } }

// WithGrace makes PENDING seats survive graceMinutes past their planned
// start before they are declared no-shows.
func WithGrace(on bool) Option { return func(r *Reconciler) { r.applyGrace = on } }

func WithPublisher(p booking.Publisher) Option { return func(r *Reconciler) { r.pub = p } }

// WithLocker guards every sweep with l.  A nil Locker disables the guard.
func WithLocker(l Locker) Option { return func(r *Reconciler) { r.locker = l } }

// New returns a Reconciler.  store and settings must be non-nil.
func New(store booking.Store, settings booking.SettingsSource, opts ...Option) *Reconciler {
	if store == nil || settings == nil {
		panic("nil dependency passed to reconciler.New")
	}
	r := &Reconciler{store: store, settings: settings, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Cutoff returns the instant after which a PENDING seat planned to start at
// plannedStart counts as a no-show.
func (r *Reconciler) Cutoff(plannedStart time.Time, cfg model.LibrarySettings) time.Time {
	if r.applyGrace {
		return plannedStart.Add(time.Duration(cfg.GraceMinutes) * time.Minute)
	}
	return plannedStart
}

// Sweep settles every due seat in its own transaction.  A failure on one
// seat is counted and logged and does not stop the others; the joined
// errors are returned alongside the result.
func (r *Reconciler) Sweep(ctx context.Context) (Result, error) {
	var res Result
	if r.locker != nil {
		unlock, ok, err := r.locker.TryLock(ctx)
		switch {
		case err != nil:
			log.Printf("reconciler: lease unavailable, sweeping unguarded: %v", err)
		case !ok:
			res.Skipped = true
			return res, nil
		default:
			defer unlock()
		}
	}

	now := r.clock.Now()
	cfg := r.settings.Get()
	pendingBefore := now
	if r.applyGrace {
		pendingBefore = now.Add(-time.Duration(cfg.GraceMinutes) * time.Minute)
	}
	due, err := r.store.DueSeats(ctx, pendingBefore, now)
	if err != nil {
		return res, model.Internal(fmt.Errorf("reconciler: list due seats: %w", err))
	}

	var (
		errs      []error
		concluded []model.BookingRecord
	)
	for _, seat := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rec, err := r.settle(ctx, seat.Number, now, cfg)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("seat %s: %w", seat.Number, err))
			log.Printf("reconciler: settle %s failed: %v", seat.Number, err)
			continue
		}
		if rec == nil {
			continue
		}
		switch rec.Status {
		case model.BookingNoShow:
			res.NoShows++
		case model.BookingCompleted:
			res.Completed++
		}
		concluded = append(concluded, *rec)
	}
	booking.Announce(ctx, r.pub, concluded)
	if res.NoShows+res.Completed+res.Failed > 0 {
		log.Printf("reconciler: sweep no_show=%d completed=%d failed=%d", res.NoShows, res.Completed, res.Failed)
	}
	return res, errors.Join(errs...)
}

// settle re-reads the seat under lock and applies the timeout edge if the
// trigger still holds.  A nil record means the seat no longer qualified or
// had no occupant to record.
func (r *Reconciler) settle(ctx context.Context, number string, now time.Time, cfg model.LibrarySettings) (*model.BookingRecord, error) {
	var out *model.BookingRecord
	err := r.store.Atomic(ctx, func(tx booking.Tx) error {
		out = nil
		seat, err := tx.LockSeat(ctx, number)
		if err != nil {
			return err
		}
		var ev model.Event
		switch {
		case seat.Status == model.SeatPending && seat.PlannedStart != nil && now.After(r.Cutoff(*seat.PlannedStart, cfg)):
			ev = model.EvNoShow
		case seat.Status == model.SeatActive && seat.PlannedExpiry != nil && now.After(*seat.PlannedExpiry):
			ev = model.EvExpire
		default:
			return nil
		}

		roll := seat.Occupant()
		if roll == "" {
			return booking.Free(ctx, tx, seat, ev, nil)
		}
		rec := plannedRecord(seat, now)
		if ev == model.EvNoShow {
			rec.XPEarned = cfg.NoShowPenaltyXP
		} else {
			rec.XPEarned = rec.DurationMinutes
			if _, err := tx.CloseEntries(ctx, roll, now.UTC()); err != nil {
				return err
			}
		}
		if err := booking.Free(ctx, tx, seat, ev, &rec); err != nil {
			return err
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, model.Internal(err)
	}
	return out, nil
}

// plannedRecord describes the booked window of seat.  Timeouts settle the
// planned window, not the time actually spent inside.
func plannedRecord(seat model.Seat, now time.Time) model.BookingRecord {
	start, end := now, now
	if seat.PlannedStart != nil {
		start = *seat.PlannedStart
	}
	if seat.PlannedExpiry != nil {
		end = *seat.PlannedExpiry
	}
	return model.BookingRecord{
		SeatNumber:      seat.Number,
		RollNumber:      seat.Occupant(),
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		DurationMinutes: model.DurationMinutes(start, end),
	}
}
