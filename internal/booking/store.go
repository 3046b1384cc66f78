// Package booking implements the seat booking lifecycle: reservation,
// arrival and departure scans, cancellation and the admin reset.  It is
// written against the Store contract below so that any transactional
// backend can hold seats, the booking ledger and entry logs.
package booking

import (
	"context"
	"time"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// Store is the persistence contract of the lifecycle.  Reads outside Atomic
// see committed state only.
type Store interface {
	// Atomic runs fn inside one transaction.  When fn returns an error
	// every write made through tx is discarded and that error is returned.
	// fn may run more than once, so it must reset any state it captures.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	Seat(ctx context.Context, number string) (model.Seat, error)
	Seats(ctx context.Context, floor *int) ([]model.Seat, error)
	// SeatHeldBy returns the PENDING or ACTIVE seat of roll, nil if none.
	SeatHeldBy(ctx context.Context, roll string) (*model.Seat, error)
	// DueSeats lists PENDING seats whose planned start is before
	// pendingBefore and ACTIVE seats whose planned expiry is before
	// activeBefore.
	DueSeats(ctx context.Context, pendingBefore, activeBefore time.Time) ([]model.Seat, error)

	Records(ctx context.Context, f RecordFilter) ([]model.BookingRecord, error)
	EntryLogs(ctx context.Context, f EntryFilter) ([]model.EntryLog, error)
}

// Tx is the set of writes available inside Store.Atomic.  Lock* methods
// read a seat and hold it until the transaction ends.  Callers lock seat
// rows before touching entry logs.
type Tx interface {
	// LockSeat returns model.ErrSeatNotFound for an unknown number.
	LockSeat(ctx context.Context, number string) (model.Seat, error)
	LockSeatHeldBy(ctx context.Context, roll string) (*model.Seat, error)
	LockOccupiedSeats(ctx context.Context) ([]model.Seat, error)
	// UpdateSeat writes seat only if its stored status still equals
	// expect.  It reports whether the row was written.
	UpdateSeat(ctx context.Context, expect model.SeatStatus, seat model.Seat) (bool, error)

	AppendRecord(ctx context.Context, rec *model.BookingRecord) error

	OpenEntry(ctx context.Context, roll string) (*model.EntryLog, error)
	InsertEntry(ctx context.Context, e *model.EntryLog) error
	CloseEntries(ctx context.Context, roll string, at time.Time) (int64, error)
	CloseAllEntries(ctx context.Context, at time.Time) (int64, error)
}

// RecordFilter narrows ledger listings.  Zero values mean "any".
type RecordFilter struct {
	RollNumber string
	SeatNumber string
	Status     model.BookingStatus
	Limit      int
}

// EntryFilter narrows entry log listings.
type EntryFilter struct {
	RollNumber string
	OpenOnly   bool
	Limit      int
}

// DefaultListLimit bounds listings that do not ask for a limit.
const DefaultListLimit = 100

// EffectiveLimit clamps a requested limit to [1, 500].
func EffectiveLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > 500:
		return 500
	}
	return n
}

// Free moves a seat locked in tx to FREE through ev.  When rec is non-nil it
// is stamped with the edge outcome and appended to the ledger in the same
// transaction.
func Free(ctx context.Context, tx Tx, seat model.Seat, ev model.Event, rec *model.BookingRecord) error {
	edge, ok := model.Transition(seat.Status, ev)
	if !ok || edge.To != model.SeatFree {
		return model.IllegalTransition(seat.Status, ev)
	}
	if rec != nil && edge.Concludes() {
		rec.Status = edge.Outcome
		if err := tx.AppendRecord(ctx, rec); err != nil {
			return err
		}
	}
	written, err := tx.UpdateSeat(ctx, seat.Status, seat.Freed())
	if err != nil {
		return err
	}
	if !written {
		return model.IllegalTransition(seat.Status, ev)
	}
	return nil
}
