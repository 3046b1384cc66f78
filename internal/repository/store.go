package repository

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/model"
)

// Store is the MySQL booking.Store.  Each Atomic call is one transaction;
// row locks taken through the Tx are held until it commits or rolls back.
type Store struct {
	db       *sql.DB
	seats    *SeatRepo
	bookings *BookingRepo
	entries  *EntryLogRepo
}

// NewStore wires the seat, ledger and entry log repositories to db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		seats:    NewSeatRepo(db),
		bookings: NewBookingRepo(db),
		entries:  NewEntryLogRepo(db),
	}
}

// Atomic implements booking.Store.  Transactions run at READ COMMITTED so
// locking reads take record locks only.  A deadlock or lock wait timeout
// reported by InnoDB is retried once and then returned as model.ErrBusy.
func (s *Store) Atomic(ctx context.Context, fn func(tx booking.Tx) error) error {
	err := s.atomic(ctx, fn)
	if !isLockConflict(err) {
		return err
	}
	log.Printf("store: retrying transaction after lock conflict: %v", err)
	if err = s.atomic(ctx, fn); isLockConflict(err) {
		return model.ErrBusy
	}
	return err
}

func (s *Store) atomic(ctx context.Context, fn func(tx booking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) Seat(ctx context.Context, number string) (model.Seat, error) {
	return s.seats.GetByNumber(ctx, number)
}

func (s *Store) Seats(ctx context.Context, floor *int) ([]model.Seat, error) {
	return s.seats.List(ctx, floor)
}

func (s *Store) SeatHeldBy(ctx context.Context, roll string) (*model.Seat, error) {
	return s.seats.HeldBy(ctx, roll)
}

func (s *Store) DueSeats(ctx context.Context, pendingBefore, activeBefore time.Time) ([]model.Seat, error) {
	return s.seats.Due(ctx, pendingBefore, activeBefore)
}

func (s *Store) Records(ctx context.Context, f booking.RecordFilter) ([]model.BookingRecord, error) {
	return s.bookings.List(ctx, f)
}

func (s *Store) EntryLogs(ctx context.Context, f booking.EntryFilter) ([]model.EntryLog, error) {
	return s.entries.List(ctx, f)
}

// sqlTx adapts the ...Tx repository methods to booking.Tx.
type sqlTx struct {
	s  *Store
	tx *sql.Tx
}

func (t *sqlTx) LockSeat(ctx context.Context, number string) (model.Seat, error) {
	return t.s.seats.LockByNumberTx(ctx, t.tx, number)
}

func (t *sqlTx) LockSeatHeldBy(ctx context.Context, roll string) (*model.Seat, error) {
	return t.s.seats.LockHeldByTx(ctx, t.tx, roll)
}

func (t *sqlTx) LockOccupiedSeats(ctx context.Context) ([]model.Seat, error) {
	return t.s.seats.LockOccupiedTx(ctx, t.tx)
}

func (t *sqlTx) UpdateSeat(ctx context.Context, expect model.SeatStatus, seat model.Seat) (bool, error) {
	return t.s.seats.CompareAndSetTx(ctx, t.tx, expect, seat)
}

func (t *sqlTx) AppendRecord(ctx context.Context, rec *model.BookingRecord) error {
	return t.s.bookings.AppendTx(ctx, t.tx, rec)
}

func (t *sqlTx) OpenEntry(ctx context.Context, roll string) (*model.EntryLog, error) {
	return t.s.entries.OpenTx(ctx, t.tx, roll)
}

func (t *sqlTx) InsertEntry(ctx context.Context, e *model.EntryLog) error {
	return t.s.entries.InsertTx(ctx, t.tx, e)
}

func (t *sqlTx) CloseEntries(ctx context.Context, roll string, at time.Time) (int64, error) {
	return t.s.entries.CloseByRollTx(ctx, t.tx, roll, at)
}

func (t *sqlTx) CloseAllEntries(ctx context.Context, at time.Time) (int64, error) {
	return t.s.entries.CloseAllTx(ctx, t.tx, at)
}
