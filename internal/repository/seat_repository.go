package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/bookmyseat/internal/model"
)

const seatColumns = `id, seat_number, floor, status, occupant_roll, planned_start, planned_expiry, updated_at`

// SeatRepo encapsulates access to the seats table.  Methods ending in Tx
// run inside a caller supplied transaction; the Lock variants take row
// locks with SELECT ... FOR UPDATE.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (model.Seat, error) {
	var (
		s        model.Seat
		status   string
		occupant sql.NullString
		start    sql.NullTime
		expiry   sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Number, &s.Floor, &status, &occupant, &start, &expiry, &s.UpdatedAt); err != nil {
		return model.Seat{}, err
	}
	s.Status = model.SeatStatus(status)
	if occupant.Valid {
		s.OccupantRoll = &occupant.String
	}
	if start.Valid {
		t := start.Time.UTC()
		s.PlannedStart = &t
	}
	if expiry.Valid {
		t := expiry.Time.UTC()
		s.PlannedExpiry = &t
	}
	return s, nil
}

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	out := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getByNumber(ctx context.Context, q querier, number string, lock bool) (model.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE seat_number = ? LIMIT 1`
	if lock {
		query += ` FOR UPDATE`
	}
	s, err := scanSeat(q.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, model.ErrSeatNotFound
	}
	return s, err
}

func heldBy(ctx context.Context, q querier, roll string) (*model.Seat, error) {
	s, err := scanSeat(q.QueryRowContext(ctx, `SELECT `+seatColumns+` FROM seats
        WHERE occupant_roll = ? AND status IN ('PENDING','ACTIVE') LIMIT 1`, roll))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByNumber returns model.ErrSeatNotFound for an unknown number.
func (r *SeatRepo) GetByNumber(ctx context.Context, number string) (model.Seat, error) {
	return getByNumber(ctx, r.db, number, false)
}

// List returns all seats ordered by floor and number, optionally on one
// floor only.
func (r *SeatRepo) List(ctx context.Context, floor *int) ([]model.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats`
	var args []any
	if floor != nil {
		query += ` WHERE floor = ?`
		args = append(args, *floor)
	}
	query += ` ORDER BY floor, seat_number`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// HeldBy returns the outstanding seat of roll or nil.
func (r *SeatRepo) HeldBy(ctx context.Context, roll string) (*model.Seat, error) {
	return heldBy(ctx, r.db, roll)
}

// Due lists seats the reconciler has to look at.
func (r *SeatRepo) Due(ctx context.Context, pendingBefore, activeBefore time.Time) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seats
        WHERE (status = 'PENDING' AND planned_start < ?)
           OR (status = 'ACTIVE' AND planned_expiry < ?)
        ORDER BY floor, seat_number`,
		pendingBefore.UTC(), activeBefore.UTC())
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// LockByNumberTx reads and locks one seat.
func (r *SeatRepo) LockByNumberTx(ctx context.Context, tx *sql.Tx, number string) (model.Seat, error) {
	return getByNumber(ctx, tx, number, true)
}

// LockHeldByTx finds the outstanding seat of roll with a plain read, then
// locks that row by seat number and checks it is still held by roll.  The
// occupant_roll predicate itself is never locked: a locking read that
// matches nothing takes gap locks on the index.
func (r *SeatRepo) LockHeldByTx(ctx context.Context, tx *sql.Tx, roll string) (*model.Seat, error) {
	found, err := heldBy(ctx, tx, roll)
	if err != nil || found == nil {
		return nil, err
	}
	s, err := getByNumber(ctx, tx, found.Number, true)
	if errors.Is(err, model.ErrSeatNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.Occupant() != roll || (s.Status != model.SeatPending && s.Status != model.SeatActive) {
		return nil, nil
	}
	return &s, nil
}

// LockOccupiedTx reads and locks every seat that is not FREE.
func (r *SeatRepo) LockOccupiedTx(ctx context.Context, tx *sql.Tx) ([]model.Seat, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE status <> 'FREE' ORDER BY floor, seat_number FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// CompareAndSetTx writes the occupancy columns of seat if the stored status
// still equals expect.  It reports whether a row was written.
func (r *SeatRepo) CompareAndSetTx(ctx context.Context, tx *sql.Tx, expect model.SeatStatus, seat model.Seat) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE seats
        SET status = ?, occupant_roll = ?, planned_start = ?, planned_expiry = ?, updated_at = UTC_TIMESTAMP()
        WHERE seat_number = ? AND status = ?`,
		string(seat.Status), nullString(seat.OccupantRoll), nullTime(seat.PlannedStart), nullTime(seat.PlannedExpiry),
		seat.Number, string(expect))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CreateBulk inserts seats that do not exist yet; existing numbers are
// left untouched.  It returns the number of rows inserted.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) (int64, error) {
	if len(seats) == 0 {
		return 0, nil
	}
	query := `INSERT IGNORE INTO seats (seat_number, floor, status) VALUES `
	args := make([]any, 0, len(seats)*2)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, 'FREE')"
		args = append(args, s.Number, s.Floor)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
