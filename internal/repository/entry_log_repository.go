package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/model"
)

// EntryLogRepo tracks physical presence in the entry_logs table.
type EntryLogRepo struct {
	db *sql.DB
}

func NewEntryLogRepo(db *sql.DB) *EntryLogRepo { return &EntryLogRepo{db: db} }

const entryColumns = `id, roll_number, seat_number, entry_time, exit_time`

func scanEntry(row rowScanner) (model.EntryLog, error) {
	var (
		e    model.EntryLog
		exit sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.RollNumber, &e.SeatNumber, &e.EntryTime, &exit); err != nil {
		return model.EntryLog{}, err
	}
	if exit.Valid {
		t := exit.Time.UTC()
		e.ExitTime = &t
	}
	return e, nil
}

// OpenTx returns the latest open entry of roll, nil if the occupant is not
// inside.
func (r *EntryLogRepo) OpenTx(ctx context.Context, tx *sql.Tx, roll string) (*model.EntryLog, error) {
	e, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entry_logs
        WHERE roll_number = ? AND exit_time IS NULL ORDER BY id DESC LIMIT 1 FOR UPDATE`, roll))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertTx opens a new entry and fills in its ID.
func (r *EntryLogRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.EntryLog) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO entry_logs (roll_number, seat_number, entry_time) VALUES (?, ?, ?)`,
		e.RollNumber, e.SeatNumber, e.EntryTime.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// CloseByRollTx stamps every open entry of roll with at.
func (r *EntryLogRepo) CloseByRollTx(ctx context.Context, tx *sql.Tx, roll string, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE entry_logs SET exit_time = ? WHERE roll_number = ? AND exit_time IS NULL`, at.UTC(), roll)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CloseAllTx stamps every open entry with at.
func (r *EntryLogRepo) CloseAllTx(ctx context.Context, tx *sql.Tx, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE entry_logs SET exit_time = ? WHERE exit_time IS NULL`, at.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List returns entries matching f, newest first.
func (r *EntryLogRepo) List(ctx context.Context, f booking.EntryFilter) ([]model.EntryLog, error) {
	var (
		where []string
		args  []any
	)
	if f.RollNumber != "" {
		where = append(where, "roll_number = ?")
		args = append(args, f.RollNumber)
	}
	if f.OpenOnly {
		where = append(where, "exit_time IS NULL")
	}
	query := `SELECT ` + entryColumns + ` FROM entry_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, booking.EffectiveLimit(f.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.EntryLog, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
