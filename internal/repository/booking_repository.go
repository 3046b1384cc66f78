package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/model"
)

// BookingRepo is the append-only ledger stored in the bookings table.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// AppendTx inserts rec and fills in its ID and CreatedAt.
func (r *BookingRepo) AppendTx(ctx context.Context, tx *sql.Tx, rec *model.BookingRecord) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (seat_number, roll_number, start_time, end_time, duration_minutes, status, xp_earned)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SeatNumber, rec.RollNumber, rec.StartTime.UTC(), rec.EndTime.UTC(),
		rec.DurationMinutes, string(rec.Status), rec.XPEarned)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return tx.QueryRowContext(ctx, `SELECT created_at FROM bookings WHERE id = ?`, id).Scan(&rec.CreatedAt)
}

// List returns ledger rows matching f, newest first.
func (r *BookingRepo) List(ctx context.Context, f booking.RecordFilter) ([]model.BookingRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.RollNumber != "" {
		where = append(where, "roll_number = ?")
		args = append(args, f.RollNumber)
	}
	if f.SeatNumber != "" {
		where = append(where, "seat_number = ?")
		args = append(args, f.SeatNumber)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT id, seat_number, roll_number, start_time, end_time, duration_minutes, status, xp_earned, created_at
        FROM bookings`
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
	out := make([]model.BookingRecord, 0)
	for rows.Next() {
		var (
			b      model.BookingRecord
			status string
		)
		if err := rows.Scan(&b.ID, &b.SeatNumber, &b.RollNumber, &b.StartTime, &b.EndTime,
			&b.DurationMinutes, &status, &b.XPEarned, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Status = model.BookingStatus(status)
		out = append(out, b)
	}
	return out, rows.Err()
}
