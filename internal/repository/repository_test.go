package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/model"
)

var seatCols = []string{"id", "seat_number", "floor", "status", "occupant_roll", "planned_start", "planned_expiry", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type staticSettings struct{}

func (staticSettings) Get() model.LibrarySettings { return model.DefaultSettings() }

func TestReserveAgainstMySQL(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	start := now.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats")+`\s+WHERE occupant_roll = \? AND status IN \('PENDING','ACTIVE'\) LIMIT 1$`).
		WithArgs("R001").
		WillReturnRows(sqlmock.NewRows(seatCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE seat_number = ? LIMIT 1 FOR UPDATE")).
		WithArgs("A1").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(1, "A1", 0, "FREE", nil, nil, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats")).
		WithArgs("PENDING", "R001", start, start.Add(time.Hour), "A1", "FREE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mgr := booking.NewManager(NewStore(db), staticSettings{}, booking.WithClock(clockwork.NewFakeClockAt(now)))
	seat, err := mgr.Reserve(context.Background(), "r001", "a1", start, 60)
	require.NoError(t, err)
	assert.Equal(t, model.SeatPending, seat.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveLostRaceRollsBack(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("occupant_roll = ").WithArgs("R002").WillReturnRows(sqlmock.NewRows(seatCols))
	mock.ExpectQuery("FOR UPDATE").WithArgs("A1").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(1, "A1", 0, "FREE", nil, nil, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	mgr := booking.NewManager(NewStore(db), staticSettings{}, booking.WithClock(clockwork.NewFakeClockAt(now)))
	_, err := mgr.Reserve(context.Background(), "R002", "A1", now, 60)
	assert.ErrorIs(t, err, model.ErrSeatTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

const heldByQuery = `WHERE occupant_roll = \? AND status IN \('PENDING','ACTIVE'\) LIMIT 1$`

func TestLockHeldByLocksSeatRowOnly(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(heldByQuery).WithArgs("R1").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(1, "A1", 0, "ACTIVE", "R1", now, end, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE seat_number = ? LIMIT 1 FOR UPDATE")).WithArgs("A1").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(1, "A1", 0, "ACTIVE", "R1", now, end, now))
	// Freed between the plain read and the lock.
	mock.ExpectQuery(heldByQuery).WithArgs("R2").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(2, "A2", 0, "PENDING", "R2", now, end, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE seat_number = ? LIMIT 1 FOR UPDATE")).WithArgs("A2").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(2, "A2", 0, "FREE", nil, nil, nil, now))
	mock.ExpectCommit()

	err := NewStore(db).Atomic(context.Background(), func(tx booking.Tx) error {
		held, err := tx.LockSeatHeldBy(context.Background(), "R1")
		require.NoError(t, err)
		require.NotNil(t, held)
		assert.Equal(t, "A1", held.Number)

		held, err = tx.LockSeatHeldBy(context.Background(), "R2")
		require.NoError(t, err)
		assert.Nil(t, held)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanLocksSeatBeforeEntryLog(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(heldByQuery).WithArgs("R1").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(1, "A1", 0, "PENDING", "R1", now, end, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE seat_number = ? LIMIT 1 FOR UPDATE")).WithArgs("A1").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(1, "A1", 0, "PENDING", "R1", now, end, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM entry_logs")).WithArgs("R1").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats")).
		WithArgs("ACTIVE", "R1", now, end, "A1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entry_logs")).
		WithArgs("R1", "A1", now).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	mgr := booking.NewManager(NewStore(db), staticSettings{}, booking.WithClock(clockwork.NewFakeClockAt(now)))
	res, err := mgr.Scan(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, booking.ActionEntry, res.Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectReserveAttempt(mock sqlmock.Sqlmock, now time.Time, updateErr error) {
	mock.ExpectBegin()
	mock.ExpectQuery(heldByQuery).WithArgs("R1").WillReturnRows(sqlmock.NewRows(seatCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE seat_number = ? LIMIT 1 FOR UPDATE")).WithArgs("A1").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow(1, "A1", 0, "FREE", nil, nil, nil, now))
	if updateErr != nil {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE seats")).WillReturnError(updateErr)
		mock.ExpectRollback()
		return
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestAtomicRetriesDeadlockOnce(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	expectReserveAttempt(mock, now, &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	expectReserveAttempt(mock, now, nil)

	mgr := booking.NewManager(NewStore(db), staticSettings{}, booking.WithClock(clockwork.NewFakeClockAt(now)))
	seat, err := mgr.Reserve(context.Background(), "R1", "A1", now.Add(10*time.Minute), 60)
	require.NoError(t, err)
	assert.Equal(t, model.SeatPending, seat.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicReportsBusyAfterRepeatedLockConflict(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	expectReserveAttempt(mock, now, &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	expectReserveAttempt(mock, now, &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})

	mgr := booking.NewManager(NewStore(db), staticSettings{}, booking.WithClock(clockwork.NewFakeClockAt(now)))
	_, err := mgr.Reserve(context.Background(), "R1", "A1", now.Add(10*time.Minute), 60)
	assert.ErrorIs(t, err, model.ErrBusy)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.NotErrorIs(t, err, model.ErrInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicWrapsDriverErrors(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM entry_logs").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	store := NewStore(db)
	err := store.Atomic(context.Background(), func(tx booking.Tx) error {
		_, err := tx.OpenEntry(context.Background(), "R1")
		return err
	})
	assert.ErrorContains(t, err, "connection reset")
	assert.ErrorIs(t, model.Internal(err), model.ErrInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepoReads(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSeatRepo(db)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE seat_number = ? LIMIT 1")).
		WithArgs("ZZ").WillReturnError(sql.ErrNoRows)
	_, err := repo.GetByNumber(ctx, "ZZ")
	assert.ErrorIs(t, err, model.ErrSeatNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE floor = ? ORDER BY floor, seat_number")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(seatCols).
			AddRow(7, "F2-01", 2, "FREE", nil, nil, nil, start).
			AddRow(8, "F2-02", 2, "ACTIVE", "R9", start, start.Add(time.Hour), start))
	floor := 2
	seats, err := repo.List(ctx, &floor)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.True(t, seats[0].Consistent())
	assert.True(t, seats[1].Consistent())
	assert.Equal(t, "R9", seats[1].Occupant())

	mock.ExpectQuery(regexp.QuoteMeta("status = 'PENDING' AND planned_start < ?")).
		WithArgs(start, start).
		WillReturnRows(sqlmock.NewRows(seatCols))
	due, err := repo.Due(ctx, start, start)
	require.NoError(t, err)
	assert.Empty(t, due)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepoCreateBulk(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO seats (seat_number, floor, status) VALUES (?, ?, 'FREE'),(?, ?, 'FREE')")).
		WithArgs("G-01", 0, "G-02", 0).
		WillReturnResult(sqlmock.NewResult(2, 1))
	n, err := NewSeatRepo(db).CreateBulk(context.Background(), []model.Seat{{Number: "G-01"}, {Number: "G-02"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoList(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE roll_number = ? AND status = ? ORDER BY id DESC LIMIT ?")).
		WithArgs("R1", "NO_SHOW", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seat_number", "roll_number", "start_time", "end_time", "duration_minutes", "status", "xp_earned", "created_at"}).
			AddRow(3, "A1", "R1", created.Add(-time.Hour), created, 60, "NO_SHOW", -50, created))

	recs, err := NewBookingRepo(db).List(context.Background(), booking.RecordFilter{RollNumber: "R1", Status: model.BookingNoShow})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.BookingNoShow, recs[0].Status)
	assert.Equal(t, -50, recs[0].XPEarned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryLogRepoList(t *testing.T) {
	db, mock := newMock(t)
	in := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM entry_logs WHERE exit_time IS NULL ORDER BY id DESC LIMIT ?")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "roll_number", "seat_number", "entry_time", "exit_time"}).
			AddRow(1, "R1", "A1", in, nil))
	logs, err := NewEntryLogRepo(db).List(context.Background(), booking.EntryFilter{OpenOnly: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoCreateDuplicates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'R1' for key 'users.uq_users_roll_number'"})
	_, err := repo.Create(context.Background(), "Asha", "a@x.io", "r1", "password1", model.RoleStudent, 4)
	assert.ErrorIs(t, err, ErrRollExists)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@x.io' for key 'users.uq_users_email'"})
	_, err = repo.Create(context.Background(), "Asha", "A@X.io", "r2", "password1", model.RoleStudent, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE roll_number=? LIMIT 1")).
		WithArgs("R404").
		WillReturnError(sql.ErrNoRows)
	_, err := NewUserRepo(db).GetByRoll(context.Background(), " r404")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepo(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepo(db)

	mock.ExpectQuery("SELECT setting_key, setting_value FROM library_settings").
		WillReturnRows(sqlmock.NewRows([]string{"setting_key", "setting_value"}).AddRow("graceMinutes", "10"))
	values, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"graceMinutes": "10"}, values)

	mock.ExpectBegin()
	mock.ExpectExec("ON DUPLICATE KEY UPDATE").WithArgs("openingTime", "07:00").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Save(context.Background(), map[string]string{"openingTime": "07:00"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRotateRejectsReuse(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=?")).
		WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewTokenRepo(db).RotateRefresh(context.Background(), 1, "old", "new", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenValidateRevoked(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM refresh_tokens WHERE token_hash=").
		WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(1, time.Now().Add(time.Hour), time.Now()))
	_, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "h")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
