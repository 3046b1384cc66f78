package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/database"
	"github.com/iliyamo/bookmyseat/internal/model"
)

// openTestMySQL connects to BOOKMYSEAT_TEST_DSN, e.g.
// "root:secret@tcp(127.0.0.1:3306)/bookmyseat_test?parseTime=true&loc=UTC".
func openTestMySQL(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("BOOKMYSEAT_TEST_DSN")
	if dsn == "" {
		t.Skip("BOOKMYSEAT_TEST_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(32)
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// Concurrent reservations of neighbouring seats by rolls that hold nothing
// must all succeed, as must the arrivals and cancellations that follow.
func TestConcurrentReserveCancelScanMySQL(t *testing.T) {
	db := openTestMySQL(t)
	ctx := context.Background()
	now := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	prefix := fmt.Sprintf("T%d", time.Now().UnixNano()%1_000_000)

	const n = 16
	layout := make([]model.Seat, n)
	rolls := make([]string, n)
	for i := range layout {
		layout[i] = model.Seat{Number: fmt.Sprintf("%s-%02d", prefix, i), Floor: 9}
		rolls[i] = fmt.Sprintf("%s-R%02d", prefix, i)
	}
	_, err := NewSeatRepo(db).CreateBulk(ctx, layout)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM seats WHERE seat_number LIKE ?`, prefix+"-%")
		_, _ = db.Exec(`DELETE FROM bookings WHERE seat_number LIKE ?`, prefix+"-%")
		_, _ = db.Exec(`DELETE FROM entry_logs WHERE seat_number LIKE ?`, prefix+"-%")
	})

	mgr := booking.NewManager(NewStore(db), staticSettings{}, booking.WithClock(clockwork.NewFakeClockAt(now)))
	run := func(step func(i int) error) []error {
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = step(i)
			}(i)
		}
		wg.Wait()
		return errs
	}

	for i, err := range run(func(i int) error {
		_, err := mgr.Reserve(ctx, rolls[i], layout[i].Number, now.Add(10*time.Minute), 60)
		return err
	}) {
		assert.NoError(t, err, "reserve %s", rolls[i])
	}

	// Half arrive while the other half cancel.
	for i, err := range run(func(i int) error {
		if i%2 == 0 {
			_, err := mgr.Scan(ctx, rolls[i])
			return err
		}
		_, err := mgr.Cancel(ctx, rolls[i])
		return err
	}) {
		assert.NoError(t, err, "scan or cancel %s", rolls[i])
	}

	// Everyone scans: arrivals leave, cancelled rolls get a not-found.
	for i, err := range run(func(i int) error {
		_, err := mgr.Scan(ctx, rolls[i])
		return err
	}) {
		if i%2 == 0 {
			assert.NoError(t, err, "exit %s", rolls[i])
		} else {
			assert.ErrorIs(t, err, model.ErrNoPendingBooking)
		}
	}

	seats, err := NewSeatRepo(db).List(ctx, nil)
	require.NoError(t, err)
	for _, s := range seats {
		if strings.HasPrefix(s.Number, prefix+"-") {
			assert.Equal(t, model.SeatFree, s.Status, s.Number)
		}
	}
}

// Many rolls race for one seat: exactly one wins and the rest see a
// conflict, never an internal error.
func TestConcurrentReserveSameSeatMySQL(t *testing.T) {
	db := openTestMySQL(t)
	ctx := context.Background()
	now := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	seat := fmt.Sprintf("U%d", time.Now().UnixNano()%1_000_000)

	_, err := NewSeatRepo(db).CreateBulk(ctx, []model.Seat{{Number: seat, Floor: 9}})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM seats WHERE seat_number = ?`, seat) })

	mgr := booking.NewManager(NewStore(db), staticSettings{}, booking.WithClock(clockwork.NewFakeClockAt(now)))
	const n = 12
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mgr.Reserve(ctx, fmt.Sprintf("%s-R%02d", seat, i), seat, now.Add(10*time.Minute), 30)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, model.ErrConflict)
	}
	assert.Equal(t, 1, won)
}
