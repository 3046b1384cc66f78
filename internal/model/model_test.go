package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	edge, ok := Transition(SeatFree, EvReserve)
	require.True(t, ok)
	assert.Equal(t, SeatPending, edge.To)
	assert.False(t, edge.Concludes())

	edge, ok = Transition(SeatActive, EvExpire)
	require.True(t, ok)
	assert.Equal(t, BookingCompleted, edge.Outcome)

	edge, ok = Transition(SeatPending, EvNoShow)
	require.True(t, ok)
	assert.Equal(t, BookingNoShow, edge.Outcome)

	for _, ev := range []Event{EvArrive, EvDepart, EvCancel, EvNoShow, EvExpire, EvAdminFree} {
		_, ok := Transition(SeatFree, ev)
		assert.False(t, ok, "FREE must not accept %s", ev)
	}
	_, ok = Transition(SeatPending, EvDepart)
	assert.False(t, ok)
	_, ok = Transition(SeatActive, EvNoShow)
	assert.False(t, ok)

	for _, e := range transitionTable {
		if e.To == SeatFree {
			assert.True(t, e.Concludes(), "%s/%s frees without a record", e.From, e.Event)
		}
	}
}

func TestSeatConsistent(t *testing.T) {
	s := Seat{Number: "A1"}.Freed()
	assert.True(t, s.Consistent())

	r := s.Reserved("R1", time.Now(), time.Hour)
	assert.True(t, r.Consistent())
	assert.Equal(t, "R1", r.Occupant())

	broken := r
	broken.PlannedExpiry = nil
	assert.False(t, broken.Consistent())

	assert.False(t, Seat{Status: "BROKEN"}.Consistent())
	assert.True(t, r.Freed().Consistent())
}

func TestDurationMinutes(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 44, DurationMinutes(t0, t0.Add(44*time.Minute+59*time.Second)))
	assert.Equal(t, 0, DurationMinutes(t0, t0.Add(-time.Minute)))
}

func TestSettingsCovers(t *testing.T) {
	s := DefaultSettings()
	day := func(h, m int) time.Time { return time.Date(2026, 1, 1, h, m, 0, 0, time.UTC) }

	assert.True(t, s.Covers(day(8, 0), day(9, 0)))
	assert.True(t, s.Covers(day(21, 0), day(22, 0)))
	assert.False(t, s.Covers(day(7, 59), day(9, 0)))
	assert.False(t, s.Covers(day(21, 30), day(22, 1)))
	assert.False(t, s.Covers(day(22, 0), day(22, 15)))
	assert.False(t, s.Covers(day(21, 0), day(21, 0).Add(26*time.Hour)))
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	bad := func(p SettingsPatch) error { return DefaultSettings().Apply(p).Validate() }
	str := func(v string) *string { return &v }
	num := func(v int) *int { return &v }

	assert.ErrorIs(t, bad(SettingsPatch{OpeningTime: str("8am")}), ErrValidation)
	assert.ErrorIs(t, bad(SettingsPatch{ClosingTime: str("07:00")}), ErrValidation)
	assert.ErrorIs(t, bad(SettingsPatch{MinBookingDuration: num(0)}), ErrValidation)
	assert.ErrorIs(t, bad(SettingsPatch{MaxBookingDuration: num(10)}), ErrValidation)
	assert.ErrorIs(t, bad(SettingsPatch{GraceMinutes: num(-1)}), ErrValidation)
	assert.ErrorIs(t, bad(SettingsPatch{NoShowPenaltyXP: num(5)}), ErrValidation)
	assert.NoError(t, bad(SettingsPatch{OpeningTime: str(" 07:30 ")}))
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, ErrConflict, KindOf(ErrSeatTaken))
	assert.Equal(t, ErrNotFound, KindOf(ErrNoActiveBooking))
	assert.Nil(t, Internal(nil))

	wrapped := Internal(assert.AnError)
	assert.ErrorIs(t, wrapped, ErrInternal)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Same(t, ErrSeatTaken, Internal(ErrSeatTaken))
	assert.Equal(t, "R12", NormalizeRoll("  r12 "))
}
