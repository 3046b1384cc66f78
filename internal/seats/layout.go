// Package seats describes the physical seat layout of the library.
package seats

import (
	"fmt"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// Floors and PerFloor give the default layout: a ground floor and three
// upper floors of 50 seats each.
const (
	Floors   = 4
	PerFloor = 50
)

// Prefix returns the seat number prefix of floor: "G" for the ground floor,
// "F1", "F2", ... above it.
func Prefix(floor int) string {
	if floor == 0 {
		return "G"
	}
	return fmt.Sprintf("F%d", floor)
}

// Number formats the seat number of the n-th seat (1-based) on floor,
// e.g. G-01 or F2-15.
func Number(floor, n int) string {
	return fmt.Sprintf("%s-%02d", Prefix(floor), n)
}

// Layout returns every seat of the default layout as FREE.
func Layout() []model.Seat {
	out := make([]model.Seat, 0, Floors*PerFloor)
	for f := 0; f < Floors; f++ {
		for n := 1; n <= PerFloor; n++ {
			out = append(out, model.Seat{Number: Number(f, n), Floor: f, Status: model.SeatFree})
		}
	}
	return out
}
