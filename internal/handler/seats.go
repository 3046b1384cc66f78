package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/model"
)

// PublicSeat is the anonymous view of a seat; the occupant is not exposed.
type PublicSeat struct {
	SeatNumber string           `json:"seat_number"`
	Floor      int              `json:"floor"`
	Status     model.SeatStatus `json:"status"`
	// BusyUntil is the planned expiry of a held seat.
	BusyUntil *time.Time `json:"busy_until,omitempty"`
}

// SeatHandler serves the public seat map.
type SeatHandler struct {
	Manager *booking.Manager
}

func NewSeatHandler(m *booking.Manager) *SeatHandler { return &SeatHandler{Manager: m} }

// List: GET /v1/seats?floor=
func (h *SeatHandler) List(c echo.Context) error {
	floor, err := queryInt(c, "floor")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	seats, err := h.Manager.ListSeats(ctx, floor)
	if err != nil {
		return fail(c, err)
	}
	out := make([]PublicSeat, 0, len(seats))
	for _, s := range seats {
		out = append(out, PublicSeat{SeatNumber: s.Number, Floor: s.Floor, Status: s.Status, BusyUntil: s.PlannedExpiry})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": out})
}
