package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/middleware"
	"github.com/iliyamo/bookmyseat/internal/model"
)

// BookingHandler serves the student side of the lifecycle.  The roll
// number always comes from the caller's token, never from the body.
type BookingHandler struct {
	Manager *booking.Manager
	Users   Users
	QRSize  int
}

func NewBookingHandler(m *booking.Manager, users Users, qrSize int) *BookingHandler {
	if m == nil || users == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Manager: m, Users: users, QRSize: qrSize}
}

type reserveReq struct {
	SeatNumber      string    `json:"seat_number" validate:"required"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

// callerRoll resolves the roll number of the authenticated user.  Tokens
// issued before the roll claim existed fall back to a user lookup.
func (h *BookingHandler) callerRoll(ctx context.Context, c echo.Context) (string, error) {
	if roll := middleware.Roll(c); roll != "" {
		return roll, nil
	}
	id, ok := middleware.UserID(c)
	if !ok {
		return "", model.NewError(model.ErrAuthentication, "unauthorized")
	}
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, model.ErrUserNotFound) {
		return "", model.NewError(model.ErrAuthentication, "unknown user")
	}
	if err != nil {
		return "", model.Internal(err)
	}
	if u.RollNumber == "" {
		return "", model.ErrRollRequired
	}
	return u.RollNumber, nil
}

// Reserve: POST /v1/bookings
func (h *BookingHandler) Reserve(c echo.Context) error {
	var req reserveReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	roll, err := h.callerRoll(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	seat, err := h.Manager.Reserve(ctx, roll, req.SeatNumber, req.StartTime, req.DurationMinutes)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "booking created", "seat": seat})
}

// Status: GET /v1/bookings/status.  seat is null when nothing is held.
func (h *BookingHandler) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	roll, err := h.callerRoll(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	seat, err := h.Manager.Status(ctx, roll)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seat": seat})
}

// Cancel: DELETE /v1/bookings/current
func (h *BookingHandler) Cancel(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	roll, err := h.callerRoll(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	rec, err := h.Manager.Cancel(ctx, roll)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled", "record": rec})
}

// History: GET /v1/bookings/history?limit=
func (h *BookingHandler) History(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	roll, err := h.callerRoll(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	recs, err := h.Manager.History(ctx, roll, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": recs})
}
