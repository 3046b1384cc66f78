package handler

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/model"
	"github.com/iliyamo/bookmyseat/internal/reconciler"
	"github.com/iliyamo/bookmyseat/internal/settings"
)

// AdminHandler bundles the admin panel: the entrance scanner, the seat
// reset, configuration, attendance and ledger listings, and a manual
// reconciler sweep.
type AdminHandler struct {
	Manager    *booking.Manager
	Settings   *settings.Provider
	Reconciler *reconciler.Reconciler
}

func NewAdminHandler(m *booking.Manager, s *settings.Provider, r *reconciler.Reconciler) *AdminHandler {
	if m == nil || s == nil || r == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Manager: m, Settings: s, Reconciler: r}
}

type scanReq struct {
	RollNumber string `json:"roll_number" validate:"required"`
}

// Scan: POST /v1/admin/scan.  The scanner posts the decoded roll number;
// the first scan of a pending booking is an entry, the next an exit.
func (h *AdminHandler) Scan(c echo.Context) error {
	var req scanReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Manager.Scan(ctx, req.RollNumber)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// FreeAll: POST /v1/admin/free-all
func (h *AdminHandler) FreeAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	n, err := h.Manager.AdminFreeAll(ctx)
	if err != nil {
		return fail(c, err)
	}
	log.Printf("admin: free-all released %d seats", n)
	return c.JSON(http.StatusOK, echo.Map{"freed": n})
}

// GetConfig: GET /v1/admin/config
func (h *AdminHandler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Settings.Get())
}

// UpdateConfig: PUT /v1/admin/config.  Absent fields keep their value.
func (h *AdminHandler) UpdateConfig(c echo.Context) error {
	var patch model.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return fail(c, model.NewError(model.ErrValidation, "invalid body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	next, err := h.Settings.Update(ctx, patch)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, next)
}

// Logs: GET /v1/admin/logs?roll=&open=true&limit=
func (h *AdminHandler) Logs(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return fail(c, err)
	}
	f := booking.EntryFilter{
		RollNumber: c.QueryParam("roll"),
		OpenOnly:   strings.EqualFold(c.QueryParam("open"), "true"),
		Limit:      limit,
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	logs, err := h.Manager.EntryLogs(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": logs})
}

// Bookings: GET /v1/admin/bookings?roll=&seat=&status=&limit=
func (h *AdminHandler) Bookings(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return fail(c, err)
	}
	status := model.BookingStatus(strings.ToUpper(c.QueryParam("status")))
	if status != "" && !status.Valid() {
		return fail(c, model.NewError(model.ErrValidation, "invalid status"))
	}
	f := booking.RecordFilter{
		RollNumber: c.QueryParam("roll"),
		SeatNumber: strings.ToUpper(strings.TrimSpace(c.QueryParam("seat"))),
		Status:     status,
		Limit:      limit,
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	recs, err := h.Manager.Ledger(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": recs})
}

// Seats: GET /v1/admin/seats?floor=.  Unlike the public map this includes
// occupants and planned windows.
func (h *AdminHandler) Seats(c echo.Context) error {
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
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// Reconcile: POST /v1/admin/reconcile runs one sweep now.  Seats that
// failed to settle are reported in the result and retried next sweep.
func (h *AdminHandler) Reconcile(c echo.Context) error {
	res, err := h.Reconciler.Sweep(c.Request().Context())
	if err != nil && res.Failed == 0 {
		return fail(c, model.Internal(err))
	}
	return c.JSON(http.StatusOK, res)
}
