package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/bookmyseat/internal/model"
)

const defaultQRSize = 256

// QR: GET /v1/me/qr.  Returns a PNG encoding the caller's roll number,
// which is what the entrance scanner reads.
func (h *BookingHandler) QR(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	roll, err := h.callerRoll(ctx, c)
	if err != nil {
		return fail(c, err)
	}
	size := h.QRSize
	if size <= 0 {
		size = defaultQRSize
	}
	png, err := qrcode.Encode(roll, qrcode.Medium, size)
	if err != nil {
		return fail(c, model.Internal(err))
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}
