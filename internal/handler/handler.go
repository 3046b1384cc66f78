// Package handler exposes the HTTP API: authentication, student bookings,
// the public seat map and the admin panel.  Handlers translate error kinds
// from internal/model into status codes and always answer errors as
// {"error": "..."}.
package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// requestTimeout bounds the store calls of one request.
const requestTimeout = 5 * time.Second

// Users is the account lookup used by the auth and booking handlers.  It is
// satisfied by repository.UserRepo and repository.MemoryUsers.
type Users interface {
	Create(ctx context.Context, name, email, roll, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByRoll(ctx context.Context, roll string) (model.User, error)
}

// Tokens stores refresh token hashes.
type Tokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RotateRefresh(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

func statusOf(err error) int {
	switch model.KindOf(err) {
	case model.ErrValidation:
		return http.StatusBadRequest
	case model.ErrAuthentication:
		return http.StatusUnauthorized
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err with the status of its kind.  Internal errors are logged
// and hidden from the client.
func fail(c echo.Context, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// bind decodes the body into dst and runs the registered validator.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return model.NewError(model.ErrValidation, "invalid body")
	}
	return c.Validate(dst)
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, model.NewError(model.ErrValidation, "invalid "+name)
	}
	return &n, nil
}

func limitParam(c echo.Context) (int, error) {
	n, err := queryInt(c, "limit")
	if err != nil || n == nil {
		return 0, err
	}
	return *n, nil
}
