// Package router registers the HTTP routes.  Each Register* function owns
// one audience and attaches the middleware that audience needs.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bookmyseat/internal/handler"
	"github.com/iliyamo/bookmyseat/internal/middleware"
	"github.com/iliyamo/bookmyseat/internal/model"
)

// RegisterRoutes registers unauthenticated infrastructure routes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers session routes under /v1/auth plus GET /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// refresh rotates the refresh token, refresh-access keeps it.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout works with either a refresh token in the body or a bearer
	// header, so it is not behind JWTAuth.
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the anonymous seat map.  cache wraps it so that
// bursts of kiosk refreshes hit Redis instead of the database.
func RegisterPublic(e *echo.Echo, s *handler.SeatHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/seats", s.List, cache)
}

// RegisterStudent registers booking routes for any signed-in account.
func RegisterStudent(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleAdmin),
	)
	g.POST("/bookings", b.Reserve)
	g.GET("/bookings/status", b.Status)
	g.DELETE("/bookings/current", b.Cancel)
	g.GET("/bookings/history", b.History)
	g.GET("/me/qr", b.QR)
}

// RegisterAdmin registers the admin panel under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/scan", a.Scan)
	g.POST("/free-all", a.FreeAll)
	g.GET("/config", a.GetConfig)
	g.PUT("/config", a.UpdateConfig)
	g.GET("/logs", a.Logs)
	g.GET("/bookings", a.Bookings)
	g.GET("/seats", a.Seats)
	g.POST("/reconcile", a.Reconcile)
}
