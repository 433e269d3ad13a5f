// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"cinema-reservation/internal/config"
	"cinema-reservation/internal/handler"
	"cinema-reservation/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication:
// health and the public catalog.  Browse endpoints sit behind the
// Redis response cache so repeated listing does not hit MySQL.
func RegisterRoutes(e *echo.Echo, b *handler.BrowseHandler, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	pub := e.Group("/v1", cache)
	pub.GET("/movies", b.ListMovies)
	pub.GET("/movies/:id", b.GetMovie)
	pub.GET("/rooms", b.ListRooms)
	pub.GET("/rooms/:id", b.GetRoom)
	pub.GET("/schedules", b.ListSchedules)
	pub.GET("/schedules/:id", b.GetSchedule)
	// Availability changes with every booking; it stays uncached.
	e.GET("/v1/schedules/:id/availability", b.GetAvailability)
}

// RegisterAuth registers the token endpoints under /v1/auth plus the
// protected identity endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/logout-all", a.LogoutAll)
}

// RegisterReservations registers the customer booking endpoints.
// Every route requires a valid access token with the USER or ADMIN
// role; mutations additionally pass the token-bucket rate limiter.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, rdb *redis.Client) {
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	g := e.Group("/v1/reservations",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("USER", "ADMIN"))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create, limiter)
	g.PATCH("/:id", h.Update, limiter)
	g.DELETE("/:id", h.Delete, limiter)
	g.POST("/bulk-delete", h.BulkDelete, limiter)
}

// RegisterAdmin registers the reference-data management endpoints,
// restricted to the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"))
	g.POST("/movies", h.CreateMovie)
	g.POST("/rooms", h.CreateRoom)
	g.POST("/schedules", h.CreateSchedule)
	g.DELETE("/schedules/:id", h.DeleteSchedule)
	g.GET("/schedules/:id/reservations", h.ListScheduleReservations)
}
