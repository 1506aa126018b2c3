// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Jinnapat/jod-rod-matching-service/internal/config"
	"github.com/Jinnapat/jod-rod-matching-service/internal/handler"
	"github.com/Jinnapat/jod-rod-matching-service/internal/middleware"
)

// Deps collects what the routes need.  Redis, Metrics and JWTSecret are
// optional.
type Deps struct {
	Reservations *handler.ReservationHandler
	Health       *handler.HealthHandler
	Redis        *redis.Client
	Cache        config.CacheConfig
	RateLimit    config.RateLimitConfig
	JWTSecret    string
	Metrics      http.Handler
}

// New returns an echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.AccessLog())

	RegisterRoutes(e, d)
	return e
}

// RegisterRoutes registers the probes, metrics and reservation routes on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	if d.Health != nil {
		e.GET("/healthz", d.Health.Live)
		e.GET("/readyz", d.Health.Ready)
	}
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	h := d.Reservations
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	writes := e.Group("", limit, middleware.JWTAuth(d.JWTSecret), middleware.InvalidateCache(d.Cache, d.Redis))
	writes.POST("/createReservation", h.CreateReservation)
	writes.POST("/confirmReservation", h.ConfirmReservation)

	reads := e.Group("", limit, middleware.NewRedisCache(d.Cache, d.Redis))
	reads.GET("/getReservations", h.GetReservations)
	reads.GET("/getReservationsByParkingLotId/:id", h.GetReservationsByParkingLotID)
	reads.GET("/getReservationById/:id", h.GetReservationByID)

	// Activity depends on the clock as well as the store, so these are never cached.
	live := e.Group("", limit)
	live.GET("/getActiveReservationsByUser/:userId", h.GetActiveReservationsByUser)
	live.GET("/getActiveReservationsByParkingLotId/:parkingLotId", h.GetActiveReservationsByParkingLot)
	live.GET("/countActiveReservations/:parkingLotId", h.CountActiveReservations)
}
