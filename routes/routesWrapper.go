package routes

import (
	"github.com/julienschmidt/httprouter"

	"citycal/auth"
	"citycal/calendar"
	"citycal/metrics"
	"citycal/middleware"
	"citycal/ratelim"
	"citycal/statistics"
	"citycal/weather"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Authn      *middleware.Authenticator
	Auth       *auth.Handler
	Calendar   *calendar.Handler
	Statistics *statistics.Handler
	Weather    *weather.Handler
	Health     *Health
}

func RoutesWrapper(router *httprouter.Router, h Handlers, rateLimiter *ratelim.RateLimiter) {
	router.GET("/health", h.Health.Index)
	router.GET("/metrics", metrics.Handler())
	AddAuthRoutes(router, h.Auth, h.Authn, rateLimiter)
	AddCalendarRoutes(router, h.Calendar, h.Authn)
	AddStatisticsRoutes(router, h.Statistics, h.Authn)
	AddWeatherRoutes(router, h.Weather, rateLimiter)
}
