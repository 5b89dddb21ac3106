package routes

import (
	"github.com/julienschmidt/httprouter"

	"citycal/auth"
	"citycal/calendar"
	"citycal/middleware"
	"citycal/ratelim"
	"citycal/statistics"
	"citycal/weather"
)

func AddAuthRoutes(router *httprouter.Router, h *auth.Handler, authn *middleware.Authenticator, rateLimiter *ratelim.RateLimiter) {
	router.POST("/api/auth/register", rateLimiter.Limit(h.Register))
	router.POST("/api/auth/login", rateLimiter.Limit(h.Login))
	router.POST("/api/auth/logout", authn.Authenticate(h.Logout))
	router.POST("/api/auth/token/refresh", rateLimiter.Limit(h.RefreshToken))
	router.GET("/api/auth/me", authn.Authenticate(h.Me))

	if h.GitHubEnabled() {
		router.GET("/api/auth/github/login", rateLimiter.Limit(h.GitHubLogin))
		router.GET("/api/auth/github/callback", rateLimiter.Limit(h.GitHubCallback))
	}
}

func AddCalendarRoutes(router *httprouter.Router, h *calendar.Handler, authn *middleware.Authenticator) {
	router.GET("/api/calendar", authn.Authenticate(h.GetCalendar))
	router.POST("/api/calendar", authn.Authenticate(h.SaveCalendar))
	router.GET("/api/calendar/export.ics", authn.Authenticate(h.ExportICS))

	router.GET("/api/calendar/days/:date", authn.Authenticate(h.GetDay))
	router.POST("/api/calendar/days/:date/cities", authn.Authenticate(h.AddCity))
	router.DELETE("/api/calendar/days/:date/cities/:cityid", authn.Authenticate(h.DeleteCity))
	router.POST("/api/calendar/days/:date/cities/:cityid/activities", authn.Authenticate(h.AddActivity))
	router.PUT("/api/calendar/days/:date/cities/:cityid/activities/:activityid", authn.Authenticate(h.UpdateActivity))
	router.DELETE("/api/calendar/days/:date/cities/:cityid/activities/:activityid", authn.Authenticate(h.DeleteActivity))
}

func AddStatisticsRoutes(router *httprouter.Router, h *statistics.Handler, authn *middleware.Authenticator) {
	router.GET("/api/statistics", authn.Authenticate(h.GetStatistics))
}

func AddWeatherRoutes(router *httprouter.Router, h *weather.Handler, rateLimiter *ratelim.RateLimiter) {
	router.GET("/api/weather", rateLimiter.Limit(h.GetWeather))
}
