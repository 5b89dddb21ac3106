package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citycal/auth"
	"citycal/calendar"
	"citycal/middleware"
	"citycal/ratelim"
	"citycal/statistics"
	"citycal/store"
	"citycal/weather"
)

type pinger struct{ err error }

func (p pinger) HealthPing(context.Context) error { return p.err }

func newTestRouter(health *Health) *httprouter.Router {
	secret := []byte("routes-secret")
	revoked := middleware.NewMemoryRevocations()
	events := store.NewMemoryEventStore()

	router := httprouter.New()
	RoutesWrapper(router, Handlers{
		Authn: middleware.NewAuthenticator(secret, revoked),
		Auth: auth.NewHandler(auth.Options{
			Users:      store.NewMemoryUserStore(),
			Tokens:     auth.NewTokenIssuer(secret, time.Hour, time.Hour),
			Revoked:    revoked,
			BcryptCost: 4,
		}),
		Calendar:   calendar.NewHandler(calendar.NewService(events), time.Second),
		Statistics: statistics.NewHandler(statistics.NewAggregator(events), time.Second),
		Weather:    weather.NewHandler(weather.NewClient("http://127.0.0.1:0", "", nil, 0), time.Second),
		Health:     health,
	}, ratelim.NewRateLimiter(100, 100))
	return router
}

func TestHealth(t *testing.T) {
	health := NewHealth()
	health.Register("mongo", pinger{})
	router := newTestRouter(health)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mongo":"ok"`)

	health.Register("redis", pinger{err: errors.New("down")})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(NewHealth())
	for _, target := range []string{
		"GET /api/calendar",
		"GET /api/statistics?startDate=2024-01-01&endDate=2024-01-31",
		"GET /api/calendar/days/2024-01-01",
		"GET /api/auth/me",
		"POST /api/auth/logout",
	} {
		method, url, _ := strings.Cut(target, " ")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, url, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestEndToEndStatistics(t *testing.T) {
	router := newTestRouter(NewHealth())
	send := func(method, url, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/api/auth/register", `{"name":"Ada","email":"ada@example.com","password":"pw"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = send(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := extract(t, rec.Body.String(), `"token":"`)

	rec = send(http.MethodPost, "/api/calendar/days/2024-03-01/cities", `{"city":"Paris","activities":[{"description":"Louvre visit"}]}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = send(http.MethodPost, "/api/calendar/days/2024-03-02/cities", `{"city":" paris "}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(http.MethodGet, "/api/statistics?startDate=2024-03-01&endDate=2024-03-31&keywords=louvre", "", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"cityDurations":{"paris":2},"keywordCounts":{"louvre":1}}`, rec.Body.String())
}

func extract(t *testing.T, body, prefix string) string {
	t.Helper()
	_, rest, ok := strings.Cut(body, prefix)
	require.True(t, ok, body)
	value, _, ok := strings.Cut(rest, `"`)
	require.True(t, ok)
	return value
}
