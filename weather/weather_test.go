package weather

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citycal/models"
	"citycal/rdx"
)

type fakeProvider struct {
	calls   atomic.Int32
	queries []string
}

func (f *fakeProvider) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		q := r.URL.Query()
		f.queries = append(f.queries, q.Get("q"))
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path != "/current.json" || q.Get("aqi") != "no":
			w.WriteHeader(http.StatusNotFound)
		case q.Get("key") != "test-key":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":2006,"message":"API key is invalid."}}`))
		case q.Get("q") == "nowhere":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
		case q.Get("q") == "broken":
			_, _ = w.Write([]byte(`{"current":{"temp_c":3.2}}`))
		default:
			_, _ = w.Write([]byte(`{"location":{"name":"x"},"current":{"temp_c":21.6,"condition":{"text":"Partly cloudy"}}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(client *Client) *httprouter.Router {
	router := httprouter.New()
	router.GET("/api/weather", NewHandler(client, time.Second).GetWeather)
	return router
}

func getWeather(router http.Handler, city string) *httptest.ResponseRecorder {
	target := "/api/weather"
	if city != "" {
		target += "?city=" + url.QueryEscape(city)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["message"]
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "wuxi", QueryName("无锡"))
	assert.Equal(t, "beijing", QueryName(" 北京 "))
	assert.Equal(t, "Tokyo", QueryName("Tokyo"))
	assert.False(t, ContainsChinese("Zürich"))
	assert.True(t, ContainsChinese("city 上海"))
}

func TestGetWeatherSuccess(t *testing.T) {
	fake := &fakeProvider{}
	router := newRouter(NewClient(fake.server(t).URL, "test-key", nil, 0))

	rec := getWeather(router, "无锡")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got models.Weather
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.Weather{Temperature: 22, Condition: "Partly cloudy", Icon: "Partly cloudy"}, got)
	assert.Equal(t, []string{"wuxi"}, fake.queries)
}

func TestGetWeatherErrors(t *testing.T) {
	fake := &fakeProvider{}
	srv := fake.server(t)

	tests := []struct {
		name    string
		client  *Client
		city    string
		status  int
		message string
	}{
		{"not configured", NewClient(srv.URL, "", nil, 0), "Tokyo", http.StatusInternalServerError, "Weather service not configured"},
		{"missing city", NewClient(srv.URL, "test-key", nil, 0), "", http.StatusBadRequest, "City parameter is required"},
		{"unknown location", NewClient(srv.URL, "test-key", nil, 0), "nowhere", http.StatusNotFound, "No weather found for city 'nowhere'"},
		{"upstream error", NewClient(srv.URL, "wrong-key", nil, 0), "Tokyo", http.StatusUnauthorized, "API key is invalid."},
		{"no conditions", NewClient(srv.URL, "test-key", nil, 0), "broken", http.StatusInternalServerError, "Malformed weather data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := getWeather(newRouter(tt.client), tt.city)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, message(t, rec))
		})
	}
}

func TestCurrentUsesCache(t *testing.T) {
	fake := &fakeProvider{}
	mr := miniredis.RunT(t)
	conn := rdx.NewConn(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = conn.Close() })
	client := NewClient(fake.server(t).URL, "test-key", conn, time.Minute)

	first, err := client.Current(t.Context(), "Tokyo")
	require.NoError(t, err)
	second, err := client.Current(t.Context(), "tokyo")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fake.calls.Load())
	assert.True(t, mr.Exists("weather:tokyo"))

	// failures are not cached
	_, err = client.Current(t.Context(), "nowhere")
	assert.ErrorIs(t, err, ErrLocationNotFound)
	assert.False(t, mr.Exists("weather:nowhere"))
}
