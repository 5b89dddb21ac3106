package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"citycal/metrics"
	"citycal/models"
	"citycal/rdx"
)

// codeLocationNotFound is the upstream error code for an unknown location.
const codeLocationNotFound = 1006

var (
	ErrNotConfigured    = errors.New("weather: api key not configured")
	ErrLocationNotFound = errors.New("weather: no matching location")
	ErrMalformed        = errors.New("weather: response has no current conditions")
)

// UpstreamError carries a failed provider response back to the caller.
type UpstreamError struct {
	Status  int
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("weather: upstream status %d (code %d): %s", e.Status, e.Code, e.Message)
}

type currentResponse struct {
	Current *struct {
		TempC     float64 `json:"temp_c"`
		Condition *struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	http   *resty.Client
	apiKey string
	cache  *rdx.Conn
	ttl    time.Duration
}

// NewClient returns a client for the current-conditions endpoint under
// baseURL. cache may be nil.
func NewClient(baseURL, apiKey string, cache *rdx.Conn, ttl time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second)
	return &Client{http: c, apiKey: apiKey, cache: cache, ttl: ttl}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func cacheKey(query string) string {
	return "weather:" + strings.ToLower(query)
}

// Current fetches the conditions for city, converting Chinese names to pinyin first.
func (c *Client) Current(ctx context.Context, city string) (*models.Weather, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	query := QueryName(city)

	if c.cache != nil {
		var cached models.Weather
		err := c.cache.GetJSON(ctx, cacheKey(query), &cached)
		switch {
		case err == nil:
			metrics.ObserveCache("weather", metrics.Hit)
			return &cached, nil
		case errors.Is(err, rdx.ErrMiss):
			metrics.ObserveCache("weather", metrics.Miss)
		default:
			metrics.ObserveCache("weather", metrics.Error)
			log.Warn().Err(err).Str("query", query).Msg("weather cache read failed")
		}
	}

	var body currentResponse
	var upstreamErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": c.apiKey,
			"q":   query,
			"aqi": "no",
		}).
		SetResult(&body).
		SetError(&upstreamErr).
		Get("/current.json")
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}

	if resp.IsError() {
		if upstreamErr.Error.Code == codeLocationNotFound {
			return nil, ErrLocationNotFound
		}
		msg := upstreamErr.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("Failed to fetch weather (%d)", resp.StatusCode())
		}
		return nil, &UpstreamError{Status: resp.StatusCode(), Code: upstreamErr.Error.Code, Message: msg}
	}

	if body.Current == nil || body.Current.Condition == nil {
		return nil, ErrMalformed
	}
	text := body.Current.Condition.Text
	if text == "" {
		text = "Unknown"
	}
	w := &models.Weather{
		Temperature: math.Round(body.Current.TempC),
		Condition:   text,
		Icon:        text,
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey(query), w, c.ttl); err != nil {
			log.Warn().Err(err).Str("query", query).Msg("weather cache write failed")
		}
	}
	return w, nil
}

// statusFor maps a lookup error onto the HTTP status returned to clients.
func statusFor(err error) int {
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrLocationNotFound):
		return http.StatusNotFound
	case errors.As(err, &upstream):
		return upstream.Status
	default:
		return http.StatusInternalServerError
	}
}
