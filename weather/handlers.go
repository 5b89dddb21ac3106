package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"citycal/utils"
)

type Handler struct {
	client  *Client
	timeout time.Duration
}

func NewHandler(client *Client, timeout time.Duration) *Handler {
	return &Handler{client: client, timeout: timeout}
}

// GET /api/weather?city=
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.client.Configured() {
		log.Error().Msg("weather api key is missing")
		utils.RespondWithMessage(w, http.StatusInternalServerError, "Weather service not configured")
		return
	}

	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		utils.RespondWithMessage(w, http.StatusBadRequest, "City parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	current, err := h.client.Current(ctx, city)
	if err != nil {
		status := statusFor(err)
		var upstream *UpstreamError
		switch {
		case errors.Is(err, ErrLocationNotFound):
			utils.RespondWithMessage(w, status, fmt.Sprintf("No weather found for city '%s'", city))
		case errors.As(err, &upstream):
			log.Warn().Err(err).Str("city", city).Msg("weather provider returned an error")
			utils.RespondWithMessage(w, status, upstream.Message)
		case errors.Is(err, ErrMalformed):
			log.Error().Str("city", city).Msg("weather response missing current data")
			utils.RespondWithMessage(w, status, "Malformed weather data")
		default:
			log.Error().Err(err).Str("city", city).Msg("weather lookup failed")
			utils.RespondWithMessage(w, status, "Internal Server Error while fetching weather")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, current)
}
