package statistics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"citycal/metrics"
	"citycal/middleware"
	"citycal/utils"
)

type Handler struct {
	agg     *Aggregator
	timeout time.Duration
}

func NewHandler(agg *Aggregator, timeout time.Duration) *Handler {
	return &Handler{agg: agg, timeout: timeout}
}

// GET /api/statistics?startDate=&endDate=&keywords=
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	q := r.URL.Query()
	startDate := q.Get("startDate")
	endDate := q.Get("endDate")
	if startDate == "" || endDate == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing startDate or endDate parameters")
		return
	}
	if !utils.IsDateKeyFormat(startDate) || !utils.IsDateKeyFormat(endDate) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD.")
		return
	}
	if startDate > endDate {
		utils.RespondWithError(w, http.StatusBadRequest, "Start date cannot be after end date")
		return
	}
	keywords := utils.SplitKeywords(q.Get("keywords"))

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.agg.Compute(ctx, userID, startDate, endDate, keywords)
	switch {
	case errors.Is(err, ErrUnauthorized):
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	case errors.Is(err, ErrInvalidRange):
		metrics.ObserveStatistics("invalid")
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		metrics.ObserveStatistics("error")
		log.Error().Err(err).Str("userId", userID).Msg("statistics computation failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	metrics.ObserveStatistics("ok")
	log.Debug().Str("userId", userID).Int("cities", len(result.CityDurations)).
		Int("keywords", len(keywords)).Msg("statistics computed")
	utils.RespondWithJSON(w, http.StatusOK, result)
}
