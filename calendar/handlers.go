package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"citycal/middleware"
	"citycal/models"
	"citycal/utils"
)

const (
	maxCalendarBody = 5 << 20
	maxItemBody     = 64 << 10
)

type Handler struct {
	svc     *Service
	timeout time.Duration
}

func NewHandler(svc *Service, timeout time.Duration) *Handler {
	return &Handler{svc: svc, timeout: timeout}
}

// GET /api/calendar
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	events, err := h.svc.Events(ctx, userID)
	if err != nil {
		h.fail(w, err, userID, "failed to fetch calendar data")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, events)
}

// POST /api/calendar
func (h *Handler) SaveCalendar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	var events map[string]models.DayRecord
	r.Body = http.MaxBytesReader(w, r.Body, maxCalendarBody)
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil || events == nil {
		log.Debug().Err(err).Str("userId", userID).Msg("rejecting calendar body")
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.ReplaceEvents(ctx, userID, events); err != nil {
		h.fail(w, err, userID, "failed to save calendar data")
		return
	}
	utils.RespondWithMessage(w, http.StatusOK, "Calendar data saved successfully")
}

// GET /api/calendar/days/:date
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	day, err := h.svc.Day(ctx, userID, ps.ByName("date"))
	if err != nil {
		h.fail(w, err, userID, "failed to fetch day")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, day)
}

// POST /api/calendar/days/:date/cities
func (h *Handler) AddCity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in CityInput
	if err := decodeItem(w, r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.svc.AddCityRecord(ctx, userID, ps.ByName("date"), in)
	if err != nil {
		h.fail(w, err, userID, "failed to add city record")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, rec)
}

// DELETE /api/calendar/days/:date/cities/:cityid
func (h *Handler) DeleteCity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.DeleteCityRecord(ctx, userID, ps.ByName("date"), ps.ByName("cityid")); err != nil {
		h.fail(w, err, userID, "failed to delete city record")
		return
	}
	utils.RespondWithMessage(w, http.StatusOK, "City record deleted")
}

type activityInput struct {
	Description string `json:"description"`
}

// POST /api/calendar/days/:date/cities/:cityid/activities
func (h *Handler) AddActivity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in activityInput
	if err := decodeItem(w, r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	act, err := h.svc.AddActivity(ctx, userID, ps.ByName("date"), ps.ByName("cityid"), in.Description)
	if err != nil {
		h.fail(w, err, userID, "failed to add activity")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, act)
}

// PUT /api/calendar/days/:date/cities/:cityid/activities/:activityid
func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in activityInput
	if err := decodeItem(w, r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	act, err := h.svc.UpdateActivity(ctx, userID, ps.ByName("date"), ps.ByName("cityid"), ps.ByName("activityid"), in.Description)
	if err != nil {
		h.fail(w, err, userID, "failed to update activity")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, act)
}

// DELETE /api/calendar/days/:date/cities/:cityid/activities/:activityid
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.DeleteActivity(ctx, userID, ps.ByName("date"), ps.ByName("cityid"), ps.ByName("activityid")); err != nil {
		h.fail(w, err, userID, "failed to delete activity")
		return
	}
	utils.RespondWithMessage(w, http.StatusOK, "Activity deleted")
}

// decodeItem reads a single city or activity payload.
func decodeItem(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxItemBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return userID, ok
}

func (h *Handler) fail(w http.ResponseWriter, err error, userID, msg string) {
	switch {
	case errors.Is(err, ErrInvalidDate):
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid date. Use YYYY-MM-DD.")
	case errors.Is(err, ErrInvalidInput):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
	default:
		log.Error().Err(err).Str("userId", userID).Msg(msg)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
