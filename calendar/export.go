package calendar

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"citycal/models"
	"citycal/utils"
)

const icsProductID = "-//citycal//calendar export//EN"

// BuildICS renders one all-day VEVENT per city record. Days whose key is not
// a valid date are skipped.
func BuildICS(events map[string]models.DayRecord, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName("citycal")

	dates := make([]string, 0, len(events))
	for date := range events {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		day := utils.ParseDate(date)
		if day == nil {
			log.Warn().Str("date", date).Msg("skipping day with invalid key in export")
			continue
		}
		for i, rec := range events[date].CityRecords {
			uid := rec.ID
			if uid == "" {
				uid = fmt.Sprintf("%s-%d", date, i)
			}
			ev := cal.AddEvent(uid + "@citycal")
			ev.SetDtStampTime(stamp)
			ev.SetAllDayStartAt(*day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
			ev.SetSummary(rec.City)
			ev.SetLocation(rec.City)
			if desc := describe(rec); desc != "" {
				ev.SetDescription(desc)
			}
		}
	}
	return cal.Serialize()
}

func describe(rec models.CityRecord) string {
	lines := make([]string, 0, len(rec.Activities)+1)
	for _, a := range rec.Activities {
		if a.Description != "" {
			lines = append(lines, a.Description)
		}
	}
	if rec.Weather != nil {
		lines = append(lines, fmt.Sprintf("Weather: %s, %.0f°C", rec.Weather.Condition, rec.Weather.Temperature))
	}
	return strings.Join(lines, "\n")
}

// GET /api/calendar/export.ics
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	events, err := h.svc.Events(ctx, userID)
	if err != nil {
		h.fail(w, err, userID, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="citycal.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(BuildICS(events, time.Now().UTC()))); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to write calendar export")
	}
}
