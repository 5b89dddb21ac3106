package calendar

import (
	"net/http"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citycal/models"
	"citycal/store"
)

func TestBuildICS(t *testing.T) {
	events := map[string]models.DayRecord{
		"2024-03-02": {Date: "2024-03-02", CityRecords: []models.CityRecord{
			{ID: "c2", City: "Lyon", Activities: []models.Activity{{ID: "a2", Description: "Old town walk"}}},
		}},
		"2024-03-01": {Date: "2024-03-01", CityRecords: []models.CityRecord{
			{ID: "c1", City: "Paris", Weather: &models.Weather{Temperature: 12, Condition: "Sunny"}},
		}},
		"not-a-date": {CityRecords: []models.CityRecord{{ID: "c3", City: "Nowhere"}}},
	}

	out := BuildICS(events, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC))
	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	evs := cal.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, "c1@citycal", evs[0].GetProperty(ical.ComponentPropertyUniqueId).Value)
	assert.Equal(t, "Paris", evs[0].GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "Lyon", evs[1].GetProperty(ical.ComponentPropertySummary).Value)
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240301")
	assert.Contains(t, out, "Old town walk")
	assert.NotContains(t, out, "Nowhere")
}

func TestExportICSHandler(t *testing.T) {
	events := store.NewMemoryEventStore()
	router := newRouter("u1", events)
	router.GET("/api/calendar/export.ics", withUser("u1", NewHandler(NewService(events), time.Second).ExportICS))

	rec := do(router, http.MethodPost, "/api/calendar/days/2024-05-05/cities", `{"city":"Oslo","activities":[{"description":"Fjord cruise"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(router, http.MethodGet, "/api/calendar/export.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "SUMMARY:Oslo")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
}
