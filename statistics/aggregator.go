// Package statistics computes per-city visit durations and activity keyword
// counts over a user's calendar for an inclusive date range.
package statistics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"citycal/models"
	"citycal/utils"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidRange = errors.New("invalid date range")
	ErrStorage      = errors.New("storage failure")
)

// EventReader is the read side of the event store.
type EventReader interface {
	Get(ctx context.Context, userID string) (*models.CalendarDocument, error)
}

// Aggregator scans a user's calendar document on every call. It keeps no state
// between calls and never writes.
type Aggregator struct {
	events EventReader
}

func NewAggregator(events EventReader) *Aggregator {
	return &Aggregator{events: events}
}

// Compute returns the number of distinct in-range days each normalized city was
// visited on, and, when keywords are given, how many activities mention each keyword.
func (a *Aggregator) Compute(ctx context.Context, userID, startDate, endDate string, keywords []string) (*models.StatisticsResult, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if err := ValidateRange(startDate, endDate); err != nil {
		return nil, err
	}

	keywords = utils.NormalizeKeywords(keywords)
	result := newResult(keywords)

	doc, err := a.events.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if doc == nil || len(doc.Events) == 0 {
		return result, nil
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	for dateKey, day := range doc.Events {
		if dateKey < startDate || dateKey > endDate {
			continue
		}
		tallyDay(result, day, keywords, lowered)
	}
	return result, nil
}

// ValidateRange requires two YYYY-MM-DD keys with start not after end.
func ValidateRange(startDate, endDate string) error {
	if !utils.IsDateKeyFormat(startDate) || !utils.IsDateKeyFormat(endDate) {
		return fmt.Errorf("%w: dates must use YYYY-MM-DD", ErrInvalidRange)
	}
	if startDate > endDate {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidRange, startDate, endDate)
	}
	return nil
}

func newResult(keywords []string) *models.StatisticsResult {
	result := &models.StatisticsResult{CityDurations: map[string]int{}}
	if len(keywords) > 0 {
		result.KeywordCounts = make(map[string]int, len(keywords))
		for _, kw := range keywords {
			result.KeywordCounts[kw] = 0
		}
	}
	return result
}

func tallyDay(result *models.StatisticsResult, day models.DayRecord, keywords, lowered []string) {
	citiesToday := make(map[string]struct{}, len(day.CityRecords))
	for _, rec := range day.CityRecords {
		if city := utils.NormalizeCity(rec.City); city != "" {
			citiesToday[city] = struct{}{}
		}
	}
	for city := range citiesToday {
		result.CityDurations[city]++
	}

	if len(keywords) == 0 {
		return
	}
	for _, rec := range day.CityRecords {
		for _, act := range rec.Activities {
			if act.Description == "" {
				continue
			}
			desc := strings.ToLower(act.Description)
			for i, kw := range lowered {
				if strings.Contains(desc, kw) {
					result.KeywordCounts[keywords[i]]++
				}
			}
		}
	}
}
