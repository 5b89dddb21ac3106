// Package calendar edits a user's calendar document: whole-document replace and
// per-day city and activity changes.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"citycal/models"
	"citycal/store"
	"citycal/utils"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidDate  = errors.New("invalid date key")
	ErrInvalidInput = errors.New("invalid input")
)

// ActivityInput is an activity in a new city record; ids are always assigned here.
type ActivityInput struct {
	Description string `json:"description"`
}

// CityInput is the payload for a new city record.
type CityInput struct {
	City       string          `json:"city"`
	Activities []ActivityInput `json:"activities"`
	Weather    *models.Weather `json:"weather,omitempty"`
}

const lockStripes = 64

type Service struct {
	store store.EventStore
	// serializes read-modify-write cycles within this process; users share
	// stripes by hash so the set never grows
	locks [lockStripes]sync.Mutex
}

func NewService(events store.EventStore) *Service {
	return &Service{store: events}
}

func (s *Service) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *Service) lock(userID string) func() {
	mu := s.lockFor(userID)
	mu.Lock()
	return mu.Unlock
}

// Events returns the user's events map, empty when nothing was saved yet.
func (s *Service) Events(ctx context.Context, userID string) (map[string]models.DayRecord, error) {
	doc, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.Events == nil {
		return map[string]models.DayRecord{}, nil
	}
	return doc.Events, nil
}

// ReplaceEvents stores events as the user's whole calendar. Every key must be a
// real YYYY-MM-DD date; each day's date field is rewritten to its key and missing
// ids are filled in.
func (s *Service) ReplaceEvents(ctx context.Context, userID string, events map[string]models.DayRecord) error {
	clean := make(map[string]models.DayRecord, len(events))
	for key, day := range events {
		if !utils.IsValidDateKey(key) {
			return fmt.Errorf("%w: %q", ErrInvalidDate, key)
		}
		day.Date = key
		for i := range day.CityRecords {
			rec := &day.CityRecords[i]
			if rec.ID == "" {
				rec.ID = utils.GetUUID()
			}
			for j := range rec.Activities {
				if rec.Activities[j].ID == "" {
					rec.Activities[j].ID = utils.GetUUID()
				}
			}
		}
		clean[key] = day
	}

	unlock := s.lock(userID)
	defer unlock()
	return s.store.Save(ctx, userID, clean)
}

func (s *Service) Day(ctx context.Context, userID, date string) (models.DayRecord, error) {
	if !utils.IsValidDateKey(date) {
		return models.DayRecord{}, ErrInvalidDate
	}
	events, err := s.Events(ctx, userID)
	if err != nil {
		return models.DayRecord{}, err
	}
	day, ok := events[date]
	if !ok {
		return models.DayRecord{}, ErrNotFound
	}
	return day, nil
}

// AddCityRecord appends a new record to the day, creating the day when needed.
func (s *Service) AddCityRecord(ctx context.Context, userID, date string, in CityInput) (models.CityRecord, error) {
	if !utils.IsValidDateKey(date) {
		return models.CityRecord{}, ErrInvalidDate
	}
	name := strings.TrimSpace(in.City)
	if name == "" {
		return models.CityRecord{}, fmt.Errorf("%w: city is required", ErrInvalidInput)
	}

	rec := models.CityRecord{
		ID:         utils.GetUUID(),
		City:       name,
		Activities: []models.Activity{},
		Weather:    in.Weather,
	}
	for _, a := range in.Activities {
		if desc := strings.TrimSpace(a.Description); desc != "" {
			rec.Activities = append(rec.Activities, models.Activity{ID: utils.GetUUID(), Description: desc})
		}
	}

	err := s.mutate(ctx, userID, func(events map[string]models.DayRecord) error {
		day := events[date]
		day.Date = date
		day.CityRecords = append(day.CityRecords, rec)
		events[date] = day
		return nil
	})
	if err != nil {
		return models.CityRecord{}, err
	}
	return rec, nil
}

// DeleteCityRecord removes a record. The day itself is removed with its last record.
func (s *Service) DeleteCityRecord(ctx context.Context, userID, date, cityID string) error {
	if !utils.IsValidDateKey(date) {
		return ErrInvalidDate
	}
	return s.mutate(ctx, userID, func(events map[string]models.DayRecord) error {
		day, ok := events[date]
		if !ok {
			return ErrNotFound
		}
		idx := findCity(day, cityID)
		if idx < 0 {
			return ErrNotFound
		}
		day.CityRecords = append(day.CityRecords[:idx], day.CityRecords[idx+1:]...)
		if len(day.CityRecords) == 0 {
			delete(events, date)
			return nil
		}
		events[date] = day
		return nil
	})
}

func (s *Service) AddActivity(ctx context.Context, userID, date, cityID, description string) (models.Activity, error) {
	if !utils.IsValidDateKey(date) {
		return models.Activity{}, ErrInvalidDate
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return models.Activity{}, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}

	act := models.Activity{ID: utils.GetUUID(), Description: description}
	err := s.mutate(ctx, userID, func(events map[string]models.DayRecord) error {
		day, ok := events[date]
		if !ok {
			return ErrNotFound
		}
		idx := findCity(day, cityID)
		if idx < 0 {
			return ErrNotFound
		}
		day.CityRecords[idx].Activities = append(day.CityRecords[idx].Activities, act)
		events[date] = day
		return nil
	})
	if err != nil {
		return models.Activity{}, err
	}
	return act, nil
}

func (s *Service) UpdateActivity(ctx context.Context, userID, date, cityID, activityID, description string) (models.Activity, error) {
	if !utils.IsValidDateKey(date) {
		return models.Activity{}, ErrInvalidDate
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return models.Activity{}, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}

	var updated models.Activity
	err := s.mutate(ctx, userID, func(events map[string]models.DayRecord) error {
		acts, idx, err := locateActivity(events, date, cityID, activityID)
		if err != nil {
			return err
		}
		acts[idx].Description = description
		updated = acts[idx]
		return nil
	})
	return updated, err
}

// DeleteActivity removes one activity. The city record stays even when it was the last one.
func (s *Service) DeleteActivity(ctx context.Context, userID, date, cityID, activityID string) error {
	if !utils.IsValidDateKey(date) {
		return ErrInvalidDate
	}
	return s.mutate(ctx, userID, func(events map[string]models.DayRecord) error {
		day, ok := events[date]
		if !ok {
			return ErrNotFound
		}
		ci := findCity(day, cityID)
		if ci < 0 {
			return ErrNotFound
		}
		acts := day.CityRecords[ci].Activities
		for i := range acts {
			if acts[i].ID == activityID {
				day.CityRecords[ci].Activities = append(acts[:i], acts[i+1:]...)
				events[date] = day
				return nil
			}
		}
		return ErrNotFound
	})
}

// mutate loads the user's events from the primary store, applies fn and saves
// the result. Reads skip any cache so an edit never builds on a stale copy.
func (s *Service) mutate(ctx context.Context, userID string, fn func(map[string]models.DayRecord) error) error {
	unlock := s.lock(userID)
	defer unlock()

	doc, err := store.Primary(s.store).Get(ctx, userID)
	if err != nil {
		return err
	}
	events := map[string]models.DayRecord{}
	if doc != nil && doc.Events != nil {
		events = doc.Events
	}
	if err := fn(events); err != nil {
		return err
	}
	return s.store.Save(ctx, userID, events)
}

func findCity(day models.DayRecord, cityID string) int {
	for i, rec := range day.CityRecords {
		if rec.ID == cityID {
			return i
		}
	}
	return -1
}

func locateActivity(events map[string]models.DayRecord, date, cityID, activityID string) ([]models.Activity, int, error) {
	day, ok := events[date]
	if !ok {
		return nil, -1, ErrNotFound
	}
	ci := findCity(day, cityID)
	if ci < 0 {
		return nil, -1, ErrNotFound
	}
	acts := day.CityRecords[ci].Activities
	for i := range acts {
		if acts[i].ID == activityID {
			return acts, i, nil
		}
	}
	return nil, -1, ErrNotFound
}
