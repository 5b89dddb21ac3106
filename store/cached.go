package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"citycal/metrics"
	"citycal/models"
	"citycal/rdx"
)

const calendarKeyPrefix = "calendar:"

// CachedEventStore is a redis cache in front of another EventStore. Save writes
// through; a read miss only fills an absent key so a slow reader cannot
// overwrite a newer save. Cache failures are logged and never fail a request.
type CachedEventStore struct {
	next EventStore
	conn *rdx.Conn
	ttl  time.Duration
}

func NewCachedEventStore(next EventStore, conn *rdx.Conn, ttl time.Duration) *CachedEventStore {
	return &CachedEventStore{next: next, conn: conn, ttl: ttl}
}

func (s *CachedEventStore) Get(ctx context.Context, userID string) (*models.CalendarDocument, error) {
	key := calendarKeyPrefix + userID

	var cached models.CalendarDocument
	err := s.conn.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		metrics.ObserveCache("calendar", metrics.Hit)
		return &cached, nil
	case errors.Is(err, rdx.ErrMiss):
		metrics.ObserveCache("calendar", metrics.Miss)
	default:
		metrics.ObserveCache("calendar", metrics.Error)
		log.Warn().Err(err).Str("userId", userID).Msg("calendar cache read failed")
	}

	doc, err := s.next.Get(ctx, userID)
	if err != nil || doc == nil {
		return doc, err
	}
	if _, err := s.conn.SetJSONNX(ctx, key, doc, s.ttl); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("calendar cache fill failed")
	}
	return doc, nil
}

func (s *CachedEventStore) Save(ctx context.Context, userID string, events map[string]models.DayRecord) error {
	if err := s.next.Save(ctx, userID, events); err != nil {
		return err
	}
	key := calendarKeyPrefix + userID
	doc := &models.CalendarDocument{UserID: userID, Events: events}
	if err := s.conn.SetJSON(ctx, key, doc, s.ttl); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("calendar cache write failed")
		if err := s.conn.Del(ctx, key); err != nil {
			log.Warn().Err(err).Str("userId", userID).Msg("calendar cache invalidation failed")
		}
	}
	return nil
}

// Primary returns the store behind any cache layer.
func Primary(es EventStore) EventStore {
	if c, ok := es.(*CachedEventStore); ok {
		return c.next
	}
	return es
}
