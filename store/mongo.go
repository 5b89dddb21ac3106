package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"citycal/db"
	"citycal/models"
)

type mongoEventStore struct {
	coll *mongo.Collection
}

// NewMongoEventStore stores one document per user in the calendarEvents collection.
func NewMongoEventStore(m *db.MongoDB) EventStore {
	return &mongoEventStore{coll: m.Collection(db.CalendarCollectionName)}
}

func (s *mongoEventStore) Get(ctx context.Context, userID string) (*models.CalendarDocument, error) {
	raw, err := s.coll.FindOne(ctx, bson.M{"userId": userID}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find calendar for %s: %w", userID, err)
	}
	return decodeCalendar(userID, raw), nil
}

func (s *mongoEventStore) Save(ctx context.Context, userID string, events map[string]models.DayRecord) error {
	if events == nil {
		events = map[string]models.DayRecord{}
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"userId": userID, "events": events}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save calendar for %s: %w", userID, err)
	}
	return nil
}

// decodeCalendar reads the document leniently. Documents whose events field is
// missing or not an object come back empty. Malformed days, city records and
// activities are skipped one by one; the map key is the authoritative date.
func decodeCalendar(userID string, raw bson.Raw) *models.CalendarDocument {
	doc := &models.CalendarDocument{UserID: userID, Events: map[string]models.DayRecord{}}

	val, err := raw.LookupErr("events")
	if err != nil {
		return doc
	}
	events, ok := val.DocumentOK()
	if !ok {
		log.Warn().Str("userId", userID).Str("type", val.Type.String()).
			Msg("calendar events field is not an object; treating as empty")
		return doc
	}

	elems, err := events.Elements()
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("calendar events could not be read; treating as empty")
		return doc
	}
	for _, elem := range elems {
		day, err := decodeDay(userID, elem.Key(), elem.Value())
		if err != nil {
			log.Warn().Err(err).Str("userId", userID).Str("date", elem.Key()).Msg("skipping malformed day")
			continue
		}
		doc.Events[elem.Key()] = day
	}
	return doc
}

func decodeDay(userID, date string, val bson.RawValue) (models.DayRecord, error) {
	day := models.DayRecord{Date: date, CityRecords: []models.CityRecord{}}
	raw, ok := val.DocumentOK()
	if !ok {
		return day, fmt.Errorf("day is %s, not an object", val.Type)
	}
	recs, err := raw.LookupErr("cityRecords")
	if err != nil {
		return day, nil
	}
	arr, ok := recs.ArrayOK()
	if !ok {
		return day, fmt.Errorf("cityRecords is %s, not an array", recs.Type)
	}
	values, err := arr.Values()
	if err != nil {
		return day, fmt.Errorf("read cityRecords: %w", err)
	}
	for i, v := range values {
		rec, err := decodeCityRecord(v)
		if err != nil {
			log.Warn().Err(err).Str("userId", userID).Str("date", date).Int("index", i).Msg("skipping malformed city record")
			continue
		}
		day.CityRecords = append(day.CityRecords, rec)
	}
	return day, nil
}

func decodeCityRecord(val bson.RawValue) (models.CityRecord, error) {
	rec := models.CityRecord{Activities: []models.Activity{}}
	raw, ok := val.DocumentOK()
	if !ok {
		return rec, fmt.Errorf("record is %s, not an object", val.Type)
	}
	city, ok := raw.Lookup("city").StringValueOK()
	if !ok {
		return rec, errors.New("city is missing or not a string")
	}
	rec.City = city
	rec.ID, _ = raw.Lookup("id").StringValueOK()

	if acts, ok := raw.Lookup("activities").ArrayOK(); ok {
		values, _ := acts.Values()
		for _, v := range values {
			act, ok := v.DocumentOK()
			if !ok {
				continue
			}
			desc, ok := act.Lookup("description").StringValueOK()
			if !ok {
				continue
			}
			id, _ := act.Lookup("id").StringValueOK()
			rec.Activities = append(rec.Activities, models.Activity{ID: id, Description: desc})
		}
	}

	if w, err := raw.LookupErr("weather"); err == nil && w.Type == bson.TypeEmbeddedDocument {
		var weather models.Weather
		if err := w.Unmarshal(&weather); err == nil {
			rec.Weather = &weather
		}
	}
	return rec, nil
}

type mongoUserStore struct {
	coll *mongo.Collection
}

// NewMongoUserStore keeps accounts in the users collection.
func NewMongoUserStore(m *db.MongoDB) UserStore {
	return &mongoUserStore{coll: m.Collection(db.UserCollectionName)}
}

func (s *mongoUserStore) Create(ctx context.Context, u *models.User) error {
	_, err := s.coll.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *mongoUserStore) FindByID(ctx context.Context, userID string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"userid": userID})
}

func (s *mongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *mongoUserStore) FindByGitHubID(ctx context.Context, githubID int64) (*models.User, error) {
	return s.findOne(ctx, bson.M{"githubId": githubID})
}

func (s *mongoUserStore) FindByRefreshToken(ctx context.Context, hashedToken string) (*models.User, error) {
	if hashedToken == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"refreshToken": hashedToken})
}

func (s *mongoUserStore) Update(ctx context.Context, u *models.User) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"userid": u.UserID}, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.UserID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := s.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
