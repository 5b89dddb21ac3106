package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func rawDoc(t *testing.T, v interface{}) bson.Raw {
	t.Helper()
	data, err := bson.Marshal(v)
	require.NoError(t, err)
	return bson.Raw(data)
}

func TestDecodeCalendarWellFormed(t *testing.T) {
	raw := rawDoc(t, bson.M{
		"userId": "u1",
		"events": bson.M{
			"2024-03-01": bson.M{
				"date": "2024-03-01T00:00:00.000Z",
				"cityRecords": bson.A{
					bson.M{
						"id":         "c1",
						"city":       "Tokyo",
						"activities": bson.A{bson.M{"id": "a1", "description": "team meeting"}},
						"weather":    bson.M{"temperature": 18, "condition": "Clear", "icon": "Clear"},
					},
				},
			},
		},
	})

	doc := decodeCalendar("u1", raw)
	require.Len(t, doc.Events, 1)
	day := doc.Events["2024-03-01"]
	assert.Equal(t, "2024-03-01", day.Date)
	require.Len(t, day.CityRecords, 1)
	assert.Equal(t, "Tokyo", day.CityRecords[0].City)
	assert.Equal(t, "team meeting", day.CityRecords[0].Activities[0].Description)
	require.NotNil(t, day.CityRecords[0].Weather)
	assert.Equal(t, float64(18), day.CityRecords[0].Weather.Temperature)
}

func TestDecodeCalendarMissingEvents(t *testing.T) {
	doc := decodeCalendar("u1", rawDoc(t, bson.M{"userId": "u1"}))
	assert.Equal(t, "u1", doc.UserID)
	assert.Empty(t, doc.Events)
}

func TestDecodeCalendarEventsNotObject(t *testing.T) {
	for _, events := range []interface{}{"oops", bson.A{1, 2}, 7, nil} {
		doc := decodeCalendar("u1", rawDoc(t, bson.M{"userId": "u1", "events": events}))
		assert.Empty(t, doc.Events, "events=%v", events)
	}
}

func TestDecodeCalendarSkipsMalformedDay(t *testing.T) {
	raw := rawDoc(t, bson.M{
		"userId": "u1",
		"events": bson.M{
			"2024-03-01": "not a day",
			"2024-03-02": bson.M{"cityRecords": bson.A{bson.M{"id": "c1", "city": "Oslo"}}},
		},
	})
	doc := decodeCalendar("u1", raw)
	require.Len(t, doc.Events, 1)
	assert.Equal(t, "Oslo", doc.Events["2024-03-02"].CityRecords[0].City)
}

func TestDecodeCalendarSkipsOnlyMalformedRecords(t *testing.T) {
	raw := rawDoc(t, bson.M{
		"userId": "u1",
		"events": bson.M{
			"2024-03-01": bson.M{
				"cityRecords": bson.A{
					bson.M{
						"id":   "c1",
						"city": "Paris",
						"activities": bson.A{
							bson.M{"id": "a1", "description": "Louvre"},
							bson.M{"id": "a2", "description": 7},
							"stray",
						},
						"weather": "sunny",
					},
					bson.M{"city": 42},
					"not a record",
				},
			},
			"2024-03-02": bson.M{"cityRecords": "oops"},
			"2024-03-03": bson.M{"date": "2024-03-03"},
		},
	})

	doc := decodeCalendar("u1", raw)
	require.Len(t, doc.Events, 2)

	day := doc.Events["2024-03-01"]
	require.Len(t, day.CityRecords, 1)
	rec := day.CityRecords[0]
	assert.Equal(t, "Paris", rec.City)
	assert.Equal(t, "c1", rec.ID)
	require.Len(t, rec.Activities, 1)
	assert.Equal(t, "Louvre", rec.Activities[0].Description)
	assert.Nil(t, rec.Weather)

	assert.NotNil(t, doc.Events["2024-03-03"].CityRecords)
	assert.Empty(t, doc.Events["2024-03-03"].CityRecords)
}
