package models

// CalendarDocument is the single per-user document holding every day the user recorded.
type CalendarDocument struct {
	UserID string               `json:"userId" bson:"userId"`
	Events map[string]DayRecord `json:"events" bson:"events"`
}

// DayRecord holds the cities visited on one date. Date mirrors the map key.
type DayRecord struct {
	Date        string       `json:"date" bson:"date"`
	CityRecords []CityRecord `json:"cityRecords" bson:"cityRecords"`
}

type CityRecord struct {
	ID         string     `json:"id" bson:"id"`
	City       string     `json:"city" bson:"city"`
	Activities []Activity `json:"activities" bson:"activities"`
	// snapshot taken when the record was created, never refreshed
	Weather *Weather `json:"weather,omitempty" bson:"weather,omitempty"`
}

type Activity struct {
	ID          string `json:"id" bson:"id"`
	Description string `json:"description" bson:"description"`
}

// Weather is the standardized shape returned by the weather proxy.
type Weather struct {
	Temperature float64 `json:"temperature" bson:"temperature"`
	Condition   string  `json:"condition" bson:"condition"`
	Icon        string  `json:"icon,omitempty" bson:"icon,omitempty"`
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (d *CalendarDocument) Clone() *CalendarDocument {
	if d == nil {
		return nil
	}
	out := &CalendarDocument{UserID: d.UserID, Events: CloneEvents(d.Events)}
	return out
}

// CloneEvents deep-copies an events map.
func CloneEvents(events map[string]DayRecord) map[string]DayRecord {
	out := make(map[string]DayRecord, len(events))
	for key, day := range events {
		out[key] = day.Clone()
	}
	return out
}

func (d DayRecord) Clone() DayRecord {
	out := DayRecord{Date: d.Date}
	if d.CityRecords != nil {
		out.CityRecords = make([]CityRecord, len(d.CityRecords))
		for i, rec := range d.CityRecords {
			out.CityRecords[i] = rec.Clone()
		}
	}
	return out
}

func (c CityRecord) Clone() CityRecord {
	out := CityRecord{ID: c.ID, City: c.City}
	if c.Activities != nil {
		out.Activities = append([]Activity(nil), c.Activities...)
	}
	if c.Weather != nil {
		w := *c.Weather
		out.Weather = &w
	}
	return out
}
