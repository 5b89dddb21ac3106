package models

// StatisticsResult is the aggregation output. KeywordCounts is nil when no keywords were requested.
type StatisticsResult struct {
	CityDurations map[string]int `json:"cityDurations"`
	KeywordCounts map[string]int `json:"keywordCounts,omitempty"`
}
