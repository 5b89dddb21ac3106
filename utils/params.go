package utils

import (
	"regexp"
	"strings"
	"time"
)

const DateKeyLayout = "2006-01-02"

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsDateKeyFormat checks the YYYY-MM-DD shape only. Range filtering needs nothing more,
// because zero-padded keys compare correctly as strings.
func IsDateKeyFormat(s string) bool {
	return dateKeyPattern.MatchString(s)
}

// IsValidDateKey additionally requires s to name a real calendar day.
func IsValidDateKey(s string) bool {
	if !IsDateKeyFormat(s) {
		return false
	}
	_, err := time.Parse(DateKeyLayout, s)
	return err == nil
}

func ParseDate(s string) *time.Time {
	t, err := time.Parse(DateKeyLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// SplitKeywords takes a comma-separated string and returns the trimmed, non-empty
// keywords in input order with exact duplicates removed. Case is preserved.
func SplitKeywords(input string) []string {
	if input == "" {
		return []string{}
	}
	return NormalizeKeywords(strings.Split(input, ","))
}

// NormalizeKeywords trims each keyword and drops empties and repeats.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		kw := strings.TrimSpace(p)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// NormalizeCity is the grouping key for cities: trimmed and lower-cased.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
