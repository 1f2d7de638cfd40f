// Package scope implements visibility resolution for distributable content
// and eligibility matching for job postings against the institution
// hierarchy (network -> college -> department -> section -> academic year).
package scope

import (
	"strconv"
	"strings"
)

// MinYear and MaxYear bound the canonical academic year. Five-year integrated
// programmes exist in the network, so the upper bound is 5.
const (
	MinYear = 1
	MaxYear = 5
)

var yearWords = map[string]int{
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"fifth":  5,
	"one":    1,
	"two":    2,
	"three":  3,
	"four":   4,
	"five":   5,
}

// NormalizeYear converts heterogeneous year representations ("1", "1st",
// "First", 1) into a canonical integer. The second return value is false for
// anything unparseable or out of range; callers must treat that as "year
// unknown", never as "no restriction".
func NormalizeYear(raw any) (int, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		return clampYear(v)
	case int64:
		return clampYear(int(v))
	case float64:
		// JSON numbers decode as float64.
		if v != float64(int(v)) {
			return 0, false
		}
		return clampYear(int(v))
	case *int:
		if v == nil {
			return 0, false
		}
		return clampYear(*v)
	case string:
		return normalizeYearString(v)
	case *string:
		if v == nil {
			return 0, false
		}
		return normalizeYearString(*v)
	default:
		return 0, false
	}
}

func normalizeYearString(raw string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	if n, ok := yearWords[s]; ok {
		return n, true
	}
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		if trimmed, found := strings.CutSuffix(s, suffix); found {
			s = strings.TrimSpace(trimmed)
			break
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return clampYear(n)
}

func clampYear(n int) (int, bool) {
	if n < MinYear || n > MaxYear {
		return 0, false
	}
	return n, true
}
