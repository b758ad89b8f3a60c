// Package horizon defines the urgency buckets used to order planning
// and reconciliation work across tickets.
package horizon

import (
	"fmt"
	"strings"
	"time"
)

// Horizons lists the valid horizon values in urgency order (most urgent first).
var Horizons = []string{"now", "week", "next-week", "month", "year", "sometime"}

// Labels maps horizons to human-readable display names.
var Labels = map[string]string{
	"now":       "Now — urgent",
	"week":      "This Week",
	"next-week": "Next Week",
	"month":     "This / Next Month",
	"year":      "This Year",
	"sometime":  "Sometime",
}

// Label returns the display name for a horizon, falling back to the
// raw value for unknown horizons.
func Label(h string) string {
	if l, ok := Labels[strings.ToLower(h)]; ok {
		return l
	}
	return h
}

// periodHorizons maps a summary period to the horizons it covers.
var periodHorizons = map[string][]string{
	"day":   {"now"},
	"week":  {"now", "week"},
	"month": {"now", "week", "next-week", "month"},
	"year":  {"now", "week", "next-week", "month", "year"},
	"all":   Horizons,
}

// Validate normalizes a horizon value, returning an error for unknown values.
func Validate(value string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, h := range Horizons {
		if h == normalized {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("invalid horizon %q (must be one of: %s)", value, strings.Join(Horizons, ", "))
}

// SortKey returns a sort key for a horizon. Lower means more urgent;
// unknown horizons sort last.
func SortKey(h string) int {
	lower := strings.ToLower(h)
	for i, known := range Horizons {
		if known == lower {
			return i
		}
	}
	return len(Horizons)
}

// ForPeriod returns the horizons relevant to a summary period.
// Unknown periods cover all horizons.
func ForPeriod(period string) []string {
	if hs, ok := periodHorizons[period]; ok {
		return hs
	}
	return Horizons
}

// InferFromDue infers the best-matching horizon from a YYYY-MM-DD due
// date string. Unparseable dates map to "sometime".
func InferFromDue(due string) string {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(due))
	if err != nil {
		return "sometime"
	}
	return InferFromDate(d, time.Now())
}

// InferFromDate infers a horizon from a due date relative to today.
func InferFromDate(due, today time.Time) string {
	dueDate := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	delta := int(dueDate.Sub(todayDate).Hours() / 24)

	if delta <= 0 {
		return "now"
	}

	// Remaining days until the end of the week (Sunday).
	weekday := int(todayDate.Weekday()) // Sunday=0
	daysUntilEndOfWeek := (7 - weekday) % 7
	if delta <= daysUntilEndOfWeek {
		return "week"
	}
	if delta <= daysUntilEndOfWeek+7 {
		return "next-week"
	}
	if delta <= 60 {
		return "month"
	}

	endOfYear := time.Date(todayDate.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	if !dueDate.After(endOfYear) {
		return "year"
	}
	return "sometime"
}
