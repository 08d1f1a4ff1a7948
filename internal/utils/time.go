package utils

import (
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate parses a calendar date in the API wire format.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// StartOfDay zeroes the time-of-day component for calendar comparisons.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RentalDays returns the number of chargeable days between two dates,
// rounding partial days up. A same-day range is invalid upstream, so the
// result is always >= 1 for valid input.
func RentalDays(start, end time.Time) int {
	hours := end.Sub(start).Hours()
	days := int(hours / 24)
	if hours > float64(days)*24 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// DaysCovered lists every calendar day in [start, end] inclusive. Both
// boundary days count because touching ranges are treated as conflicting.
func DaysCovered(start, end time.Time) []string {
	var days []string
	for d := StartOfDay(start); !d.After(StartOfDay(end)); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}
