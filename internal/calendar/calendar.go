// Package calendar maps timestamps to the string bucket keys used by the
// daily summary store and the aggregation engine. All three key functions
// are deterministic for a given (timestamp, location) pair; the service-wide
// location comes from config (TIMEZONE, default UTC).
package calendar

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// DayKey returns the calendar date of t in loc as "YYYY-MM-DD".
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// ISOWeekKey returns the ISO-8601 week of t in loc as "YYYY-Www".
// Week 1 is the week containing the year's first Thursday; weeks run
// Monday through Sunday, so a late-December date can key into week 1 of
// the following year and an early-January date into the last week of the
// previous one.
func ISOWeekKey(t time.Time, loc *time.Location) string {
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey returns the calendar month of t in loc as "YYYY-MM".
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

// ParseDay parses a "YYYY-MM-DD" day key into midnight of that day in loc.
func ParseDay(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}

// IsDayKey reports whether key is a well-formed "YYYY-MM-DD" date.
func IsDayKey(key string) bool {
	_, err := time.Parse(dayLayout, key)
	return err == nil
}
