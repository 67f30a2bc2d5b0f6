// Package dateutil provides calendar-date arithmetic for progress tracking.
// All challenge semantics work on whole calendar days; instants are collapsed
// to local midnight before any comparison so that clock time never influences
// whether a day counts.
package dateutil

import "time"

// Day truncates an instant to local midnight, preserving its location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two instants fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Yesterday returns local midnight of the day before t.
func Yesterday(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, -1)
}

// AddDays returns local midnight n days after t.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// Before reports whether a's calendar date precedes b's.
func Before(a, b time.Time) bool {
	return Day(a).Before(Day(b))
}

// After reports whether a's calendar date follows b's.
func After(a, b time.Time) bool {
	return Day(a).After(Day(b))
}

// OnOrAfter reports whether a's calendar date is b's date or later.
func OnOrAfter(a, b time.Time) bool {
	return !Before(a, b)
}

// DaysBetween counts whole days from a's date to b's date, inclusive of both.
// Used for travel logs where departure and return days both count.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a))/(24*time.Hour)) + 1
}

// Date builds a local-midnight instant in the given location.
func Date(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
