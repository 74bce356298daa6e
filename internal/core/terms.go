package core

import "time"

// TermUnit is the period a credit term counts in.
type TermUnit string

const (
	TermBiweekly TermUnit = "biweekly"
	TermWeekly   TermUnit = "weekly"
)

const (
	biweeklyPeriod = 15 * 24 * time.Hour
	weeklyPeriod   = 7 * 24 * time.Hour
)

// DueDate computes when a credit sale created at from falls due. An
// unrecognized unit falls back to a flat 15 days, ignoring the count;
// the web layer validates units on input, so this only covers legacy
// rows.
func DueDate(from time.Time, unit TermUnit, count int) time.Time {
	if count < 1 {
		count = 1
	}
	switch unit {
	case TermBiweekly:
		return from.Add(time.Duration(count) * biweeklyPeriod)
	case TermWeekly:
		return from.Add(time.Duration(count) * weeklyPeriod)
	}
	return from.Add(biweeklyPeriod)
}
