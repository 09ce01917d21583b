package lifespan

import "time"

// WeeksPerYear converts expectancy years into weeks.
const WeeksPerYear = 52

// Stats are recomputed on every call; nothing here is persisted.
type Stats struct {
	WeeksLived      int
	WeeksLeft       int
	ExpectancyYears int
}

// Compute derives weeks lived and left for a birth date at the instant now.
// WeeksLeft goes negative once the expected span is exceeded.
func Compute(dob time.Time, years int, now time.Time) Stats {
	lived := elapsedDays(dob, now) / 7
	return Stats{
		WeeksLived:      lived,
		WeeksLeft:       years*WeeksPerYear - lived,
		ExpectancyYears: years,
	}
}

// elapsedDays counts calendar days from dob to the calendar date of now in now's location.
func elapsedDays(dob, now time.Time) int {
	from := time.Date(dob.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int((to.Unix() - from.Unix()) / 86400)
}
