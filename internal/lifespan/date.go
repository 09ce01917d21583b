package lifespan

import (
	"regexp"
	"time"
)

// DateLayout is the only date format accepted from users and stored in the registry.
const DateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseDate accepts text only if it is exactly YYYY-MM-DD and names a real
// calendar date. The result is midnight UTC of that date.
func ParseDate(text string) (time.Time, bool) {
	if !datePattern.MatchString(text) {
		return time.Time{}, false
	}
	// time.Parse rejects month 13, day 31 in 30-day months and Feb 29 outside leap years.
	t, err := time.ParseInLocation(DateLayout, text, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders t's calendar date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
