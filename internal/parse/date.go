package parse

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// ParseDate validates an ISO 8601 calendar date and returns it normalized
// as YYYY-MM-DD.
func ParseDate(raw string) (string, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return d.Format(DateLayout), nil
}

// ParseTime validates a time of day given as HH:MM:SS or HH:MM and returns
// it normalized as HH:MM:SS. A single-digit hour is accepted; minutes and
// seconds need two digits.
func ParseTime(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{TimeLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q: expected HH:MM:SS", raw)
}
