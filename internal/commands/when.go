package commands

import (
	"fmt"
	"strings"
	"time"
)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseWhen resolves a start time relative to now. It accepts "now",
// RFC 3339, "YYYY-MM-DD HH:MM" in loc, "HH:MM" today in loc, and offsets
// such as "+30m" or "in 2h".
func ParseWhen(input string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(strings.ToLower(input))
	switch {
	case s == "":
		return time.Time{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "start time is empty"}
	case s == "now":
		return now, nil
	case strings.HasPrefix(s, "+"), strings.HasPrefix(s, "in "):
		raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(s, "+"), "in "))
		d, err := time.ParseDuration(raw)
		if err != nil {
			return time.Time{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid offset: %s", input)}
		}
		return now.Add(d), nil
	}

	trimmed := strings.TrimSpace(input)
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("15:04", trimmed, loc); err == nil {
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	return time.Time{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unrecognised start time: %s", input)}
}
