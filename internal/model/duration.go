package model

import (
	"fmt"
	"time"
)

// Minutes converts a step duration in minutes to a time.Duration.
func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// FormatDuration renders minutes as "45 min", "2h" or "1h 30m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dh", hours)
}
