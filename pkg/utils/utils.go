package utils

import (
	"fmt"
	"time"
)

// FormatRoundedUnit renders a span of seconds in its largest whole unit
func FormatRoundedUnit(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%dh", seconds/3600)
	}
	return fmt.Sprintf("%dm", seconds/60)
}

// FormatAgo renders how long before now t happened, e.g. "5m ago"
func FormatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return FormatRoundedUnit(int64(now.Sub(t).Seconds())) + " ago"
}

// MuteLabel is the word shown for a mute flag
func MuteLabel(muted bool) string {
	if muted {
		return "muted"
	}
	return "unmuted"
}
