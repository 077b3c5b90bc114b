package utils

import (
	"fmt"
	"time"
)

// FromMillis converts a unix millisecond timestamp to local time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// FormatDuration renders d compactly: 850ms, 2.50s, 3m12s, 1h05m.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", d/time.Minute, (d%time.Minute)/time.Second)
	default:
		return fmt.Sprintf("%dh%02dm", d/time.Hour, (d%time.Hour)/time.Minute)
	}
}
