package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const finishedLabel = "finished"

// RemainingLabel renders the time left until target as "2d 5h 30m", "12h", "45m".
// Zero leading units are omitted; a target at or before now yields "finished".
func RemainingLabel(target, now time.Time) string {
	left := target.Sub(now)
	if left <= 0 {
		return finishedLabel
	}

	totalMinutes := int64(left / time.Minute)
	days := totalMinutes / (24 * 60)
	hours := (totalMinutes / 60) % 24
	minutes := totalMinutes % 60

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}

// FormatDate renders a timestamp for chat messages. Nil yields "N/A".
func FormatDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// FormatDuration renders a policy duration the way users read it:
// whole hours in normal mode, minutes or seconds when accelerated.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int64(math.Round(d.Minutes())), "minute")
	default:
		return plural(int64(math.Round(d.Seconds())), "second")
	}
}

// FormatLeadTime renders the time left before rental expiry in the warning text.
func FormatLeadTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return plural(int64(math.Round(d.Seconds())), "second")
	case d < time.Hour:
		return plural(int64(math.Round(d.Minutes())), "minute")
	default:
		return plural(int64(math.Round(d.Hours())), "hour")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
