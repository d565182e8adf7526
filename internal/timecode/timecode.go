// Package timecode converts between playback positions in seconds and the
// clock, human and relative-date labels shown by the player.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Relative-time bucket thresholds, in seconds.
const (
	minute = 60
	hour   = 3600
	day    = 86400
	month  = 2592000
	year   = 31536000
)

func split(seconds float64) (h, m, s int) {
	total := int(math.Floor(seconds))
	return total / hour, (total % hour) / minute, total % minute
}

func missing(seconds float64) bool {
	return math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0
}

// Clock formats seconds as MM:SS, or HH:MM:SS once the position passes an hour
func Clock(seconds float64) string {
	if missing(seconds) {
		return "00:00"
	}
	h, m, s := split(seconds)
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Human formats a duration coarsely: "1h 52m", "2m 30s" or "45s".
// A zero, negative or NaN duration is reported as "0m 0s".
func Human(seconds float64) string {
	if missing(seconds) {
		return "0m 0s"
	}
	h, m, s := split(seconds)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// ClockToSeconds parses MM:SS or HH:MM:SS into total seconds.
// Anything that is not two or three colon-separated unsigned integers yields 0.
func ClockToSeconds(text string) int {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}

	values := make([]int, len(parts))
	for i, part := range parts {
		if part == "" || strings.IndexFunc(part, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			return 0
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		values[i] = v
	}

	if len(values) == 3 {
		return values[0]*hour + values[1]*minute + values[2]
	}
	return values[0]*minute + values[1]
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseISO parses the ISO 8601 shapes found in episode metadata.
func ParseISO(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", text)
}

// Day returns the YYYY-MM-DD portion of an ISO timestamp, in the timestamp's own offset.
func Day(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	t, err := ParseISO(text)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// Relative describes how long ago text was, relative to now.
func Relative(text string, now time.Time) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	t, err := ParseISO(text)
	if err != nil {
		return ""
	}

	elapsed := int64(math.Floor(now.Sub(t).Seconds()))
	switch {
	case elapsed < minute:
		return "just now"
	case elapsed < hour:
		return ago(elapsed/minute, "minute")
	case elapsed < day:
		return ago(elapsed/hour, "hour")
	case elapsed < month:
		return ago(elapsed/day, "day")
	case elapsed < year:
		return ago(elapsed/month, "month")
	default:
		return ago(elapsed/year, "year")
	}
}

func ago(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// Duration converts fractional seconds to a time.Duration.
func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// Seconds converts a time.Duration to fractional seconds.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}
