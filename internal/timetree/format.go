package timetree

import (
	"fmt"
	"strings"
)

// Conversion constants. A year is 365 days.
const (
	yearSec   = 31536000
	weekSec   = 604800
	daySec    = 86400
	hourSec   = 3600
	minuteSec = 60
)

// FormatElapsed renders a duration in seconds as a compact unit string like
// "2y 51w 6d 23h 59m 59s", showing only non-zero units. Negative or zero
// input yields "0s".
func FormatElapsed(seconds float64) string {
	remaining := int64(seconds)
	if remaining <= 0 {
		return "0s"
	}

	units := []struct {
		suffix string
		sec    int64
	}{
		{"y", yearSec},
		{"w", weekSec},
		{"d", daySec},
		{"h", hourSec},
		{"m", minuteSec},
		{"s", 1},
	}

	var parts []string
	for _, u := range units {
		if v := remaining / u.sec; v > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", v, u.suffix))
		}
		remaining %= u.sec
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
