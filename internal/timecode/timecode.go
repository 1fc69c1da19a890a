// Package timecode converts between the transcript's human timestamp form
// ("MM:SS" or "HH:MM:SS") and a seconds offset.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders seconds as MM:SS, or HH:MM:SS once an hour is reached.
// Fractional seconds are truncated; negative input clamps to zero.
func Format(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Parse accepts "SS", "MM:SS" or "HH:MM:SS"; the last component may carry
// fractional seconds.
func Parse(ts string) (float64, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return 0, fmt.Errorf("timecode: empty timestamp")
	}
	parts := strings.Split(ts, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("timecode: malformed timestamp %q", ts)
	}

	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("timecode: malformed timestamp %q: %w", ts, err)
	}
	if sec < 0 {
		return 0, fmt.Errorf("timecode: negative seconds in %q", ts)
	}

	mult := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("timecode: malformed timestamp %q", ts)
		}
		sec += float64(n) * mult
		mult *= 60
	}
	return sec, nil
}
