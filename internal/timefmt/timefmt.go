// Package timefmt formats playback positions for display and export.
package timefmt

import (
	"fmt"
	"math"
)

// Format renders seconds as MM:SS, or H:MM:SS zero-padded to HH:MM:SS
// when an hour or more. Fractional seconds are truncated. Non-finite or
// negative input renders as "00:00".
func Format(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
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
