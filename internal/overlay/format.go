package overlay

import "math"

// MarkerPercent maps a bookmark time onto a horizontal scrub-bar position
// as a percentage, clamped to [0, 100]. Callers must not pass a zero,
// negative or non-finite duration; buildMarkers guards that.
func MarkerPercent(t, duration float64) float64 {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	pct := t / duration * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
