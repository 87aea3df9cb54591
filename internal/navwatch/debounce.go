package navwatch

import "time"

// Debouncer coalesces bursts of triggers into one firing after a trailing
// quiet window. A trigger inside the window cancels the pending firing and
// reschedules, so exactly one firing follows each burst. Not safe for
// concurrent use; it is driven from a single event loop.
type Debouncer struct {
	window  time.Duration
	timer   *time.Timer
	timerCh <-chan time.Time
}

// NewDebouncer creates a Debouncer with the given trailing window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Trigger (re)starts the quiet window.
func (d *Debouncer) Trigger() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.window)
	d.timerCh = d.timer.C
}

// C returns the channel that fires when the window expires. Nil (blocks
// forever in a select) while no trigger is pending.
func (d *Debouncer) C() <-chan time.Time {
	return d.timerCh
}

// Reset clears any pending firing. Call after consuming from C.
func (d *Debouncer) Reset() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
}
