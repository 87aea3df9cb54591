// Package player reads and controls the host page's playback element. The
// element is re-resolved lazily on every access because the host page
// replaces video nodes across SPA navigations without notice.
package player

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hazyhaar/vidmark/internal/browser"
)

//go:embed player.js
var playerJS string

// Player is the time source and element binder for one tab.
type Player struct {
	page   browser.Scripter
	logger *slog.Logger
}

// New creates a Player on the given page.
func New(page browser.Scripter, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{page: page, logger: logger}
}

// Install injects the page-side helper. Idempotent per document.
func (p *Player) Install(ctx context.Context) error {
	if _, err := p.page.Eval(ctx, playerJS); err != nil {
		return fmt.Errorf("player: install: %w", err)
	}
	return nil
}

type state struct {
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

// readState returns nil when no playback element is attached.
func (p *Player) readState(ctx context.Context) *state {
	raw, err := p.page.Eval(ctx,
		`() => window.__vidmarkPlayer ? window.__vidmarkPlayer.state() : null`)
	if err != nil {
		p.logger.Warn("player: read state", "error", err)
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		p.logger.Warn("player: decode state", "error", err)
		return nil
	}
	return &st
}

// Position returns the playback position clamped to [0, duration], or 0
// with a warning when no playback element exists. Never fails.
func (p *Player) Position(ctx context.Context) float64 {
	st := p.readState(ctx)
	if st == nil {
		p.logger.Warn("player: no playback element, position defaults to 0")
		return 0
	}

	pos := st.Position
	if math.IsNaN(pos) || pos < 0 {
		pos = 0
	}
	if st.Duration > 0 && pos > st.Duration {
		pos = st.Duration
	}
	return pos
}

// Duration returns the media length, or 0 when unknown. Callers treat 0
// as "cannot place markers yet".
func (p *Player) Duration(ctx context.Context) float64 {
	st := p.readState(ctx)
	if st == nil {
		return 0
	}
	if math.IsNaN(st.Duration) || math.IsInf(st.Duration, 0) || st.Duration < 0 {
		return 0
	}
	return st.Duration
}

// Seek moves playback to t and resumes. A missing element or a refused
// play() is swallowed.
func (p *Player) Seek(ctx context.Context, t float64) {
	if _, err := p.page.Eval(ctx,
		`(t) => window.__vidmarkPlayer ? window.__vidmarkPlayer.seek(t) : false`, t); err != nil {
		p.logger.Warn("player: seek", "time", t, "error", err)
	}
}

// Rebind re-attaches the timeupdate listener and resize observation to
// the current playback element. No-op when the element is unchanged.
func (p *Player) Rebind(ctx context.Context) {
	if _, err := p.page.Eval(ctx,
		`() => { if (window.__vidmarkPlayer) window.__vidmarkPlayer.rebind(); }`); err != nil {
		p.logger.Warn("player: rebind", "error", err)
	}
}

// Detach drops listeners from the currently bound element.
func (p *Player) Detach(ctx context.Context) {
	if _, err := p.page.Eval(ctx,
		`() => { if (window.__vidmarkPlayer) window.__vidmarkPlayer.detach(); }`); err != nil {
		p.logger.Warn("player: detach", "error", err)
	}
}

// readyJS checks for the two elements the first render depends on. The
// host page constructs both asynchronously after document load.
const readyJS = `() => ({
	video: !!document.querySelector('video'),
	panel: !!document.querySelector('#secondary, #secondary-inner, #related'),
})`

// WaitReady polls until a playback element and the side-panel region both
// exist, or ctx expires. Returns false on timeout; callers may proceed
// anyway and let the overlay fall back to the document body.
func (p *Player) WaitReady(ctx context.Context) bool {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		raw, err := p.page.Eval(ctx, readyJS)
		if err == nil {
			var r struct {
				Video bool `json:"video"`
				Panel bool `json:"panel"`
			}
			if json.Unmarshal(raw, &r) == nil && r.Video && r.Panel {
				return true
			}
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
