// Package overlay renders the injected bookmark panel and the scrub-bar
// markers. Renders are full rebuilds from the current list; the page holds
// no bookmark state of its own.
package overlay

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/vidmark/internal/browser"
	"github.com/hazyhaar/vidmark/internal/store"
	"github.com/hazyhaar/vidmark/internal/timefmt"
)

//go:embed overlay.js
var overlayJS string

//go:embed overlay.css
var overlayCSS string

// Overlay drives the page-side UI for one tab.
type Overlay struct {
	page   browser.Scripter
	logger *slog.Logger
}

// New creates an Overlay on the given page.
func New(page browser.Scripter, logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay{page: page, logger: logger}
}

// Install injects the UI script and stylesheet. Idempotent per document.
func (o *Overlay) Install(ctx context.Context) error {
	if _, err := o.page.Eval(ctx, overlayJS); err != nil {
		return fmt.Errorf("overlay: install: %w", err)
	}
	if _, err := o.page.Eval(ctx,
		`(css) => window.__vidmarkUI.style(css)`, overlayCSS); err != nil {
		return fmt.Errorf("overlay: install css: %w", err)
	}
	return nil
}

// Mount (re)creates the panel container at the head of the host side
// panel, falling back to the document body when the region is absent.
func (o *Overlay) Mount(ctx context.Context) error {
	if _, err := o.page.Eval(ctx,
		`() => window.__vidmarkUI.mount()`); err != nil {
		return fmt.Errorf("overlay: mount: %w", err)
	}
	return nil
}

// Unmount removes the panel and all markers. Failures degrade to a log
// line; a vanished document means there is nothing left to remove.
func (o *Overlay) Unmount(ctx context.Context) {
	if _, err := o.page.Eval(ctx,
		`() => { if (window.__vidmarkUI) window.__vidmarkUI.unmount(); }`); err != nil {
		o.logger.Warn("overlay: unmount", "error", err)
	}
}

type row struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Note  string `json:"note"`
}

// RenderList rebuilds the bookmark list rows.
func (o *Overlay) RenderList(ctx context.Context, list []store.Bookmark) error {
	rows := make([]row, len(list))
	for i, bm := range list {
		rows[i] = row{Index: i, Label: timefmt.Format(bm.Time), Note: bm.Note}
	}

	if _, err := o.page.Eval(ctx,
		`(rows) => window.__vidmarkUI.renderList(rows)`, rows); err != nil {
		return fmt.Errorf("overlay: render list: %w", err)
	}
	return nil
}

type marker struct {
	Index int     `json:"index"`
	Pos   float64 `json:"pos"`
	Tip   string  `json:"tip"`
}

// RenderMarkers redraws the scrub-bar markers. Previously drawn markers
// are always removed; new ones are drawn only when the duration is known.
func (o *Overlay) RenderMarkers(ctx context.Context, list []store.Bookmark, duration float64) error {
	markers := buildMarkers(list, duration)

	if _, err := o.page.Eval(ctx,
		`(markers) => window.__vidmarkUI.renderMarkers(markers)`, markers); err != nil {
		return fmt.Errorf("overlay: render markers: %w", err)
	}
	return nil
}

func buildMarkers(list []store.Bookmark, duration float64) []marker {
	markers := make([]marker, 0, len(list))
	if duration <= 0 {
		return markers
	}

	for i, bm := range list {
		tip := timefmt.Format(bm.Time)
		if bm.Note != "" {
			tip += ": " + bm.Note
		}
		markers = append(markers, marker{
			Index: i,
			Pos:   MarkerPercent(bm.Time, duration),
			Tip:   tip,
		})
	}
	return markers
}

// Toast shows a transient user notice in the page.
func (o *Overlay) Toast(ctx context.Context, msg string) {
	if _, err := o.page.Eval(ctx,
		`(msg) => { if (window.__vidmarkUI) window.__vidmarkUI.toast(msg); }`, msg); err != nil {
		o.logger.Warn("overlay: toast", "error", err)
	}
}
