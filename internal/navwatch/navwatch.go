// Package navwatch detects SPA navigations in the host page. Three
// redundant producers (history wrappers, host navigation events, a
// location-diffing MutationObserver) feed one binding; consumers debounce
// the signals into a single resynchronization per logical navigation.
package navwatch

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/hazyhaar/vidmark/internal/browser"
)

//go:embed hooks.js
var hooksJS string

// Install injects the navigation hooks into the current document. Safe to
// call repeatedly; the page-side flag guards double installation.
func Install(ctx context.Context, page browser.Scripter) error {
	if _, err := page.Eval(ctx, hooksJS); err != nil {
		return fmt.Errorf("navwatch: install hooks: %w", err)
	}
	return nil
}
