package vidmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/vidmark/internal/export"
	"github.com/hazyhaar/vidmark/internal/identity"
	"github.com/hazyhaar/vidmark/internal/navwatch"
	"github.com/hazyhaar/vidmark/internal/store"
)

// elementWait bounds how long a resync waits for the host page to build
// its video and side-panel elements before proceeding with fallbacks.
const elementWait = 15 * time.Second

func decodeEvent(payload string) (pageEvent, error) {
	var ev pageEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	if ev.Op == "" {
		return ev, fmt.Errorf("decode event: missing op")
	}
	return ev, nil
}

// loop is the single execution context for all bookmark state. Handlers
// run to completion; the only timers are the two trailing debounce
// windows, and a new trigger inside a window reschedules it.
func (s *Session) loop(ctx context.Context) {
	defer close(s.done)

	navDeb := navwatch.NewDebouncer(s.cfg.Debounce.Navigation)
	markDeb := navwatch.NewDebouncer(s.cfg.Debounce.Markers)

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-s.events:
			switch ev.Op {
			case "navigate":
				s.lastURL = ev.URL
				navDeb.Trigger()
			case "reload":
				s.lastURL = ev.URL
				s.stale = true
				navDeb.Trigger()
			case "timeupdate", "resize":
				if s.ActiveID() != "" {
					markDeb.Trigger()
				}
			default:
				s.handleAction(ctx, ev)
			}

		case <-navDeb.C():
			navDeb.Reset()
			s.resync(ctx)

		case <-markDeb.C():
			markDeb.Reset()
			s.redrawMarkers(ctx)
		}
	}
}

// resync realigns in-memory state, storage and the overlay with the
// current location. Idempotent against redundant signals for the same
// identifier, unless the document was replaced in between.
func (s *Session) resync(ctx context.Context) {
	id := identity.Resolve(s.lastURL)
	if id == s.ActiveID() && !s.stale {
		return
	}
	s.stale = false

	if id == "" {
		s.logger.Info("vidmark: left content page", "url", s.lastURL)
		s.store.Discard()
		s.overlay.Unmount(ctx)
		s.player.Detach(ctx)
		s.setActive("", "", nil)
		return
	}

	s.logger.Info("vidmark: video changed", "id", id)

	// A full reload replaces the document; reinstalling is a no-op when
	// the scripts survived.
	s.installScripts(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, elementWait)
	ready := s.player.WaitReady(waitCtx)
	cancel()
	if !ready {
		s.logger.Warn("vidmark: page elements not ready, proceeding", "id", id)
	}

	s.player.Rebind(ctx)

	if err := s.store.Load(ctx, id); err != nil {
		// Storage being unavailable must not leave another video's
		// bookmarks on screen.
		s.logger.Error("vidmark: load bookmarks", "id", id, "error", err)
		s.store.Discard()
	}

	title := s.readTitle(ctx)
	s.setActive(id, title, s.store.Bookmarks())

	if err := s.overlay.Mount(ctx); err != nil {
		s.logger.Warn("vidmark: mount overlay", "error", err)
	}
	s.renderAll(ctx)
}

// handleAction processes a user interaction from the overlay. Every
// mutation persists and is followed by a full re-render.
func (s *Session) handleAction(ctx context.Context, ev pageEvent) {
	id := s.ActiveID()
	if id == "" {
		return
	}

	switch ev.Op {
	case "save":
		pos := s.player.Position(ctx)
		s.persistLogged(ev.Op, s.store.Add(ctx, id, pos, ""))
		s.renderAll(ctx)

	case "remove":
		s.persistLogged(ev.Op, s.store.RemoveAt(ctx, id, ev.Index))
		s.renderAll(ctx)

	case "note":
		s.persistLogged(ev.Op, s.store.UpdateNote(ctx, id, ev.Index, strings.TrimSpace(ev.Note)))
		s.renderAll(ctx)

	case "clear":
		s.persistLogged(ev.Op, s.store.Clear(ctx, id))
		s.renderAll(ctx)

	case "jump":
		// Resolve the index against the current list, never a cached one.
		list := s.store.Bookmarks()
		if ev.Index < 0 || ev.Index >= len(list) {
			return
		}
		s.player.Seek(ctx, list[ev.Index].Time)

	case "export":
		s.exportActive(ctx)

	default:
		s.logger.Warn("vidmark: unknown page event", "op", ev.Op)
	}
}

// persistLogged contains storage failures: the in-memory change stands,
// the loss of durability is logged, and rendering continues.
func (s *Session) persistLogged(op string, err error) {
	if err != nil {
		s.logger.Error("vidmark: persist failed, change is in-memory only",
			"op", op, "error", err)
	}
}

func (s *Session) exportActive(ctx context.Context) {
	res, err := s.ExportActive(ctx)
	switch {
	case errors.Is(err, export.ErrNoBookmarks):
		s.overlay.Toast(ctx, "No bookmarks to export")
	case err != nil:
		s.logger.Error("vidmark: export failed", "error", err)
		s.overlay.Toast(ctx, "Export failed")
	default:
		s.overlay.Toast(ctx, "Exported "+filepath.Base(res.Path))
	}
}

// renderAll rebuilds the list and markers from the store and refreshes
// the API snapshot.
func (s *Session) renderAll(ctx context.Context) {
	list := s.store.Bookmarks()

	s.mu.Lock()
	s.snapshot = list
	s.mu.Unlock()

	if err := s.overlay.RenderList(ctx, list); err != nil {
		s.logger.Warn("vidmark: render list", "error", err)
	}
	s.redrawMarkers(ctx)
}

func (s *Session) redrawMarkers(ctx context.Context) {
	if s.ActiveID() == "" {
		return
	}
	duration := s.player.Duration(ctx)
	if err := s.overlay.RenderMarkers(ctx, s.store.Bookmarks(), duration); err != nil {
		s.logger.Warn("vidmark: render markers", "error", err)
	}
}

func (s *Session) setActive(id, title string, snapshot []store.Bookmark) {
	s.mu.Lock()
	s.currentID = id
	s.title = title
	s.snapshot = snapshot
	s.mu.Unlock()
}

// readTitle fetches the page title for export filenames, trimming the
// host suffix.
func (s *Session) readTitle(ctx context.Context) string {
	raw, err := s.page.Eval(ctx, `() => document.title`)
	if err != nil {
		s.logger.Warn("vidmark: read title", "error", err)
		return ""
	}
	var title string
	if err := json.Unmarshal(raw, &title); err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(title, " - YouTube"))
}
