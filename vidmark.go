// Package vidmark is a browser companion for bookmarking moments in a
// video. It drives a Chrome tab over CDP, follows the user across SPA
// navigations, and injects a bookmark panel plus scrub-bar markers into
// the watch page. Bookmarks are scoped per video and persisted in a local
// SQLite key-value store.
//
// One Session exists per process. All bookmark state is owned by a single
// event loop; the page only emits events and receives renders.
package vidmark

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/vidmark/internal/browser"
	"github.com/hazyhaar/vidmark/internal/config"
	"github.com/hazyhaar/vidmark/internal/export"
	"github.com/hazyhaar/vidmark/internal/navwatch"
	"github.com/hazyhaar/vidmark/internal/overlay"
	"github.com/hazyhaar/vidmark/internal/player"
	"github.com/hazyhaar/vidmark/internal/store"
)

// bindingName is the page→Go channel. Everything the page has to say
// (navigations, button clicks, playback ticks) arrives through it.
const bindingName = "__vidmark"

// Session is the long-lived companion for one browser tab. Construct with
// New, then Start. State transitions happen only inside the event loop.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger

	mgr *browser.Manager
	tab *browser.Tab

	page     browser.Scripter
	store    *store.Store
	exporter *export.Exporter
	player   *player.Player
	overlay  *overlay.Overlay

	events chan pageEvent

	// lastURL is loop-local: the most recent location reported by any
	// navigation producer, not yet necessarily resynced.
	lastURL string

	// stale is loop-local: set when the document was replaced since the
	// last resync, so the injected scripts are gone and the
	// same-identifier short-circuit must not apply.
	stale bool

	// mu guards the fields read by API goroutines.
	mu        sync.RWMutex
	currentID string
	title     string
	snapshot  []store.Bookmark

	cancel context.CancelFunc
	done   chan struct{}
}

// pageEvent is one decoded binding payload.
type pageEvent struct {
	Op    string  `json:"op"`
	URL   string  `json:"url"`
	Index int     `json:"index"`
	Note  string  `json:"note"`
	Time  float64 `json:"time"`
}

// New creates a Session on an opened bookmark database. Call Start to
// launch the browser and begin following the tab.
func New(cfg *config.Config, db *sql.DB, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:      cfg,
		logger:   logger,
		store:    store.New(db, logger),
		exporter: export.New(cfg.Export.Dir, logger),
		events:   make(chan pageEvent, 256),
		done:     make(chan struct{}),
	}
}

// attachPage wires the page-dependent components. Split from Start so
// tests can substitute a fake Scripter.
func (s *Session) attachPage(page browser.Scripter) {
	s.page = page
	s.player = player.New(page, s.logger)
	s.overlay = overlay.New(page, s.logger)
}

// Start initialises storage, launches (or connects to) Chrome, opens the
// watch tab and starts the event loop. It returns once the session is
// running.
func (s *Session) Start(ctx context.Context) error {
	if err := s.store.Init(ctx); err != nil {
		return err
	}

	s.mgr = browser.NewManager(browser.Config{
		RemoteURL: s.cfg.Browser.Remote,
		Headful:   s.cfg.Browser.Headful,
		Logger:    s.logger,
	})
	if _, err := s.mgr.Start(); err != nil {
		return fmt.Errorf("vidmark: start browser: %w", err)
	}

	tab, err := browser.OpenTab(ctx, s.mgr, s.cfg.URL)
	if err != nil {
		s.mgr.Close()
		return fmt.Errorf("vidmark: open tab: %w", err)
	}
	s.tab = tab
	s.attachPage(tab)

	if err := tab.AddBinding(bindingName); err != nil {
		s.mgr.Close()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go tab.EachBindingCall(loopCtx, bindingName, s.dispatch)

	// Full loads and reloads replace the document, killing the injected
	// hooks before they can report the navigation. The CDP load event is
	// the one producer that survives, so it feeds the loop from the Go
	// side.
	go tab.EachLoadFired(loopCtx, func(url string) {
		s.enqueue(pageEvent{Op: "reload", URL: url})
	})

	go s.loop(loopCtx)

	s.installScripts(loopCtx)

	// Kick the first resync with the tab's starting location.
	s.events <- pageEvent{Op: "navigate", URL: s.cfg.URL}

	s.logger.Info("vidmark: session started", "url", s.cfg.URL)
	return nil
}

// Stop shuts down the event loop and the browser.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	if s.tab != nil {
		s.tab.Close()
	}
	if s.mgr != nil {
		s.mgr.Close()
	}
	s.logger.Info("vidmark: session stopped")
}

// dispatch parses a binding payload and queues it for the loop. Payloads
// are dropped, not blocked on, when the loop is far behind; every consumer
// of a dropped signal (navigation, redraw) has redundant producers.
func (s *Session) dispatch(payload string) {
	ev, err := decodeEvent(payload)
	if err != nil {
		s.logger.Warn("vidmark: bad page event", "error", err)
		return
	}

	s.enqueue(ev)
}

func (s *Session) enqueue(ev pageEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("vidmark: event buffer full, dropping", "op", ev.Op)
	}
}

// ActiveID returns the current content identifier, "" when the tab is not
// on a content page.
func (s *Session) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// ActiveTitle returns the current video title.
func (s *Session) ActiveTitle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// ActiveBookmarks returns a copy of the active video's bookmark list.
func (s *Session) ActiveBookmarks() []store.Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Bookmark, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// Mapping returns the entire persisted store.
func (s *Session) Mapping(ctx context.Context) (map[string][]store.Bookmark, error) {
	return s.store.Mapping(ctx)
}

// ExportActive writes the active video's CSV and describes the run.
func (s *Session) ExportActive(ctx context.Context) (export.Result, error) {
	s.mu.RLock()
	id, title, list := s.currentID, s.title, s.snapshot
	s.mu.RUnlock()

	if id == "" {
		return export.Result{}, fmt.Errorf("vidmark: no active video")
	}
	return s.exporter.WriteCSV(title, list)
}

// ExportStore writes the whole-store JSON dump and describes the run.
func (s *Session) ExportStore(ctx context.Context) (export.Result, error) {
	mapping, err := s.store.Mapping(ctx)
	if err != nil {
		return export.Result{}, err
	}
	return s.exporter.WriteStore(mapping)
}

// installScripts (re)injects the page-side scripts. Each script is
// idempotent within a document; after a full reload the guards are gone
// and everything reinstalls.
func (s *Session) installScripts(ctx context.Context) {
	if err := navwatch.Install(ctx, s.page); err != nil {
		s.logger.Warn("vidmark: install navigation hooks", "error", err)
	}
	if err := s.player.Install(ctx); err != nil {
		s.logger.Warn("vidmark: install player helper", "error", err)
	}
	if err := s.overlay.Install(ctx); err != nil {
		s.logger.Warn("vidmark: install overlay", "error", err)
	}
}
