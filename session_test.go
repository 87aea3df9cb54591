package vidmark

import (
	"context"
	"database/sql"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/hazyhaar/vidmark/internal/config"
)

// fakePage answers Eval calls from canned rules and records everything.
type fakePage struct {
	rules []rule
	evals []string
}

type rule struct {
	sub string
	res string
}

func (f *fakePage) Eval(_ context.Context, js string, _ ...any) (json.RawMessage, error) {
	f.evals = append(f.evals, js)
	for _, r := range f.rules {
		if strings.Contains(js, r.sub) {
			return json.RawMessage(r.res), nil
		}
	}
	return json.RawMessage("null"), nil
}

func (f *fakePage) count(sub string) int {
	n := 0
	for _, js := range f.evals {
		if strings.Contains(js, sub) {
			n++
		}
	}
	return n
}

func testSession(t *testing.T) (*Session, *fakePage) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	page := &fakePage{rules: []rule{
		{sub: "state()", res: `{"position": 42.5, "duration": 100}`},
		{sub: "querySelector('video')", res: `{"video": true, "panel": true}`},
		{sub: "document.title", res: `"Demo Video - YouTube"`},
	}}

	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()

	s := New(cfg, db, nil)
	s.attachPage(page)
	if err := s.store.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s, page
}

func (s *Session) navTo(ctx context.Context, url string) {
	s.lastURL = url
	s.resync(ctx)
}

func TestResync_EntersContentPage(t *testing.T) {
	s, page := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")

	if got := s.ActiveID(); got != "aaa" {
		t.Errorf("ActiveID: got %q, want %q", got, "aaa")
	}
	if s.ActiveTitle() != "Demo Video" {
		t.Errorf("ActiveTitle: got %q", s.ActiveTitle())
	}
	if page.count("mount()") == 0 {
		t.Error("overlay was never mounted")
	}
	if page.count("renderList") == 0 {
		t.Error("list was never rendered")
	}
}

func TestResync_RedundantSignalIsNoop(t *testing.T) {
	s, page := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	before := len(page.evals)

	// Same identifier via a different URL shape.
	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa&t=10s")

	if len(page.evals) != before {
		t.Errorf("redundant resync evaluated %d scripts", len(page.evals)-before)
	}
}

func TestResync_ReloadReinstallsScripts(t *testing.T) {
	s, page := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	s.handleAction(ctx, pageEvent{Op: "save"})

	// A full reload keeps the URL but replaces the document, wiping the
	// injected scripts. The stale flag set by the load-fired producer
	// must defeat the same-identifier short-circuit.
	mounts := page.count("__vidmarkUI.mount()")
	hooks := page.count("__vidmarkHooks")
	s.lastURL = "https://www.youtube.com/watch?v=aaa"
	s.stale = true
	s.resync(ctx)

	if page.count("__vidmarkHooks") != hooks+1 {
		t.Error("navigation hooks not reinstalled after reload")
	}
	if page.count("__vidmarkUI.mount()") != mounts+1 {
		t.Error("overlay not remounted after reload")
	}
	if got := s.ActiveBookmarks(); len(got) != 1 || got[0].Time != 42.5 {
		t.Errorf("bookmarks after reload: got %v", got)
	}

	// The flag is one-shot: the next redundant signal is a no-op again.
	before := len(page.evals)
	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	if len(page.evals) != before {
		t.Error("resync after reload lost idempotency")
	}
}

// The loop treats a load-fired event like a navigation that also marks
// the document stale.
func TestLoop_ReloadEventResyncs(t *testing.T) {
	s, page := testSession(t)
	ctx, cancel := context.WithCancel(context.Background())

	go s.loop(ctx)
	s.enqueue(pageEvent{Op: "reload", URL: "https://www.youtube.com/watch?v=aaa"})

	deadline := time.After(2 * time.Second)
	for s.ActiveID() != "aaa" {
		select {
		case <-deadline:
			cancel()
			t.Fatal("reload event never triggered a resync")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-s.done

	if page.count("mount()") == 0 {
		t.Error("overlay not mounted after reload event")
	}
}

func TestResync_LeavesContentPage(t *testing.T) {
	s, page := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	s.handleAction(ctx, pageEvent{Op: "save"})

	s.navTo(ctx, "https://www.youtube.com/feed/subscriptions")

	if got := s.ActiveID(); got != "" {
		t.Errorf("ActiveID after leaving: got %q, want empty", got)
	}
	if page.count("unmount()") == 0 {
		t.Error("overlay was not torn down")
	}
	if len(s.ActiveBookmarks()) != 0 {
		t.Error("snapshot not cleared after leaving content page")
	}

	// Navigating back must restore the persisted list.
	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	if got := s.ActiveBookmarks(); len(got) != 1 || got[0].Time != 42.5 {
		t.Errorf("bookmarks after return: got %v", got)
	}
}

func TestSwitchVideosRestoresEachList(t *testing.T) {
	s, _ := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	s.handleAction(ctx, pageEvent{Op: "save"})
	s.handleAction(ctx, pageEvent{Op: "note", Index: 0, Note: "  first  "})
	wantA := s.ActiveBookmarks()

	s.navTo(ctx, "https://www.youtube.com/watch?v=bbb")
	if len(s.ActiveBookmarks()) != 0 {
		t.Fatalf("video B started with %d bookmarks", len(s.ActiveBookmarks()))
	}
	s.handleAction(ctx, pageEvent{Op: "save"})

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	if !reflect.DeepEqual(s.ActiveBookmarks(), wantA) {
		t.Errorf("A after A->B->A: got %v, want %v", s.ActiveBookmarks(), wantA)
	}
	if wantA[0].Note != "first" {
		t.Errorf("note not trimmed: %q", wantA[0].Note)
	}
}

func TestHandleAction_SaveUsesPlayerPosition(t *testing.T) {
	s, _ := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	s.handleAction(ctx, pageEvent{Op: "save"})

	got := s.ActiveBookmarks()
	if len(got) != 1 || got[0].Time != 42.5 || got[0].Note != "" {
		t.Errorf("saved bookmark: got %v", got)
	}
}

func TestHandleAction_JumpResolvesAgainstCurrentList(t *testing.T) {
	s, page := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	s.handleAction(ctx, pageEvent{Op: "save"})

	before := page.count("seek(t)")
	s.handleAction(ctx, pageEvent{Op: "jump", Index: 5})
	if page.count("seek(t)") != before {
		t.Error("out-of-range jump reached the player")
	}

	s.handleAction(ctx, pageEvent{Op: "jump", Index: 0})
	if page.count("seek(t)") != before+1 {
		t.Error("in-range jump did not seek")
	}
}

func TestHandleAction_IgnoredWithoutActiveVideo(t *testing.T) {
	s, page := testSession(t)
	ctx := context.Background()

	before := len(page.evals)
	s.handleAction(ctx, pageEvent{Op: "save"})
	s.handleAction(ctx, pageEvent{Op: "clear"})

	if len(page.evals) != before {
		t.Error("actions without an active video touched the page")
	}
	if len(s.ActiveBookmarks()) != 0 {
		t.Error("bookmark created without an active video")
	}
}

func TestHandleAction_ClearEmptiesListAndMarkers(t *testing.T) {
	s, page := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	s.handleAction(ctx, pageEvent{Op: "save"})
	s.handleAction(ctx, pageEvent{Op: "clear"})

	if len(s.ActiveBookmarks()) != 0 {
		t.Error("clear left bookmarks in memory")
	}
	if page.count("renderMarkers") == 0 {
		t.Error("clear did not trigger a marker redraw")
	}

	// Persisted collection must be empty too.
	m, err := s.Mapping(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if list := m["aaa"]; len(list) != 0 {
		t.Errorf("persisted list after clear: %v", list)
	}
}

func TestHandleAction_ExportWithoutBookmarksToasts(t *testing.T) {
	s, page := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	s.handleAction(ctx, pageEvent{Op: "export"})

	if page.count("toast") == 0 {
		t.Error("empty export produced no user notice")
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent(`{"op":"note","index":2,"note":"x"}`)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Op != "note" || ev.Index != 2 || ev.Note != "x" {
		t.Errorf("decoded: %+v", ev)
	}

	if _, err := decodeEvent(`{}`); err == nil {
		t.Error("expected error for missing op")
	}
	if _, err := decodeEvent(`not json`); err == nil {
		t.Error("expected error for bad payload")
	}
}

// Store access from API goroutines only touches the database, never the
// loop-owned active list.
func TestMappingIncludesAllVideos(t *testing.T) {
	s, _ := testSession(t)
	ctx := context.Background()

	s.navTo(ctx, "https://www.youtube.com/watch?v=aaa")
	s.handleAction(ctx, pageEvent{Op: "save"})
	s.navTo(ctx, "https://www.youtube.com/watch?v=bbb")
	s.handleAction(ctx, pageEvent{Op: "save"})

	m, err := s.Mapping(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(m["aaa"]) != 1 || len(m["bbb"]) != 1 {
		t.Errorf("mapping: %v", m)
	}
}
