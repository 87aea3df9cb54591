package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/vidmark/internal/export"
	"github.com/hazyhaar/vidmark/internal/store"
)

type fakeSource struct {
	id        string
	title     string
	bookmarks []store.Bookmark
	exportErr error
}

func (f *fakeSource) ActiveID() string                  { return f.id }
func (f *fakeSource) ActiveTitle() string               { return f.title }
func (f *fakeSource) ActiveBookmarks() []store.Bookmark { return f.bookmarks }

func (f *fakeSource) Mapping(context.Context) (map[string][]store.Bookmark, error) {
	return map[string][]store.Bookmark{f.id: f.bookmarks}, nil
}

func (f *fakeSource) ExportActive(context.Context) (export.Result, error) {
	if f.exportErr != nil {
		return export.Result{}, f.exportErr
	}
	return export.Result{Path: "/tmp/out.csv", RunID: "run-1"}, nil
}

func (f *fakeSource) ExportStore(context.Context) (export.Result, error) {
	return export.Result{Path: "/tmp/store.json", RunID: "run-2"}, nil
}

func TestHandleBookmarks(t *testing.T) {
	src := &fakeSource{
		id:        "abc",
		title:     "Demo",
		bookmarks: []store.Bookmark{{Time: 5, Note: "n"}},
	}
	s := New("127.0.0.1:0", src, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/bookmarks", nil))

	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		ID        string           `json:"id"`
		Bookmarks []store.Bookmark `json:"bookmarks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ID != "abc" || len(body.Bookmarks) != 1 {
		t.Errorf("body: %+v", body)
	}
}

func TestHandleBookmarks_NoActiveVideo(t *testing.T) {
	s := New("127.0.0.1:0", &fakeSource{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/bookmarks", nil))

	if rec.Code != 404 {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestHandleExport_NoBookmarks(t *testing.T) {
	s := New("127.0.0.1:0", &fakeSource{id: "abc", exportErr: export.ErrNoBookmarks}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/export", nil))

	if rec.Code != 409 {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestHandleExport_OK(t *testing.T) {
	s := New("127.0.0.1:0", &fakeSource{id: "abc"}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/export", nil))

	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body export.Result
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Path != "/tmp/out.csv" {
		t.Errorf("path: got %q", body.Path)
	}
	if body.RunID != "run-1" {
		t.Errorf("run id: got %q", body.RunID)
	}
}

func TestHandleStore(t *testing.T) {
	src := &fakeSource{id: "abc", bookmarks: []store.Bookmark{{Time: 1}}}
	s := New("127.0.0.1:0", src, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/store", nil))

	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body map[string][]store.Bookmark
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body["abc"]) != 1 {
		t.Errorf("body: %v", body)
	}
}

func TestHealthz(t *testing.T) {
	s := New("127.0.0.1:0", &fakeSource{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Errorf("status: got %d", rec.Code)
	}
}
