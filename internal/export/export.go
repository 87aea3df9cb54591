// Package export turns bookmark collections into files: a per-video CSV
// and a whole-store JSON dump.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/vidmark/internal/store"
	"github.com/hazyhaar/vidmark/internal/timefmt"
)

// ErrNoBookmarks is returned when a per-video export is requested for an
// empty list. The caller shows a user notice instead of writing a file.
var ErrNoBookmarks = errors.New("export: no bookmarks")

// Result identifies one finished export: the file written and the run id
// that tags the matching log lines.
type Result struct {
	Path  string `json:"path"`
	RunID string `json:"run"`
}

// Exporter writes export artifacts into a directory.
type Exporter struct {
	Dir    string
	Logger *slog.Logger

	// now is overridable in tests for the dated JSON filename.
	now func() time.Time
}

// New creates an Exporter writing into dir.
func New(dir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{Dir: dir, Logger: logger, now: time.Now}
}

// CSV renders the bookmark list in the export format:
//
//	TimeSeconds,TimeFormatted,Note
//	5,"00:05",""
//	130,"02:10","intro"
//
// Text fields are always quoted, including when empty, with embedded
// quotes doubled. encoding/csv omits quotes around empty fields, which
// would break consumers of this fixed format, so rows are built by hand.
func CSV(list []store.Bookmark) []byte {
	var b strings.Builder
	b.WriteString("TimeSeconds,TimeFormatted,Note\n")
	for _, bm := range list {
		b.WriteString(strconv.FormatFloat(bm.Time, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(quote(timefmt.Format(bm.Time)))
		b.WriteByte(',')
		b.WriteString(quote(bm.Note))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteCSV exports list for one video, naming the file after the video
// title. Returns ErrNoBookmarks for an empty list.
func (e *Exporter) WriteCSV(title string, list []store.Bookmark) (Result, error) {
	if len(list) == 0 {
		return Result{}, ErrNoBookmarks
	}

	res := Result{
		Path:  filepath.Join(e.Dir, CSVFilename(title)),
		RunID: uuid.NewString(),
	}
	if err := e.write(res.Path, CSV(list)); err != nil {
		return Result{}, err
	}

	e.Logger.Info("export: csv written",
		"run", res.RunID, "path", res.Path, "bookmarks", len(list))
	return res, nil
}

// WriteStore exports the entire persisted mapping as JSON, filename dated
// by the current calendar day.
func (e *Exporter) WriteStore(mapping map[string][]store.Bookmark) (Result, error) {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("export: marshal store: %w", err)
	}
	data = append(data, '\n')

	res := Result{
		Path:  filepath.Join(e.Dir, StoreFilename(e.now())),
		RunID: uuid.NewString(),
	}
	if err := e.write(res.Path, data); err != nil {
		return Result{}, err
	}

	e.Logger.Info("export: store written",
		"run", res.RunID, "path", res.Path, "videos", len(mapping))
	return res, nil
}

func (e *Exporter) write(path string, data []byte) error {
	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o755); err != nil {
			return fmt.Errorf("export: mkdir %s: %w", e.Dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

// StoreFilename returns the dated whole-store export name.
func StoreFilename(now time.Time) string {
	return "vidmark-store-" + now.Format("2006-01-02") + ".json"
}

// maxFilenameBase bounds the sanitised title segment of CSV filenames.
const maxFilenameBase = 64

// CSVFilename derives a safe filename from a video title: characters
// outside [A-Za-z0-9._-] become underscores, runs collapse, and the base
// is truncated. An empty or fully-stripped title falls back to "bookmarks".
func CSVFilename(title string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range title {
		safe := r == '.' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		switch {
		case safe:
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	base := strings.Trim(b.String(), "_.")
	if len(base) > maxFilenameBase {
		base = base[:maxFilenameBase]
		base = strings.TrimRight(base, "_.")
	}
	if base == "" {
		base = "bookmarks"
	}
	return base + ".csv"
}
