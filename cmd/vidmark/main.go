// Command vidmark is a video-bookmark companion. It opens (or attaches
// to) a Chrome tab, injects a bookmark panel into the watch page, and
// persists per-video bookmarks in a local SQLite store.
//
// Usage:
//
//	vidmark                                  # defaults, opens the start page
//	vidmark -config vidmark.yaml             # full configuration
//	vidmark -url https://youtu.be/abc123     # start on a specific video
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/vidmark"
	"github.com/hazyhaar/vidmark/internal/httpapi"
	"github.com/hazyhaar/vidmark/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to vidmark.yaml config file")
	startURL := flag.String("url", "", "start page (overrides config)")
	dbPath := flag.String("db", "", "bookmark database path (overrides config)")
	listen := flag.String("listen", "", "control API address (overrides config)")
	headful := flag.Bool("headful", true, "show the browser window")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Config-file value wins unless -headful was passed explicitly.
	headfulSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headful" {
			headfulSet = true
		}
	})

	// .env is optional; absence is not an error.
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		configPath: *configPath,
		startURL:   *startURL,
		dbPath:     *dbPath,
		listen:     *listen,
		headful:    *headful,
		headfulSet: headfulSet || *configPath == "",
	}
	if err := run(ctx, logger, opts); err != nil {
		logger.Error("vidmark: fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	startURL   string
	dbPath     string
	listen     string
	headful    bool
	headfulSet bool
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	if opts.startURL != "" {
		cfg.URL = opts.startURL
	}
	dbPath := opts.dbPath
	if dbPath == "" {
		dbPath = os.Getenv("VIDMARK_DB")
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	listen := opts.listen
	if listen == "" {
		listen = os.Getenv("VIDMARK_LISTEN")
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if opts.headfulSet {
		cfg.Browser.Headful = opts.headful
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	session := vidmark.New(cfg, db, logger)
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Stop()

	if cfg.Listen != "" {
		api := httpapi.New(cfg.Listen, session, logger)
		go func() {
			logger.Info("vidmark: control api listening", "addr", cfg.Listen)
			if err := api.Run(ctx); err != nil {
				logger.Error("vidmark: control api", "error", err)
			}
		}()
	}

	<-ctx.Done()
	return nil
}

func loadConfig(path string) (*vidmark.Config, error) {
	if path == "" {
		return vidmark.DefaultConfig(), nil
	}
	return vidmark.LoadConfigFile(path)
}
