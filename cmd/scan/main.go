package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"filmcode-tg-bot/app/services"
	"filmcode-tg-bot/app/storage"
	"filmcode-tg-bot/app/telegram"
	e "filmcode-tg-bot/pkg/entities"
	"filmcode-tg-bot/pkg/logger"
)

// Backfills the code registry from a Telegram Desktop chat export
// (result.json), since the Bot API cannot page channel history.
var opts struct {
	ExportPath     string `long:"export" env:"EXPORT_PATH" required:"true" description:"path to the exported result.json of the movies channel"`
	ChatID         int64  `long:"chat-id" env:"CHAT_ID" required:"true" description:"real channel id to record in entries, e.g. -1001234567890"`
	AfterMessageID int    `long:"after-message-id" env:"AFTER_MESSAGE_ID" description:"resume position: skip posts with ids at or below this"`
	DBDriver       string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" choice:"mongo" description:"backing store driver"`
	DBPath         string `long:"db-path" env:"DB_PATH" default:"./db/movies.sqlite" description:"path to the sqlite database file"`
	DatabaseURL    string `long:"database-url" env:"DATABASE_URL" description:"postgres or mongo connection string"`
	StorageMode    string `long:"storage-mode" env:"STORAGE_MODE" default:"durable" choice:"durable" choice:"ephemeral" description:"durable keeps the movies table, ephemeral recreates it before the scan"`
	Debug          bool   `long:"debug" env:"DEBUG" description:"enable debug logging"`
}

func main() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	log := logger.NewLogger(opts.Debug)
	log.Info("starting history scan", "export", opts.ExportPath, "after_message_id", opts.AfterMessageID)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := newStore(ctx)
	if err != nil {
		log.Error("creating movie store", "driver", opts.DBDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("closing movie store", "error", err)
		}
	}()

	src, err := telegram.NewExportSource(opts.ExportPath, opts.ChatID)
	if err != nil {
		log.Error("opening export file", "error", err)
		os.Exit(1)
	}
	defer func() { _ = src.Close() }()

	coord := &services.Coordinator{
		Log: log,
		Registry: &services.Registry{
			Log:   log,
			Store: store,
		},
	}

	summary, err := coord.ScanHistory(ctx, src, opts.AfterMessageID)
	if err != nil {
		log.Error("scanning history", "error", err, "last_message_id", summary.LastMessageID)
		os.Exit(1)
	}

	log.Info("scan complete",
		"processed", summary.Processed,
		"added", summary.Added,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"last_message_id", summary.LastMessageID,
	)

	os.Exit(0)
}

func newStore(ctx context.Context) (services.MovieStore, error) {
	mode := e.StorageMode(opts.StorageMode)

	switch opts.DBDriver {
	case "sqlite":
		return storage.NewSQLite(ctx, opts.DBPath, mode)
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("database-url is required for the postgres driver")
		}
		return storage.NewPostgres(ctx, opts.DatabaseURL, mode)
	case "mongo":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("database-url is required for the mongo driver")
		}
		return storage.NewMongo(ctx, opts.DatabaseURL, mode)
	default:
		return nil, fmt.Errorf("unknown db driver: %s", opts.DBDriver)
	}
}
