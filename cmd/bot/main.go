package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jessevdk/go-flags"

	"filmcode-tg-bot/app/services"
	"filmcode-tg-bot/app/storage"
	"filmcode-tg-bot/app/telegram"
	e "filmcode-tg-bot/pkg/entities"
	"filmcode-tg-bot/pkg/logger"
)

var opts struct {
	TelegramAPIToken   string `long:"telegram-api-token" env:"BOT_TOKEN" required:"true" description:"telegram api token"`
	TelegramWorkersNum int    `long:"telegram-workers-num" env:"TELEGRAM_WORKERS_NUM" default:"5" description:"number of workers for telegram bot"`
	ChannelUsername    string `long:"channel" env:"CHANNEL_USERNAME" required:"true" description:"movies channel username, with @"`
	AdminID            int64  `long:"admin-id" env:"ADMIN_ID" required:"true" description:"telegram id of the administrator"`
	DBDriver           string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" choice:"mongo" description:"backing store driver"`
	DBPath             string `long:"db-path" env:"DB_PATH" default:"./db/movies.sqlite" description:"path to the sqlite database file"`
	DatabaseURL        string `long:"database-url" env:"DATABASE_URL" description:"postgres or mongo connection string"`
	StorageMode        string `long:"storage-mode" env:"STORAGE_MODE" default:"durable" choice:"durable" choice:"ephemeral" description:"durable keeps the movies table, ephemeral recreates it on start"`
	SentryDSN          string `long:"sentry-dsn" env:"SENTRY_DSN" description:"sentry dsn, error reporting disabled if empty"`
	Debug              bool   `long:"debug" env:"DEBUG" description:"enable debug logging"`
}

var Revision = "dev"

func main() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	log := logger.NewLogger(opts.Debug)
	log.Info("starting bot", "revision", Revision)

	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     opts.SentryDSN,
			Release: Revision,
		})
		if err != nil {
			log.Error("initializing sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

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

	registry := &services.Registry{
		Log:   log,
		Store: store,
	}

	bot := &telegram.Client{
		Log:             log,
		APIToken:        opts.TelegramAPIToken,
		WorkersNum:      opts.TelegramWorkersNum,
		ChannelUsername: opts.ChannelUsername,
		AdminID:         opts.AdminID,
	}

	bot.Service = &services.Coordinator{
		Log:      log,
		Registry: registry,
		Notifier: bot,
		Renderer: bot,
	}

	err = bot.Start(ctx)
	if err != nil {
		log.Error("starting bot", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("stopping bot")

	bot.Wait()

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
