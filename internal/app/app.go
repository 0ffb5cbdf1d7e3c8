// Package app wires configuration, storage, the relay and the bot together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/sushef/core/bootstrap"
	coredatabase "github.com/m3rciful/sushef/core/database"
	"github.com/m3rciful/sushef/core/logger"
	tg "github.com/m3rciful/sushef/core/telegram"
	"github.com/m3rciful/sushef/internal/attachment"
	"github.com/m3rciful/sushef/internal/bot"
	"github.com/m3rciful/sushef/internal/config"
	"github.com/m3rciful/sushef/internal/dispatch"
	"github.com/m3rciful/sushef/internal/relay"
	"github.com/m3rciful/sushef/internal/session"
)

// App is a fully wired SuShef instance.
type App struct {
	cfg     *config.Config
	infra   *bootstrap.Result
	redis   *redis.Client
	store   session.Store
	bot     *bot.Bot
	closers []func() error
}

// Options allow tests to replace infrastructure.
type Options struct {
	Bootstrap bootstrap.Options
	// Store, when set, replaces the configured session backend.
	Store session.Store
}

// New builds the application from cfg.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	bopts := opts.Bootstrap
	bopts.Config = cfg.CoreConfig()
	if opts.Store == nil && cfg.Session.Backend == config.BackendPostgres {
		db := cfg.Database
		bopts.Database = &db
	}
	infra, err := bootstrap.Run(bopts)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra}
	a.closers = append(a.closers, infra.Close)

	a.store = opts.Store
	if a.store == nil {
		if a.store, err = a.openStore(); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	files := attachment.New(attachment.Options{
		APIURL:     cfg.Telegram.APIURL,
		Token:      cfg.Telegram.Token,
		HTTPClient: tg.BuildSingleShotHTTPClient(),
		MaxBytes:   cfg.Relay.MaxFileBytes,
	})
	backend, err := relay.New(relay.Options{
		URL:        cfg.Relay.URL,
		HTTPClient: tg.BuildSingleShotHTTPClient(),
		Files:      files,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	disp := dispatch.New(dispatch.Options{
		Sessions:     session.NewAdapter(a.store),
		Relay:        backend,
		DashboardURL: cfg.Relay.DashboardURL,
	})
	if a.bot, err = bot.New(disp); err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.Info(logger.Background(), "app", "app.wired",
		slog.String("session_backend", cfg.Session.Backend),
		slog.String("run_mode", cfg.Telegram.RunMode),
	)
	return a, nil
}

func (a *App) openStore() (session.Store, error) {
	switch a.cfg.Session.Backend {
	case config.BackendPostgres:
		return session.NewPostgresStore(a.infra.DB), nil
	case config.BackendRedis:
		ropts, err := redis.ParseURL(a.cfg.Session.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("app: invalid session.redis_url: %w", err)
		}
		a.redis = redis.NewClient(ropts)
		a.closers = append(a.closers, a.redis.Close)
		return session.NewRedisStore(a.redis), nil
	case config.BackendMemory:
		return session.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("app: unsupported session backend %q", a.cfg.Session.Backend)
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Bot returns the Telegram adapter.
func (a *App) Bot() *bot.Bot { return a.bot }

// TelegramRunOptions assembles everything RunTelegram needs.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:      core,
		Registry:    a.bot.Registry(),
		Middlewares: tg.DefaultMiddlewares(core, bot.RateLimited),
		Routes:      a.bot.Routes(core.Telegram.AdminID),
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			if a.redis == nil {
				return nil
			}
			if err := a.redis.Ping(ctx).Err(); err != nil {
				logger.Warn(ctx, "session", "redis.ping_failed", slog.String("err", err.Error()))
			}
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close releases the database pool and the redis client.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Migrate applies the schema migrations for the postgres session backend.
func Migrate(cfg *config.Config) error {
	if cfg.Session.Backend != config.BackendPostgres {
		return fmt.Errorf("app: migrations apply only to the postgres session backend, got %q", cfg.Session.Backend)
	}
	return coredatabase.RunMigrations(cfg.Database)
}
