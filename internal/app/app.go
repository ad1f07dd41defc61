// Package app wires configuration, storage and services into the components
// shared by the server and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/billing"
	"subsplit_app_echo/internal/config"
	"subsplit_app_echo/internal/reminders"
	"subsplit_app_echo/internal/services"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Location *time.Location

	DB     *gorm.DB
	Locker services.Locker
	cache  *services.RedisCache

	Generator  *billing.Generator
	Roster     *billing.RosterManager
	Payments   *billing.PaymentService
	Dispatcher *reminders.Dispatcher
	Waha       *services.WahaService
	AuthClient *auth.Client
}

// New connects to the database and Redis and builds the domain services.
// Redis and Firebase are optional; without them locks are process-local no-ops
// and only the service key authenticates.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	db, err := services.InitDB(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := services.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	a := &App{Config: cfg, Log: log, Location: loc, DB: db, Locker: services.NoopLocker{}}

	if cfg.Redis.URL != "" {
		cache, err := services.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.cache = cache
		a.Locker = cache
	} else {
		log.Warn().Msg("REDIS_URL not set, concurrent reminder runs are not serialised")
	}

	if cfg.Auth.FirebaseCredentials != "" {
		client, err := services.InitFirebase(ctx, cfg.Auth.FirebaseCredentials)
		switch {
		case errors.Is(err, services.ErrFirebaseNotConfigured):
			log.Info().Msg("firebase not configured, only the service key is accepted")
		case err != nil:
			log.Warn().Err(err).Msg("firebase initialization failed, only the service key is accepted")
		default:
			a.AuthClient = client
		}
	}

	a.Generator = billing.NewGenerator(db, log)
	a.Roster = billing.NewRosterManager(db, a.Locker, log)
	a.Payments = billing.NewPaymentService(db, log)
	a.Waha = services.NewWahaService(cfg.Waha)

	a.Dispatcher, err = reminders.NewDispatcher(reminders.DispatcherParams{
		DB:          db,
		Composer:    services.NewGroqService(cfg.Groq),
		Mailer:      services.NewMailer(cfg.Mail),
		Locker:      a.Locker,
		Logger:      log,
		From:        cfg.Mail.From,
		Location:    loc,
		Concurrency: cfg.Reminder.Concurrency,
		LockTTL:     cfg.Redis.LockTTL,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases connections.
func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("closing redis")
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("closing database")
		}
	}
}
