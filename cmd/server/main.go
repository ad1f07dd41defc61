package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subsplit_app_echo/internal/app"
	"subsplit_app_echo/internal/config"
	"subsplit_app_echo/internal/handlers"
	"subsplit_app_echo/internal/logger"
	appMiddleware "subsplit_app_echo/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.Options{
		ServiceName: "subsplit-server",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = appMiddleware.NewErrorHandler(log)

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(appMiddleware.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, "x-client-info", "apikey"},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		sqlDB, err := a.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var verifier appMiddleware.TokenVerifier
	if a.AuthClient != nil {
		verifier = a.AuthClient
	}
	if cfg.Auth.ServiceKey == "" && verifier == nil {
		log.Warn().Msg("neither SERVICE_KEY nor Firebase is configured, every API request will be rejected")
	}

	handlers.Register(e, handlers.Handlers{
		Auth:      handlers.NewAuthHandler(),
		Dashboard: handlers.NewDashboardHandler(a.DB, a.Location),
		Members:   handlers.NewMemberHandler(a.DB, a.Roster, log),
		Platforms: handlers.NewPlatformHandler(a.DB, a.Roster),
		Charges:   handlers.NewChargeHandler(a.DB, a.Generator, a.Payments, a.Waha, log),
		Reminders: handlers.NewReminderHandler(a.Dispatcher),
	}, appMiddleware.RequireBearer(cfg.Auth.ServiceKey, verifier))

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("server starting")
		if err := e.Start(":" + cfg.App.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
