// Command server runs the scoutlane access-control and request-security API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/api"
	"github.com/scoutlane/scoutlane/internal/audit"
	"github.com/scoutlane/scoutlane/internal/config"
	"github.com/scoutlane/scoutlane/internal/db"
	"github.com/scoutlane/scoutlane/internal/dbpool"
	"github.com/scoutlane/scoutlane/internal/events"
	"github.com/scoutlane/scoutlane/internal/identity"
	"github.com/scoutlane/scoutlane/internal/ratelimit"
	"github.com/scoutlane/scoutlane/internal/tenant"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	configureLogger(log, cfg)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func configureLogger(log *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Production() {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg.DatabaseURL.Value(), log); err != nil {
		return err
	}

	verifier, err := identity.New(cfg, log)
	if err != nil {
		return err
	}

	if cfg.DisableCSRF {
		log.Warn("CSRF validation is disabled for this process")
	}

	hub := events.NewHub(log)
	go hub.Run(ctx)

	limiter := ratelimit.NewStore(ctx, log)

	store := tenant.NewStore(pool, log)
	resolver := tenant.NewResolver(store, log)
	validator := tenant.NewValidator(resolver)
	auditor := audit.NewAuditor(pool, log)

	router := api.NewRouter(api.Deps{
		Cfg:       cfg,
		Log:       log,
		Pool:      pool,
		Validator: validator,
		Auditor:   auditor,
		Hub:       hub,
		Limiter:   limiter,
		Verifier:  verifier,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.WithFields(logrus.Fields{
			"addr":        cfg.Addr(),
			"environment": cfg.Environment,
		}).Info("server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	hub.Shutdown()

	log.Info("shutdown complete")

	return nil
}
