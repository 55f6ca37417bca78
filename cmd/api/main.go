package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sitehive/sitehive-backend/config"
	"github.com/sitehive/sitehive-backend/internal/bootstrap"
	"github.com/sitehive/sitehive-backend/internal/db"
	"github.com/sitehive/sitehive-backend/internal/maintenance"
	"github.com/sitehive/sitehive-backend/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.App.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, cfg.Database.DSN); err != nil {
		return err
	}
	if cfg.Auth.AdminPassword != "" {
		if err := db.EnsureAdmin(ctx, pool, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			return err
		}
	} else {
		log.Warn("ADMIN_PASSWORD not set, skipping admin account seeding")
	}

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()
	}

	layout, err := storage.NewLayout(cfg.Upload.StorageRoot)
	if err != nil {
		return err
	}

	sweeper := maintenance.NewSweeper(layout.TempRoot(), cfg.Upload.TempMaxAge, log)
	if err := sweeper.Start(cfg.Upload.TempSweepEvery); err != nil {
		return err
	}
	defer sweeper.Stop()

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		Cfg:    cfg,
		DB:     pool,
		Cache:  cache,
		Layout: layout,
		Log:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Server.Port, "env", cfg.App.Environment)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
