package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hr-scheduling-backend/internal/api"
	"hr-scheduling-backend/internal/db"
	"hr-scheduling-backend/internal/directory"
	"hr-scheduling-backend/internal/notification"
	"hr-scheduling-backend/internal/scheduling"
	"hr-scheduling-backend/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	gormDB, err := db.Init(&cfg.Database, cfg.Env, logger)
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB, store.WithRetryPolicy(store.RetryPolicy{
		Attempts: cfg.Database.RetryAttempts,
		Backoff:  time.Duration(cfg.Database.RetryBackoffMS) * time.Millisecond,
	}))
	apps := directory.New(gormDB, time.Duration(cfg.Directory.CacheTTLSeconds)*time.Second)

	go directory.NewSyncService(cfg.Directory.Sync, apps, logger).Run(ctx)

	var (
		notifier       scheduling.Notifier
		webpushOptions *webpush.Options
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, gormDB, webpushOptions, logger)
		pool.Start(ctx)
		notifier = pool
	} else {
		logger.Warn("VAPID keys are not configured; push notifications are disabled")
	}

	svc := api.Services{
		Slots:   scheduling.NewManager(appStore, apps, notifier, cfg.Scheduling.MaxConflictRetries, logger),
		Queries: scheduling.NewQueryService(appStore),
		Stats:   scheduling.NewStatsAggregator(appStore, logger),
	}
	router := api.NewRouter(cfg, api.NewHandler(appStore, svc, webpushOptions, logger), logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port), zap.String("base_path", cfg.Server.BasePath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received, stopping services")
	case err := <-serveErr:
		logger.Error("HTTP server failed", zap.Error(err))
		return err
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("server gracefully stopped")
	return nil
}
