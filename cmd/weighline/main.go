package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/weighline/weighline/internal/app"
	"github.com/weighline/weighline/internal/appupdate"
	"github.com/weighline/weighline/internal/auth"
	"github.com/weighline/weighline/internal/devices"
	"github.com/weighline/weighline/internal/observability"
	"github.com/weighline/weighline/internal/platform/cache"
	"github.com/weighline/weighline/internal/platform/db"
	"github.com/weighline/weighline/internal/rollup"
	"github.com/weighline/weighline/internal/scan"
	"github.com/weighline/weighline/internal/shared"
	syncapi "github.com/weighline/weighline/internal/sync"
	"github.com/weighline/weighline/internal/weighing"
	"github.com/weighline/weighline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, rollup cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	rollupCache := rollup.NewCache(redisClient, cfg.CacheTTL)

	weighingRepo := weighing.NewRepository(pool)
	weighingService := weighing.NewService(weighingRepo, auditLogger, rollupCache)
	metrics := observability.NewMetrics()
	weighingHandler := weighing.NewHandler(logger, weighingService, metrics)

	rollupRepo := rollup.NewRepository(pool)
	rollupService := rollup.NewService(rollupRepo, rollupCache)
	rollupHandler := rollup.NewHandler(logger, rollupService)

	scanRepo := scan.NewRepository(pool)
	scanService := scan.NewService(scanRepo)
	scanHandler := scan.NewHandler(logger, scanService)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService)

	devicesRepo := devices.NewRepository(pool)
	devicesHandler := devices.NewHandler(logger, devicesRepo)

	appUpdateService := appupdate.NewService(cfg.APKDir)
	appUpdateHandler := appupdate.NewHandler(logger, appUpdateService)

	syncRepo := syncapi.NewRepository(pool)
	syncHandler := syncapi.NewHandler(logger, syncRepo, authService, devicesRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		WeighingHandler:  weighingHandler,
		ScanHandler:      scanHandler,
		RollupHandler:    rollupHandler,
		DevicesHandler:   devicesHandler,
		AppUpdateHandler: appUpdateHandler,
		SyncHandler:      syncHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
