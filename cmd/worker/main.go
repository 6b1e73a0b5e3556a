package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/partsdesk/partsdesk/internal/app"
	jobmetrics "github.com/partsdesk/partsdesk/internal/jobs"
	"github.com/partsdesk/partsdesk/internal/platform/cache"
	"github.com/partsdesk/partsdesk/internal/platform/db"
	"github.com/partsdesk/partsdesk/internal/platform/lock"
	"github.com/partsdesk/partsdesk/internal/poimport"
	"github.com/partsdesk/partsdesk/jobs"
)

func main() {
	_ = godotenv.Load()
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	taxPercent, err := cfg.TaxPercent()
	if err != nil {
		logger.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	service := poimport.NewService(
		poimport.NewRepository(pool),
		lock.NewRedisLocker(redisClient),
		poimport.NewMetrics(nil),
		logger,
		poimport.ServiceConfig{DefaultTaxPercent: &taxPercent, LockTTL: cfg.ImportLockTTL},
	)
	importJob := jobs.NewImportJob(service, jobs.NewReportStore(redisClient, cfg.ImportReportTTL), logger, jobmetrics.NewMetrics(nil))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskImportRun, Handler: importJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
