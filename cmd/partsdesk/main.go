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

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/partsdesk/partsdesk/internal/app"
	"github.com/partsdesk/partsdesk/internal/observability"
	"github.com/partsdesk/partsdesk/internal/platform/cache"
	"github.com/partsdesk/partsdesk/internal/platform/db"
	"github.com/partsdesk/partsdesk/internal/platform/lock"
	"github.com/partsdesk/partsdesk/internal/poimport"
	"github.com/partsdesk/partsdesk/internal/poimport/sheet"
	"github.com/partsdesk/partsdesk/jobs"
	"github.com/partsdesk/partsdesk/migrations"
)

func main() {
	_ = godotenv.Load()
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.DBAutoMigrate {
		if err := migrations.Apply(ctx, pool); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	taxPercent, err := cfg.TaxPercent()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	service := poimport.NewService(
		poimport.NewRepository(pool),
		lock.NewRedisLocker(redisClient),
		poimport.NewMetrics(metrics.Registerer()),
		logger,
		poimport.ServiceConfig{DefaultTaxPercent: &taxPercent, LockTTL: cfg.ImportLockTTL},
	)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	store := jobs.NewReportStore(redisClient, cfg.ImportReportTTL)
	jobClient := jobs.NewClient(redisOpts, store)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		ImportHandler: poimport.NewHandler(poimport.HandlerConfig{
			Logger:    logger,
			Importer:  service,
			Reader:    sheet.Read,
			Queue:     jobClient,
			Jobs:      store,
			MaxUpload: cfg.ImportMaxUpload,
		}),
		JobHandler: jobs.NewHandler(inspector, logger),
		Metrics:    metrics,
		Checks: map[string]app.Pinger{
			"postgres": pool,
			"redis": app.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
