// Command poimport imports a purchase-order spreadsheet straight into the
// database and prints the report as JSON.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/partsdesk/partsdesk/internal/app"
	"github.com/partsdesk/partsdesk/internal/platform/cache"
	"github.com/partsdesk/partsdesk/internal/platform/db"
	"github.com/partsdesk/partsdesk/internal/platform/lock"
	"github.com/partsdesk/partsdesk/internal/poimport"
	"github.com/partsdesk/partsdesk/migrations"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runCommand(ctx, os.Args[1:], os.Stdout, os.Stderr, connect)
	stop()
	os.Exit(code)
}

func connect(ctx context.Context) (poimport.Importer, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	taxPercent, err := cfg.TaxPercent()
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBAutoMigrate {
		if err := migrations.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	service := poimport.NewService(
		poimport.NewRepository(pool),
		lock.NewRedisLocker(redisClient),
		nil,
		logger,
		poimport.ServiceConfig{DefaultTaxPercent: &taxPercent, LockTTL: cfg.ImportLockTTL},
	)
	cleanup := func() {
		_ = redisClient.Close()
		pool.Close()
	}
	return service, cleanup, nil
}
