package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/isc-maritime/stockroom/internal/app"
	"github.com/isc-maritime/stockroom/internal/dashboard"
	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/livesync"
	"github.com/isc-maritime/stockroom/internal/platform/cache"
	"github.com/isc-maritime/stockroom/internal/procurement"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/jobs"
)

func main() {
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

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// Writes made by jobs reach API nodes through the Redis channel.
	hub := livesync.NewHub(redisClient, logger)
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL, logger,
		inventory.CollectionConsumables,
		inventory.CollectionFixedAssets,
		procurement.CollectionPurchases,
	)
	hub.AddListener(dashboardCache)

	store, err := app.OpenStore(ctx, cfg, hub, logger)
	if err != nil {
		logger.Error("open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	inventoryRepo := inventory.NewRepository(store)
	inventoryService := inventory.NewService(inventoryRepo, shared.NewAuditLogger(store), inventory.ServiceConfig{
		AllowNegativeStock: cfg.InventoryAllowNegativeStock,
	}, nil)
	dashboardService := dashboard.NewService(inventoryRepo, procurement.NewRepository(store), dashboardCache)

	lowStockJob := jobs.NewLowStockScanJob(inventoryService, logger, nil)
	reconcileJob := jobs.NewStockReconcileJob(inventoryService, logger, nil)
	warmupJob := jobs.NewDashboardWarmupJob(dashboardService, logger, nil)

	now := time.Now().UTC()
	lowStockTask, err := jobs.NewLowStockScanTask(now)
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}
	reconcileTask, err := jobs.NewStockReconcileTask(now)
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewDashboardWarmupTask(now)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLowStockScan, Handler: lowStockJob.Handle},
			{Type: jobs.TaskStockReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskDashboardWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 6 * * *", Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
