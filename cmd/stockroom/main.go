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

	"github.com/isc-maritime/stockroom/internal/app"
	"github.com/isc-maritime/stockroom/internal/dashboard"
	"github.com/isc-maritime/stockroom/internal/export"
	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/livesync"
	"github.com/isc-maritime/stockroom/internal/observability"
	"github.com/isc-maritime/stockroom/internal/platform/cache"
	"github.com/isc-maritime/stockroom/internal/procurement"
	"github.com/isc-maritime/stockroom/internal/shared"
	"github.com/isc-maritime/stockroom/internal/suppliers"
	"github.com/isc-maritime/stockroom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	// Without Redis, live sync stays in-process and receipts are not deduplicated.
	sharedRedis := cache.Optional(ctx, cfg.RedisAddr, logger)
	if sharedRedis != nil {
		defer func() {
			if err := sharedRedis.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	hub := livesync.NewHub(sharedRedis, logger)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("live hub stopped", slog.Any("error", err))
		}
	}()

	store, err := app.OpenStore(ctx, cfg, hub, logger)
	if err != nil {
		logger.Error("open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	metrics := observability.NewMetrics()
	metrics.ObserveLiveSubscribers(hub.Subscribers)

	auditLogger := shared.NewAuditLogger(store)
	var idempotencyStore *shared.IdempotencyStore
	if sharedRedis != nil {
		idempotencyStore = shared.NewIdempotencyStore(sharedRedis)
	}

	inventoryRepo := inventory.NewRepository(store)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.InventoryAllowNegativeStock,
	}, metrics.Stock)

	procurementRepo := procurement.NewRepository(store)
	procurementService := procurement.NewService(procurementRepo, inventoryService, auditLogger, idempotencyStore, metrics.Stock, logger)

	supplierService := suppliers.NewService(suppliers.NewRepository(store), auditLogger)

	dashboardCache := dashboard.NewCache(sharedRedis, cfg.DashboardCacheTTL, logger,
		inventory.CollectionConsumables,
		inventory.CollectionFixedAssets,
		procurement.CollectionPurchases,
	)
	hub.AddListener(dashboardCache)
	dashboardService := dashboard.NewService(inventoryRepo, procurementRepo, dashboardCache)

	reports := export.NewReports(inventoryRepo, procurementRepo)

	var (
		jobClient *jobs.Client
		inspector jobs.QueueInspector
	)
	if sharedRedis != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient, err = jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		asynqInspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := asynqInspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		inspector = asynqInspector
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		SupplierHandler:    suppliers.NewHandler(logger, supplierService),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService),
		ReportHandler:      export.NewHandler(logger, reports),
		LiveHandler: livesync.NewHandler(hub, store, logger,
			inventory.CollectionConsumables,
			inventory.CollectionFixedAssets,
			inventory.CollectionIssuedItems,
			procurement.CollectionPurchases,
			suppliers.CollectionSuppliers,
			suppliers.CollectionCurrentPurchases,
			suppliers.CollectionPurchaseHistory,
			suppliers.CollectionCrewIssues,
		),
		JobHandler: jobs.NewHandler(inspector, jobClient, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", store.Driver))
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
