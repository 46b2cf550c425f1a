package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/isc-maritime/stockroom/internal/jobs"
)

// Reconciler repairs stale derived stock fields.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]string, error)
}

// StockReconcileJob runs the nightly consumable reconcile.
type StockReconcileJob struct {
	Inventory Reconciler
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewStockReconcileJob wires the reconcile handler.
func NewStockReconcileJob(inv Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{Inventory: inv, Logger: logger, Metrics: metrics}
}

// Handle processes TaskStockReconcile tasks.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	if _, err := decodeScheduled(t); err != nil {
		return err
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskStockReconcile)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := jobLogger(j.Logger, TaskStockReconcile)
	fixed, err := j.Inventory.Reconcile(ctx)
	if err != nil {
		logger.Error("reconcile consumables", slog.Any("error", err))
		return err
	}
	if len(fixed) > 0 {
		logger.Warn("repaired consumables", slog.Any("ids", fixed))
	}
	logger.Info("completed stock reconcile", slog.Int("fixed", len(fixed)))
	return nil
}
