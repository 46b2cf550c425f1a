package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/isc-maritime/stockroom/internal/inventory"
	jobmetrics "github.com/isc-maritime/stockroom/internal/jobs"
	"github.com/isc-maritime/stockroom/internal/stock"
)

// LowStockSource lists reorder candidates.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.Consumable, error)
}

// LowStockScanJob logs every consumable below its reorder level and exports
// the totals as gauges.
type LowStockScanJob struct {
	Inventory LowStockSource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(inv LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Inventory: inv, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	payload, err := decodeScheduled(t)
	if err != nil {
		return err
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskLowStockScan)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := jobLogger(j.Logger, TaskLowStockScan)
	items, err := j.Inventory.LowStock(ctx)
	if err != nil {
		logger.Error("load low stock", slog.Any("error", err))
		return err
	}
	suggested := 0
	for _, c := range items {
		units := stock.ReorderSuggestion(c.Quantity, c.ReorderLevel)
		suggested += units
		logger.Warn("consumable below reorder level",
			slog.String("consumable_id", c.ID),
			slog.String("name", c.Name),
			slog.Int("quantity", c.Quantity),
			slog.Int("reorder_level", c.ReorderLevel),
			slog.Int("suggested", units))
	}
	metrics.SetLowStock(len(items), suggested)
	logger.Info("completed low stock scan",
		slog.Int("items", len(items)),
		slog.Int("suggested_units", suggested),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
