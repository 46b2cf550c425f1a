package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/isc-maritime/stockroom/internal/jobs"
)

// Warmer pre-populates a cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// DashboardWarmupJob fills the dashboard cache ahead of the first visitor.
type DashboardWarmupJob struct {
	Dashboard Warmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Timeout   time.Duration
}

// NewDashboardWarmupJob wires the warmup handler.
func NewDashboardWarmupJob(dashboard Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{Dashboard: dashboard, Logger: logger, Metrics: metrics, Timeout: 20 * time.Second}
}

// Handle processes TaskDashboardWarmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Dashboard == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	if _, err := decodeScheduled(t); err != nil {
		return err
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskDashboardWarmup)
	defer func() { resultErr = tracker.End(resultErr) }()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	if err := j.Dashboard.Warm(ctx); err != nil {
		jobLogger(j.Logger, TaskDashboardWarmup).Error("warm dashboard", slog.Any("error", err))
		return err
	}
	jobLogger(j.Logger, TaskDashboardWarmup).Info("completed dashboard warmup", slog.Duration("duration", time.Since(start)))
	return nil
}
