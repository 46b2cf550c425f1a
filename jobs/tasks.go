package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/isc-maritime/stockroom/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskLowStockScan reports consumables below their reorder level.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskStockReconcile repairs stale derived consumable fields.
	TaskStockReconcile = "inventory:reconcile"
	// TaskDashboardWarmup pre-populates the dashboard cache.
	TaskDashboardWarmup = "dashboard:warmup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ScheduledPayload carries scheduling metadata shared by periodic tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

func newScheduledTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanTask builds a low-stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskLowStockScan, at)
}

// NewStockReconcileTask builds a reconcile task.
func NewStockReconcileTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskStockReconcile, at)
}

// NewDashboardWarmupTask builds a warmup task.
func NewDashboardWarmupTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskDashboardWarmup, at)
}

func decodeScheduled(t *asynq.Task) (ScheduledPayload, error) {
	var payload ScheduledPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, asynq.SkipRetry
	}
	return payload, nil
}
