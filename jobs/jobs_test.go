package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/isc-maritime/stockroom/internal/inventory"
	jobmetrics "github.com/isc-maritime/stockroom/internal/jobs"
)

type fakeInventory struct {
	low   []inventory.Consumable
	fixed []string
	err   error
}

func (f fakeInventory) LowStock(ctx context.Context) ([]inventory.Consumable, error) {
	return f.low, f.err
}

func (f fakeInventory) Reconcile(ctx context.Context) ([]string, error) {
	return f.fixed, f.err
}

type fakeWarmer struct {
	calls int
}

func (f *fakeWarmer) Warm(ctx context.Context) error {
	f.calls++
	return nil
}

func newRegistry() (*prometheus.Registry, *jobmetrics.Metrics) {
	reg := prometheus.NewRegistry()
	return reg, jobmetrics.NewMetrics(reg)
}

func TestLowStockScanExportsTotals(t *testing.T) {
	reg, metrics := newRegistry()
	job := NewLowStockScanJob(fakeInventory{low: []inventory.Consumable{
		{ID: "CON-001", Name: "Rope", Quantity: 1, ReorderLevel: 5},
		{ID: "CON-002", Name: "Paint", Quantity: 0, ReorderLevel: 2},
	}}, nil, metrics)

	task, err := NewLowStockScanTask(time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, TaskLowStockScan, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	expected := `
# HELP stockroom_low_stock_items Consumables below their reorder level at the last scan.
# TYPE stockroom_low_stock_items gauge
stockroom_low_stock_items 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "stockroom_low_stock_items"))
}

func TestLowStockScanRecordsFailure(t *testing.T) {
	reg, metrics := newRegistry()
	boom := errors.New("store down")
	job := NewLowStockScanJob(fakeInventory{err: boom}, nil, metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, nil))
	require.ErrorIs(t, err, boom)

	count, err := testutil.GatherAndCount(reg, "stockroom_jobs_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	_, metrics := newRegistry()
	job := NewStockReconcileJob(fakeInventory{}, nil, metrics)
	err := job.Handle(context.Background(), asynq.NewTask(TaskStockReconcile, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReconcileAndWarmupJobs(t *testing.T) {
	_, metrics := newRegistry()
	ctx := context.Background()

	reconcile := NewStockReconcileJob(fakeInventory{fixed: []string{"CON-004"}}, nil, metrics)
	task, err := NewStockReconcileTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, reconcile.Handle(ctx, task))

	warmer := &fakeWarmer{}
	warmup := NewDashboardWarmupJob(warmer, nil, metrics)
	task, err = NewDashboardWarmupTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, warmup.Handle(ctx, task))
	require.Equal(t, 1, warmer.calls)

	var missing *DashboardWarmupJob
	require.Error(t, missing.Handle(ctx, task))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: QueueDefault}, nil
}

func TestHandlerRoutes(t *testing.T) {
	enq := &fakeEnqueuer{}
	router := chi.NewRouter()
	NewHandler(nil, &Client{client: enq}, nil).MountRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"failed":0}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run/"+TaskLowStockScan, nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.tasks, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run/payroll", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	enq.err = asynq.ErrDuplicateTask
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run/"+TaskDashboardWarmup, nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	router = chi.NewRouter()
	NewHandler(nil, nil, nil).MountRoutes(router)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run/"+TaskLowStockScan, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
