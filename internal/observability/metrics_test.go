package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/procurement"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `stockroom_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `stockroom_http_request_duration_seconds_bucket{route="/test"`)
}

func TestStockMetricsObserveMovementsAndReceipts(t *testing.T) {
	metrics := NewMetrics()
	ctx := context.Background()

	metrics.Stock.HandleStockMovement(ctx, inventory.MovementEvent{Kind: inventory.MovementIssue, ConsumableID: "CON-001", Delta: -3})
	metrics.Stock.HandleStockMovement(ctx, inventory.MovementEvent{Kind: inventory.MovementIssue, ConsumableID: "CON-002", Delta: -2})
	metrics.Stock.HandlePurchaseReceived(ctx, procurement.PurchaseReceivedEvent{PurchaseID: "p1", Type: procurement.TypeConsumable, Quantity: 5, Cost: 12.5})
	metrics.Jobs.SetLowStock(4, 17)
	metrics.ObserveLiveSubscribers(func() int { return 2 })

	body := scrape(t, metrics)
	for _, want := range []string{
		`stockroom_stock_movements_total{kind="issue"} 2`,
		`stockroom_stock_units_total{kind="issue"} 5`,
		`stockroom_purchases_received_total{type="consumable"} 1`,
		`stockroom_purchases_received_cost_total 12.5`,
		`stockroom_low_stock_items 4`,
		`stockroom_reorder_suggested_units 17`,
		`stockroom_live_subscribers 2`,
	} {
		require.True(t, strings.Contains(body, want), "missing %s", want)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var s *StockMetrics
	s.HandleStockMovement(context.Background(), inventory.MovementEvent{Kind: inventory.MovementReceipt, Delta: 1})
}
