package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/isc-maritime/stockroom/internal/inventory"
	jobmetrics "github.com/isc-maritime/stockroom/internal/jobs"
	"github.com/isc-maritime/stockroom/internal/procurement"
)

// Metrics collects Prometheus metrics for the API process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Stock counts inventory movements and purchase receipts.
	Stock *StockMetrics
	// Jobs carries background job collectors sharing this registry.
	Jobs *jobmetrics.Metrics
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockroom_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	registry.MustRegister(requests, duration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		Stock:           NewStockMetrics(registry),
		Jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveLiveSubscribers exports the number of open live streams.
func (m *Metrics) ObserveLiveSubscribers(count func() int) {
	if m == nil || count == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stockroom_live_subscribers",
		Help: "Open live sync subscriptions.",
	}, func() float64 { return float64(count()) }))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets streaming handlers work behind the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

// StockMetrics implements inventory.MovementObserver and
// procurement.ReceiptObserver.
type StockMetrics struct {
	movements    *prometheus.CounterVec
	units        *prometheus.CounterVec
	receipts     *prometheus.CounterVec
	receiptValue prometheus.Counter
}

// NewStockMetrics registers stock collectors.
func NewStockMetrics(registerer prometheus.Registerer) *StockMetrics {
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_stock_movements_total",
		Help: "Committed consumable stock movements by kind.",
	}, []string{"kind"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_stock_units_total",
		Help: "Units moved in or out of consumable stock by kind.",
	}, []string{"kind"})
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_purchases_received_total",
		Help: "Purchases received into inventory by type.",
	}, []string{"type"})
	value := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockroom_purchases_received_cost_total",
		Help: "Cost of purchases received into inventory.",
	})
	registerer.MustRegister(movements, units, receipts, value)
	return &StockMetrics{movements: movements, units: units, receipts: receipts, receiptValue: value}
}

// HandleStockMovement counts a committed movement.
func (s *StockMetrics) HandleStockMovement(_ context.Context, evt inventory.MovementEvent) {
	if s == nil {
		return
	}
	delta := evt.Delta
	if delta < 0 {
		delta = -delta
	}
	s.movements.WithLabelValues(evt.Kind).Inc()
	s.units.WithLabelValues(evt.Kind).Add(float64(delta))
}

// HandlePurchaseReceived counts a posted receipt.
func (s *StockMetrics) HandlePurchaseReceived(_ context.Context, evt procurement.PurchaseReceivedEvent) {
	if s == nil {
		return
	}
	s.receipts.WithLabelValues(string(evt.Type)).Inc()
	if evt.Cost > 0 {
		s.receiptValue.Add(evt.Cost)
	}
}
