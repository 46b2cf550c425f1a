package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/shared"
)

const requestTimeout = 5 * time.Second

// Handler serves the dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleOverview)
	r.Get("/stock", h.handleStock)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := shared.ParseMonthYear(q.Get("month"), q.Get("year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	status := q.Get("status")
	if status == "all" {
		status = ""
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	overview, err := h.service.Overview(ctx, Filters{Period: period, PurchaseStatus: status})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := shared.ParseMonthYear(q.Get("month"), q.Get("year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	page := 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "page must be a positive number")
			return
		}
	}
	query := TableQuery{
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
		Desc:   q.Get("dir") == "desc",
		Page:   page,
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	table, err := h.service.StockTable(ctx, period, query)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, table)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("dashboard request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
