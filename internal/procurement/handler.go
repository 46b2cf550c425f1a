package procurement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/shared"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchases", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Post("/batch", h.handleCreateBatch)
		r.Get("/years", h.handleYears)
		r.Get("/reorder", h.handleReorder)
		r.Get("/kpis", h.handleKPIs)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/cancel", h.handleCancel)
		r.Post("/{id}/receipt", h.handleAttachReceipt)
		r.Post("/{id}/receive", h.handleReceive)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	purchases, err := h.service.List(r.Context(), ListFilters{
		Period: period,
		Status: PurchaseStatus(q.Get("status")),
		Type:   PurchaseType(q.Get("type")),
		Search: q.Get("search"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchases)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input PurchaseInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var input BatchInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	result, err := h.service.CreateBatch(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.AvailableYears(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, years)
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.ReorderWorklist(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) handleKPIs(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	kpis, err := h.service.KPIs(r.Context(), period)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, kpis)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var input PurchaseInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type receiptRequest struct {
	Receipt string `json:"receipt" validate:"required"`
}

func (h *Handler) handleAttachReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.service.AttachReceipt(r.Context(), chi.URLParam(r, "id"), req.Receipt)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Receive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func parsePeriod(w http.ResponseWriter, r *http.Request) (shared.MonthYear, bool) {
	q := r.URL.Query()
	period, err := shared.ParseMonthYear(q.Get("month"), q.Get("year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return period, false
	}
	return period, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("procurement request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
