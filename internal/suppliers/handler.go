package suppliers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, "list suppliers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	supplier, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input SupplierInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var input SupplierInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, r, "update supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete supplier failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateItemVariants(w http.ResponseWriter, r *http.Request) {
	var item ItemWithVariants
	if err := httpx.DecodeAndValidate(r, h.validate, &item); err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.UpdateItemVariants(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), item)
	if err != nil {
		h.fail(w, r, "update supplier item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) ListCurrentPurchases(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCurrentPurchases(r.Context())
	if err != nil {
		h.fail(w, r, "list current purchases failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) AddCurrentPurchase(w http.ResponseWriter, r *http.Request) {
	var input CurrentPurchaseInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.AddCurrentPurchase(r.Context(), input)
	if err != nil {
		h.fail(w, r, "add current purchase failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) MarkOrdered(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.MarkOrdered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "mark ordered failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items[0])
}

type idsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

func (h *Handler) MarkOrderedBatch(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.MarkOrdered(r.Context(), req.IDs...)
	if err != nil {
		h.fail(w, r, "mark ordered failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) ReceiveCurrentPurchase(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Receive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "receive current purchase failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) DeleteCurrentPurchase(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCurrentPurchase(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete current purchase failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.History(r.Context())
	if err != nil {
		h.fail(w, r, "list purchase history failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) ListCrewIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := shared.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items, err := h.service.CrewIssues(r.Context(), CrewIssueFilter{Search: q.Get("search"), Range: rng})
	if err != nil {
		h.fail(w, r, "list crew issues failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) IssueToCrew(w http.ResponseWriter, r *http.Request) {
	var input CrewIssueInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.IssueToCrew(r.Context(), input)
	if err != nil {
		h.fail(w, r, "issue to crew failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, items)
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func (h *Handler) UpdateCrewIssue(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	issue, err := h.service.UpdateCrewIssueQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		h.fail(w, r, "update crew issue failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, issue)
}

func (h *Handler) DeleteCrewIssue(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCrewIssue(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete crew issue failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := shared.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rows, err := h.service.Stock(r.Context(), StockFilter{Search: q.Get("search"), SupplierID: q.Get("supplier"), Range: rng})
	if err != nil {
		h.fail(w, r, "supplier stock failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(msg, "error", err, "path", r.URL.Path)
	}
	httpx.RespondError(w, err)
}
