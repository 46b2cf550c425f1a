package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/isc-maritime/stockroom/internal/platform/httpx"
	"github.com/isc-maritime/stockroom/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/consumables", func(r chi.Router) {
		r.Get("/", h.listConsumables)
		r.Post("/", h.createConsumable)
		r.Get("/categories", h.listCategories)
		r.Get("/low-stock", h.listLowStock)
		r.Get("/{id}", h.getConsumable)
		r.Put("/{id}", h.updateConsumable)
		r.Delete("/{id}", h.deleteConsumable)
	})
	r.Route("/fixed-assets", func(r chi.Router) {
		r.Get("/", h.listFixedAssets)
		r.Post("/", h.createFixedAsset)
		r.Get("/{id}", h.getFixedAsset)
		r.Put("/{id}", h.updateFixedAsset)
		r.Delete("/{id}", h.deleteFixedAsset)
	})
	r.Route("/issued-items", func(r chi.Router) {
		r.Get("/", h.listIssuedItems)
		r.Post("/", h.issueItem)
		r.Post("/batch", h.issueMultiple)
		r.Post("/delete-group", h.deleteIssuanceGroup)
		r.Get("/{id}", h.getIssuedItem)
		r.Patch("/{id}", h.updateIssuance)
		r.Delete("/{id}", h.deleteIssuance)
	})
}

func (h *Handler) listConsumables(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := shared.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items, err := h.service.ListConsumables(r.Context(), ConsumableFilter{
		Category:    q.Get("category"),
		Range:       rng,
		Search:      q.Get("search"),
		ReorderOnly: q.Get("reorder") == "true",
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getConsumable(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetConsumable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) createConsumable(w http.ResponseWriter, r *http.Request) {
	var input ConsumableInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	item, err := h.service.CreateConsumable(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateConsumable(w http.ResponseWriter, r *http.Request) {
	var input ConsumableInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	item, err := h.service.UpdateConsumable(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteConsumable(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteConsumable(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listFixedAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := shared.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	assets, err := h.service.ListFixedAssets(r.Context(), FixedAssetFilter{
		AssetClass: q.Get("class"),
		Status:     AssetStatus(q.Get("status")),
		Range:      rng,
		Search:     q.Get("search"),
		Descending: q.Get("order") == "desc",
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assets)
}

func (h *Handler) getFixedAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.service.GetFixedAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}

func (h *Handler) createFixedAsset(w http.ResponseWriter, r *http.Request) {
	var input FixedAssetInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	asset, err := h.service.CreateFixedAsset(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, asset)
}

func (h *Handler) updateFixedAsset(w http.ResponseWriter, r *http.Request) {
	var input FixedAssetInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	asset, err := h.service.UpdateFixedAsset(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}

func (h *Handler) deleteFixedAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFixedAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listIssuedItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListIssuedItems(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getIssuedItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetIssuedItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) issueItem(w http.ResponseWriter, r *http.Request) {
	var input IssueInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	input.Actor = r.Header.Get("X-Actor")
	item, err := h.service.IssueItem(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) issueMultiple(w http.ResponseWriter, r *http.Request) {
	var input IssueMultipleInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	input.Actor = r.Header.Get("X-Actor")
	items, err := h.service.IssueMultiple(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, items)
}

func (h *Handler) updateIssuance(w http.ResponseWriter, r *http.Request) {
	var input UpdateIssuanceInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		h.respondError(w, r, err)
		return
	}
	item, err := h.service.UpdateIssuance(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteIssuance(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteIssuance(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deleteGroupRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

func (h *Handler) deleteIssuanceGroup(w http.ResponseWriter, r *http.Request) {
	var req deleteGroupRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.DeleteIssuanceGroup(r.Context(), req.IDs); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
