package suppliers

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stock", h.Stock)
	r.Route("/current-purchases", func(r chi.Router) {
		r.Get("/", h.ListCurrentPurchases)
		r.Post("/", h.AddCurrentPurchase)
		r.Post("/ordered", h.MarkOrderedBatch)
		r.Post("/{id}/ordered", h.MarkOrdered)
		r.Post("/{id}/receive", h.ReceiveCurrentPurchase)
		r.Delete("/{id}", h.DeleteCurrentPurchase)
	})
	r.Get("/history", h.History)
	r.Route("/crew-issues", func(r chi.Router) {
		r.Get("/", h.ListCrewIssues)
		r.Post("/", h.IssueToCrew)
		r.Patch("/{id}", h.UpdateCrewIssue)
		r.Delete("/{id}", h.DeleteCrewIssue)
	})
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Put("/{id}/items/{itemID}", h.UpdateItemVariants)
}
