package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers ledger routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Post("/deposit", h.HandleDeposit)
		r.Post("/withdraw", h.HandleWithdraw)
		r.Post("/buy", h.HandleBuy)
		r.Post("/sell", h.HandleSell)
		r.Post("/plan-invest", h.HandlePlanInvest)
		r.Get("/balance", h.HandleGetBalance)
		r.Get("/transactions", h.HandleGetTransactions)
	})
}
