// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mkarath/folio/internal/domain"
	"github.com/mkarath/folio/internal/modules/ledger"
)

// Handler handles ledger HTTP requests
type Handler struct {
	service *ledger.Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type buyRequest struct {
	AssetKey  string           `json:"asset_key"`
	Amount    decimal.Decimal  `json:"amount"`
	PriceHint *decimal.Decimal `json:"price_hint,omitempty"`
}

type sellRequest struct {
	AssetKey string          `json:"asset_key"`
	Amount   decimal.Decimal `json:"amount"`
}

type planInvestRequest struct {
	AssetKey   string          `json:"asset_key"`
	Amount     decimal.Decimal `json:"amount"`
	PlanKind   string          `json:"plan_kind"`
	TermMonths int             `json:"term_months"`
	RatePct    decimal.Decimal `json:"rate_pct"`
}

// HandleDeposit handles POST /api/ledger/deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.Deposit(req.Amount)
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.writeSnapshot(w, snapshot)
}

// HandleWithdraw handles POST /api/ledger/withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.Withdraw(req.Amount)
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.writeSnapshot(w, snapshot)
}

// HandleBuy handles POST /api/ledger/buy
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.Buy(req.AssetKey, req.Amount, req.PriceHint)
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.writeSnapshot(w, snapshot)
}

// HandleSell handles POST /api/ledger/sell
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.Sell(req.AssetKey, req.Amount)
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.writeSnapshot(w, snapshot)
}

// HandlePlanInvest handles POST /api/ledger/plan-invest
func (h *Handler) HandlePlanInvest(w http.ResponseWriter, r *http.Request) {
	var req planInvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.PlanInvest(req.AssetKey, req.Amount, domain.PlanKind(req.PlanKind), req.TermMonths, req.RatePct)
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.writeSnapshot(w, snapshot)
}

// HandleGetBalance handles GET /api/ledger/balance
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.Snapshot()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"balance": snapshot.Balance,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetTransactions handles GET /api/ledger/transactions
// Returns transactions newest first, capped by the limit query parameter.
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	snapshot := h.service.Snapshot()

	// Stored oldest first; respond newest first
	transactions := make([]domain.Transaction, 0, limit)
	for i := len(snapshot.Transactions) - 1; i >= 0 && len(transactions) < limit; i-- {
		transactions = append(transactions, snapshot.Transactions[i])
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"transactions": transactions,
			"count":        len(transactions),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeSnapshot writes a successful mutation response
func (h *Handler) writeSnapshot(w http.ResponseWriter, snapshot domain.LedgerSnapshot) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": snapshot,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeValidationError maps engine validation errors to 400 responses
func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if !errors.Is(err, ledger.ErrInvalidAmount) &&
		!errors.Is(err, ledger.ErrMissingAsset) &&
		!errors.Is(err, ledger.ErrNoHoldings) &&
		!errors.Is(err, ledger.ErrInvalidPlan) {
		h.log.Error().Err(err).Msg("Unexpected ledger error")
		status = http.StatusInternalServerError
	}

	h.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
