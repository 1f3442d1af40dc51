// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind represents the kind of ledger transaction
type TransactionKind string

const (
	TransactionDeposit  TransactionKind = "deposit"
	TransactionWithdraw TransactionKind = "withdraw"
	TransactionInvest   TransactionKind = "invest"
	TransactionSell     TransactionKind = "sell"
)

// PlanKind represents the kind of fixed-term plan a lot belongs to
type PlanKind string

const (
	// PlanNone marks a regular (non-plan) lot
	PlanNone PlanKind = ""
	// PlanCapital represents a structured capital plan with a contractual rate
	PlanCapital PlanKind = "capital"
	// PlanRealEstate represents a real-estate investment plan
	PlanRealEstate PlanKind = "real_estate"
)

// Lot represents a single investment: one buy or plan-invest event, partially
// or fully depletable by later sells. A lot is priced when both Quantity and
// PriceAtPurchase are set; unpriced lots (plans, real estate, buys made with no
// quote available) are valued at cost.
type Lot struct {
	ID              string           `json:"id"`
	AssetKey        string           `json:"asset_key"`
	AmountInvested  decimal.Decimal  `json:"amount_invested"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	PriceAtPurchase *decimal.Decimal `json:"price_at_purchase,omitempty"`
	PlanKind        PlanKind         `json:"plan_kind,omitempty"`
	TermMonths      int              `json:"term_months,omitempty"`
	RatePct         decimal.Decimal  `json:"rate_pct,omitempty"`
	OpenedAt        time.Time        `json:"opened_at"`
}

// Priced reports whether the lot tracks a market-priced asset
func (l *Lot) Priced() bool {
	return l.Quantity != nil && l.PriceAtPurchase != nil
}

// Transaction is an append-only audit record. Transactions are never mutated
// or deleted; the running balance must reconcile with their amounts.
type Transaction struct {
	ID         string          `json:"id"`
	Kind       TransactionKind `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	AssetKey   string          `json:"asset_key,omitempty"`
	Memo       string          `json:"memo,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Quote is the latest known price for an asset symbol. Only the most recent
// value is retained; no history.
type Quote struct {
	AssetKey  string          `json:"asset_key"`
	Price     decimal.Decimal `json:"price"`
	Change24h *float64        `json:"change_24h,omitempty"`
	Change7d  *float64        `json:"change_7d,omitempty"`
	Change30d *float64        `json:"change_30d,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Holding is the derived per-asset view: all active lots for one asset key
// aggregated and marked to the latest cached quote.
type Holding struct {
	AssetKey      string          `json:"asset_key"`
	Quantity      decimal.Decimal `json:"quantity"`
	InvestedTotal decimal.Decimal `json:"invested_total"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	ROIPercent    decimal.Decimal `json:"roi_percent"`
	Priced        bool            `json:"priced"`
}

// PortfolioSnapshot is the derived whole-portfolio view. It is recomputed on
// demand from lots and quotes and never persisted.
type PortfolioSnapshot struct {
	Balance             decimal.Decimal `json:"balance"`
	Holdings            []Holding       `json:"holdings"`
	TotalInvested       decimal.Decimal `json:"total_invested"`
	TotalCurrentValue   decimal.Decimal `json:"total_current_value"`
	TotalPortfolioValue decimal.Decimal `json:"total_portfolio_value"`
	ProfitLoss          decimal.Decimal `json:"profit_loss"`
}

// LedgerSnapshot is the full mutable state of the ledger after one operation:
// balance, active lots, and the append-only transaction log.
type LedgerSnapshot struct {
	Balance      decimal.Decimal `json:"balance"`
	Lots         []Lot           `json:"lots"`
	Transactions []Transaction   `json:"transactions"`
}
