// Package valuation computes portfolio valuations from ledger state and
// cached quotes. The computation is pure: it never mutates the ledger and
// never blocks on the network.
package valuation

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mkarath/folio/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// Service computes portfolio snapshots
type Service struct {
	ledger domain.LedgerReader
	quotes domain.QuoteProvider
	log    zerolog.Logger
}

// NewService creates a new valuation service
func NewService(ledger domain.LedgerReader, quotes domain.QuoteProvider, log zerolog.Logger) *Service {
	return &Service{
		ledger: ledger,
		quotes: quotes,
		log:    log.With().Str("module", "valuation").Logger(),
	}
}

// Portfolio computes the current portfolio valuation
func (s *Service) Portfolio() domain.PortfolioSnapshot {
	state := s.ledger.Snapshot()
	return Compute(state.Balance, state.Lots, s.quotes)
}

// Compute values the given lots against the quote provider and assembles a
// portfolio snapshot. Lots without a usable quote are valued at cost basis.
func Compute(balance decimal.Decimal, lots []domain.Lot, quotes domain.QuoteProvider) domain.PortfolioSnapshot {
	aggregates := make(map[string]*domain.Holding)
	order := make([]string, 0, len(lots))

	for i := range lots {
		lot := &lots[i]

		holding, ok := aggregates[lot.AssetKey]
		if !ok {
			holding = &domain.Holding{AssetKey: lot.AssetKey}
			aggregates[lot.AssetKey] = holding
			order = append(order, lot.AssetKey)
		}

		holding.InvestedTotal = holding.InvestedTotal.Add(lot.AmountInvested)

		value, priced := valueLot(lot, quotes)
		holding.CurrentValue = holding.CurrentValue.Add(value)
		if priced {
			holding.Quantity = holding.Quantity.Add(*lot.Quantity)
			holding.Priced = true
		}
	}

	holdings := make([]domain.Holding, 0, len(aggregates))
	totalInvested := decimal.Zero
	totalCurrentValue := decimal.Zero

	for _, assetKey := range order {
		holding := aggregates[assetKey]

		if !holding.InvestedTotal.IsZero() {
			holding.ROIPercent = holding.CurrentValue.Sub(holding.InvestedTotal).
				Div(holding.InvestedTotal).
				Mul(oneHundred)
		}

		totalInvested = totalInvested.Add(holding.InvestedTotal)
		totalCurrentValue = totalCurrentValue.Add(holding.CurrentValue)
		holdings = append(holdings, *holding)
	}

	// Largest positions first; stable tie-break on asset key
	sort.Slice(holdings, func(i, j int) bool {
		cmp := holdings[i].CurrentValue.Cmp(holdings[j].CurrentValue)
		if cmp != 0 {
			return cmp > 0
		}
		return holdings[i].AssetKey < holdings[j].AssetKey
	})

	return domain.PortfolioSnapshot{
		Balance:             balance,
		Holdings:            holdings,
		TotalInvested:       totalInvested,
		TotalCurrentValue:   totalCurrentValue,
		TotalPortfolioValue: balance.Add(totalCurrentValue),
		ProfitLoss:          totalCurrentValue.Sub(totalInvested),
	}
}

// valueLot computes the current value of a single lot. The second return
// reports whether the lot was marked to a live quote; unpriced lots and lots
// without a usable quote fall back to their cost basis.
func valueLot(lot *domain.Lot, quotes domain.QuoteProvider) (decimal.Decimal, bool) {
	if !lot.Priced() {
		return lot.AmountInvested, false
	}

	quote := quotes.Get(lot.AssetKey)
	if quote == nil || !quote.Price.IsPositive() {
		return lot.AmountInvested, false
	}

	return lot.Quantity.Mul(quote.Price), true
}
