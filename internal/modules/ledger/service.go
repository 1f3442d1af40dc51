package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mkarath/folio/internal/domain"
	"github.com/mkarath/folio/internal/events"
)

// Validation errors returned to the caller. State is never changed when one of
// these is returned.
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrMissingAsset  = errors.New("asset key must not be empty")
	ErrNoHoldings    = errors.New("no holdings for asset")
	ErrInvalidPlan   = errors.New("invalid plan parameters")
)

// Service is the ledger engine: the single owner and single mutation point of
// {balance, lots, transactions}. Every successful operation persists the full
// new snapshot before returning and then notifies subscribers, so the balance,
// the open lots and the audit trail can never drift apart.
//
// Withdraw and Buy clamp at a zero balance instead of rejecting when funds run
// short. That mirrors the dashboard's original best-effort UX; the recorded
// transaction always carries the amount actually moved, so reconciliation
// against the transaction log still holds exactly.
type Service struct {
	mu           sync.Mutex
	balance      decimal.Decimal
	lots         []domain.Lot         // insertion order, oldest first per asset (FIFO)
	transactions []domain.Transaction // append-only, oldest first
	store        *Store
	quotes       domain.QuoteProvider // may be nil (no price enhancement)
	eventManager *events.Manager      // may be nil
	now          func() time.Time
	log          zerolog.Logger
}

// NewService creates a new ledger service and loads the persisted state.
// Missing or corrupt stored values fall back to an empty ledger.
func NewService(store *Store, quotes domain.QuoteProvider, eventManager *events.Manager, log zerolog.Logger) *Service {
	s := &Service{
		balance:      decimal.Zero,
		store:        store,
		quotes:       quotes,
		eventManager: eventManager,
		now:          time.Now,
		log:          log.With().Str("service", "ledger").Logger(),
	}
	s.load()
	return s
}

// load restores balance, lots and transactions from the store
func (s *Service) load() {
	var balance decimal.Decimal
	if s.store.Load(KeyBalance, &balance) && !balance.IsNegative() {
		s.balance = balance
	}

	var lots []domain.Lot
	if s.store.Load(KeyLots, &lots) {
		s.lots = lots
	}

	var transactions []domain.Transaction
	if s.store.Load(KeyTransactions, &transactions) {
		s.transactions = transactions
	}

	s.log.Info().
		Str("balance", s.balance.String()).
		Int("lots", len(s.lots)).
		Int("transactions", len(s.transactions)).
		Msg("Ledger state loaded")
}

// Snapshot returns a copy of the current ledger state
func (s *Service) Snapshot() domain.LedgerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Deposit adds funds to the uninvested balance
func (s *Service) Deposit(amount decimal.Decimal) (domain.LedgerSnapshot, error) {
	if !amount.IsPositive() {
		return domain.LedgerSnapshot{}, ErrInvalidAmount
	}

	s.mu.Lock()
	s.balance = s.balance.Add(amount)
	s.appendTransaction(domain.TransactionDeposit, amount, "", "")
	s.persistLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.emit("deposit", "", amount)
	return snapshot, nil
}

// Withdraw removes funds from the balance, clamped at zero. The recorded
// transaction carries the amount actually withdrawn; when clamped, the memo
// notes the requested amount.
func (s *Service) Withdraw(amount decimal.Decimal) (domain.LedgerSnapshot, error) {
	if !amount.IsPositive() {
		return domain.LedgerSnapshot{}, ErrInvalidAmount
	}

	s.mu.Lock()

	withdrawn := amount
	memo := ""
	if withdrawn.GreaterThan(s.balance) {
		withdrawn = s.balance
		memo = fmt.Sprintf("requested %s, clamped to available balance", amount.String())
	}

	s.balance = s.balance.Sub(withdrawn)
	s.appendTransaction(domain.TransactionWithdraw, withdrawn, "", memo)
	s.persistLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.emit("withdraw", "", withdrawn)
	return snapshot, nil
}

// Buy opens a new lot for assetKey. When a price is known (the explicit hint
// first, then the quote cache, never a blocking fetch) the lot records
// quantity and purchase price; otherwise it is tracked at cost. The balance
// floors at zero, mirroring Withdraw: the transaction records the amount
// actually deducted and the memo carries the request when clamped.
func (s *Service) Buy(assetKey string, amount decimal.Decimal, priceHint *decimal.Decimal) (domain.LedgerSnapshot, error) {
	if assetKey == "" {
		return domain.LedgerSnapshot{}, ErrMissingAsset
	}
	if !amount.IsPositive() {
		return domain.LedgerSnapshot{}, ErrInvalidAmount
	}

	price := priceHint
	if price == nil && s.quotes != nil {
		if quote := s.quotes.Get(assetKey); quote != nil && quote.Price.IsPositive() {
			p := quote.Price
			price = &p
		}
	}

	s.mu.Lock()

	lot := domain.Lot{
		ID:             uuid.New().String(),
		AssetKey:       assetKey,
		AmountInvested: amount,
		OpenedAt:       s.now(),
	}
	if price != nil && price.IsPositive() {
		quantity := amount.Div(*price)
		lot.Quantity = &quantity
		lot.PriceAtPurchase = price
	}

	deducted := s.deductBalanceLocked(amount)
	memo := ""
	if deducted.LessThan(amount) {
		memo = fmt.Sprintf("requested %s, clamped to available balance", amount.String())
	}
	s.lots = append(s.lots, lot)
	s.appendTransaction(domain.TransactionInvest, deducted, assetKey, memo)
	s.persistLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.emit("buy", assetKey, deducted)
	return snapshot, nil
}

// PlanInvest opens a fixed-term plan lot (capital plan or real estate). The
// balance and transaction effects match Buy; the lot carries plan metadata and
// accrues by contractual rate instead of market price.
func (s *Service) PlanInvest(assetKey string, amount decimal.Decimal, plan domain.PlanKind, termMonths int, ratePct decimal.Decimal) (domain.LedgerSnapshot, error) {
	if assetKey == "" {
		return domain.LedgerSnapshot{}, ErrMissingAsset
	}
	if !amount.IsPositive() {
		return domain.LedgerSnapshot{}, ErrInvalidAmount
	}
	if plan != domain.PlanCapital && plan != domain.PlanRealEstate {
		return domain.LedgerSnapshot{}, ErrInvalidPlan
	}
	if termMonths <= 0 || ratePct.IsNegative() {
		return domain.LedgerSnapshot{}, ErrInvalidPlan
	}

	s.mu.Lock()

	lot := domain.Lot{
		ID:             uuid.New().String(),
		AssetKey:       assetKey,
		AmountInvested: amount,
		PlanKind:       plan,
		TermMonths:     termMonths,
		RatePct:        ratePct,
		OpenedAt:       s.now(),
	}

	deducted := s.deductBalanceLocked(amount)
	memo := string(plan)
	if deducted.LessThan(amount) {
		memo = fmt.Sprintf("%s, requested %s, clamped to available balance", plan, amount.String())
	}
	s.lots = append(s.lots, lot)
	s.appendTransaction(domain.TransactionInvest, deducted, assetKey, memo)
	s.persistLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.emit("plan_invest", assetKey, deducted)
	return snapshot, nil
}

// Sell liquidates up to requested invested amount of assetKey, depleting lots
// oldest-first (FIFO). The sale is clamped to the total held; selling an asset
// with no open lots is a validation error.
func (s *Service) Sell(assetKey string, requested decimal.Decimal) (domain.LedgerSnapshot, error) {
	if assetKey == "" {
		return domain.LedgerSnapshot{}, ErrMissingAsset
	}
	if !requested.IsPositive() {
		return domain.LedgerSnapshot{}, ErrInvalidAmount
	}

	s.mu.Lock()

	totalHeld := decimal.Zero
	for i := range s.lots {
		if s.lots[i].AssetKey == assetKey {
			totalHeld = totalHeld.Add(s.lots[i].AmountInvested)
		}
	}
	if totalHeld.IsZero() {
		s.mu.Unlock()
		return domain.LedgerSnapshot{}, ErrNoHoldings
	}

	sellAmount := decimal.Min(requested, totalHeld)
	memo := ""
	if requested.GreaterThan(totalHeld) {
		memo = fmt.Sprintf("requested %s, clamped to holdings", requested.String())
	}

	remaining := sellAmount
	kept := s.lots[:0]
	for _, lot := range s.lots {
		if lot.AssetKey != assetKey || remaining.IsZero() {
			kept = append(kept, lot)
			continue
		}

		if lot.AmountInvested.GreaterThan(remaining) {
			// Partial depletion: shrink quantity proportionally for priced lots
			if lot.Priced() {
				ratio := remaining.Div(lot.AmountInvested)
				newQuantity := lot.Quantity.Sub(lot.Quantity.Mul(ratio))
				lot.Quantity = &newQuantity
			}
			lot.AmountInvested = lot.AmountInvested.Sub(remaining)
			remaining = decimal.Zero
			kept = append(kept, lot)
			continue
		}

		// Lot fully consumed, drop it from the active set
		remaining = remaining.Sub(lot.AmountInvested)
	}
	s.lots = kept

	s.balance = s.balance.Add(sellAmount)
	s.appendTransaction(domain.TransactionSell, sellAmount, assetKey, memo)
	s.persistLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.emit("sell", assetKey, sellAmount)
	return snapshot, nil
}

// PricedAssetKeys returns the asset keys of priced (market-quoted) lots,
// deduplicated. Plan and real-estate lots are excluded; their keys must never
// reach the quote source.
func (s *Service) PricedAssetKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var keys []string
	for i := range s.lots {
		lot := &s.lots[i]
		if lot.PlanKind != domain.PlanNone || !lot.Priced() {
			continue
		}
		if !seen[lot.AssetKey] {
			seen[lot.AssetKey] = true
			keys = append(keys, lot.AssetKey)
		}
	}
	return keys
}

// SeedDemo populates an empty ledger with a small demo state: an opening
// deposit and a couple of example positions. No-op when any state exists.
func (s *Service) SeedDemo() {
	s.mu.Lock()
	alreadySeeded := !s.balance.IsZero() || len(s.lots) > 0 || len(s.transactions) > 0
	s.mu.Unlock()
	if alreadySeeded {
		return
	}

	if _, err := s.Deposit(decimal.NewFromInt(10000)); err != nil {
		s.log.Warn().Err(err).Msg("Demo seed deposit failed")
		return
	}
	btcPrice := decimal.NewFromInt(60000)
	if _, err := s.Buy("bitcoin", decimal.NewFromInt(1500), &btcPrice); err != nil {
		s.log.Warn().Err(err).Msg("Demo seed buy failed")
	}
	if _, err := s.PlanInvest("Growth Plan", decimal.NewFromInt(2000), domain.PlanCapital, 12, decimal.NewFromFloat(5.5)); err != nil {
		s.log.Warn().Err(err).Msg("Demo seed plan failed")
	}

	s.log.Info().Msg("Seeded demo ledger state")
}

// appendTransaction records one audit entry. Caller holds the mutex.
func (s *Service) appendTransaction(kind domain.TransactionKind, amount decimal.Decimal, assetKey, memo string) {
	s.transactions = append(s.transactions, domain.Transaction{
		ID:         uuid.New().String(),
		Kind:       kind,
		Amount:     amount,
		AssetKey:   assetKey,
		Memo:       memo,
		OccurredAt: s.now(),
	})
}

// deductBalanceLocked subtracts up to amount from the balance, flooring at
// zero, and returns the amount actually deducted. Caller holds the mutex.
func (s *Service) deductBalanceLocked(amount decimal.Decimal) decimal.Decimal {
	deducted := decimal.Min(amount, s.balance)
	s.balance = s.balance.Sub(deducted)
	return deducted
}

// persistLocked writes the full snapshot through the store. Failures are
// logged and swallowed: the in-memory state stays authoritative for the rest
// of the session. Caller holds the mutex.
func (s *Service) persistLocked() {
	if err := s.store.SaveSnapshot(s.balance, s.lots, s.transactions); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist ledger snapshot")
	}
}

// snapshotLocked deep-copies the current state. Caller holds the mutex.
func (s *Service) snapshotLocked() domain.LedgerSnapshot {
	lots := make([]domain.Lot, len(s.lots))
	for i, lot := range s.lots {
		if lot.Quantity != nil {
			q := *lot.Quantity
			lot.Quantity = &q
		}
		if lot.PriceAtPurchase != nil {
			p := *lot.PriceAtPurchase
			lot.PriceAtPurchase = &p
		}
		lots[i] = lot
	}

	transactions := make([]domain.Transaction, len(s.transactions))
	copy(transactions, s.transactions)

	return domain.LedgerSnapshot{
		Balance:      s.balance,
		Lots:         lots,
		Transactions: transactions,
	}
}

// emit notifies subscribers of a completed mutation. Must be called without
// holding the mutex: handlers may read the snapshot back.
func (s *Service) emit(operation, assetKey string, amount decimal.Decimal) {
	if s.eventManager == nil {
		return
	}
	data := map[string]interface{}{
		"operation": operation,
		"amount":    amount.String(),
	}
	if assetKey != "" {
		data["asset_key"] = assetKey
	}
	s.eventManager.Emit(events.LedgerChanged, "ledger", data)
}
