package ledger

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarath/folio/internal/database"
	"github.com/mkarath/folio/internal/domain"
)

// mockQuoteProvider serves quotes from a fixed map
type mockQuoteProvider struct {
	quotes map[string]domain.Quote
}

func (m *mockQuoteProvider) Get(assetKey string) *domain.Quote {
	if q, ok := m.quotes[assetKey]; ok {
		return &q
	}
	return nil
}

func (m *mockQuoteProvider) GetAll() map[string]domain.Quote {
	return m.quotes
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestService(t *testing.T, quotes domain.QuoteProvider) *Service {
	t.Helper()
	store := NewStore(setupTestDB(t), zerolog.Nop())
	return NewService(store, quotes, nil, zerolog.Nop())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeposit(t *testing.T) {
	service := setupTestService(t, nil)

	snapshot, err := service.Deposit(dec("1000"))
	require.NoError(t, err)

	assert.True(t, snapshot.Balance.Equal(dec("1000")))
	require.Len(t, snapshot.Transactions, 1)
	assert.Equal(t, domain.TransactionDeposit, snapshot.Transactions[0].Kind)
	assert.True(t, snapshot.Transactions[0].Amount.Equal(dec("1000")))
}

func TestDeposit_InvalidAmount(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = service.Deposit(dec("-5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// State untouched
	snapshot := service.Snapshot()
	assert.True(t, snapshot.Balance.IsZero())
	assert.Empty(t, snapshot.Transactions)
}

func TestWithdraw(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("1000"))
	require.NoError(t, err)

	snapshot, err := service.Withdraw(dec("400"))
	require.NoError(t, err)

	assert.True(t, snapshot.Balance.Equal(dec("600")))
	require.Len(t, snapshot.Transactions, 2)
	assert.Equal(t, domain.TransactionWithdraw, snapshot.Transactions[1].Kind)
	assert.Empty(t, snapshot.Transactions[1].Memo)
}

func TestWithdraw_ClampsToBalance(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("100"))
	require.NoError(t, err)

	snapshot, err := service.Withdraw(dec("250"))
	require.NoError(t, err)

	// Balance floors at zero and the recorded amount is what actually moved
	assert.True(t, snapshot.Balance.IsZero())
	last := snapshot.Transactions[len(snapshot.Transactions)-1]
	assert.True(t, last.Amount.Equal(dec("100")))
	assert.Contains(t, last.Memo, "requested 250")
}

func TestBuy_WithPriceHint(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("5000"))
	require.NoError(t, err)

	price := dec("50000")
	snapshot, err := service.Buy("bitcoin", dec("1500"), &price)
	require.NoError(t, err)

	assert.True(t, snapshot.Balance.Equal(dec("3500")))
	require.Len(t, snapshot.Lots, 1)

	lot := snapshot.Lots[0]
	assert.Equal(t, "bitcoin", lot.AssetKey)
	assert.True(t, lot.AmountInvested.Equal(dec("1500")))
	require.True(t, lot.Priced())
	assert.True(t, lot.Quantity.Equal(dec("0.03")))
	assert.True(t, lot.PriceAtPurchase.Equal(dec("50000")))
}

func TestBuy_PriceFromQuoteCache(t *testing.T) {
	quotes := &mockQuoteProvider{quotes: map[string]domain.Quote{
		"ethereum": {AssetKey: "ethereum", Price: dec("2000")},
	}}
	service := setupTestService(t, quotes)

	_, err := service.Deposit(dec("1000"))
	require.NoError(t, err)

	snapshot, err := service.Buy("ethereum", dec("500"), nil)
	require.NoError(t, err)

	require.Len(t, snapshot.Lots, 1)
	require.True(t, snapshot.Lots[0].Priced())
	assert.True(t, snapshot.Lots[0].Quantity.Equal(dec("0.25")))
}

func TestBuy_NoPriceTracksAtCost(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("1000"))
	require.NoError(t, err)

	snapshot, err := service.Buy("obscure-token", dec("300"), nil)
	require.NoError(t, err)

	require.Len(t, snapshot.Lots, 1)
	lot := snapshot.Lots[0]
	assert.False(t, lot.Priced())
	assert.Nil(t, lot.Quantity)
	assert.True(t, lot.AmountInvested.Equal(dec("300")))
}

func TestBuy_BalanceFloorsAtZero(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("100"))
	require.NoError(t, err)

	snapshot, err := service.Buy("bitcoin", dec("500"), nil)
	require.NoError(t, err)

	assert.True(t, snapshot.Balance.IsZero())
	require.Len(t, snapshot.Lots, 1)
	assert.True(t, snapshot.Lots[0].AmountInvested.Equal(dec("500")))
}

func TestBuy_Validation(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Buy("", dec("100"), nil)
	assert.ErrorIs(t, err, ErrMissingAsset)

	_, err = service.Buy("bitcoin", decimal.Zero, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPlanInvest(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("5000"))
	require.NoError(t, err)

	snapshot, err := service.PlanInvest("Growth Plan", dec("2000"), domain.PlanCapital, 12, dec("5.5"))
	require.NoError(t, err)

	assert.True(t, snapshot.Balance.Equal(dec("3000")))
	require.Len(t, snapshot.Lots, 1)

	lot := snapshot.Lots[0]
	assert.Equal(t, domain.PlanCapital, lot.PlanKind)
	assert.Equal(t, 12, lot.TermMonths)
	assert.True(t, lot.RatePct.Equal(dec("5.5")))
	assert.False(t, lot.Priced())
}

func TestPlanInvest_Validation(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.PlanInvest("Plan", dec("100"), domain.PlanKind("bogus"), 12, dec("5"))
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = service.PlanInvest("Plan", dec("100"), domain.PlanCapital, 0, dec("5"))
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = service.PlanInvest("Plan", dec("100"), domain.PlanCapital, 12, dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = service.PlanInvest("", dec("100"), domain.PlanCapital, 12, dec("5"))
	assert.ErrorIs(t, err, ErrMissingAsset)
}

func TestSell_FIFODepletion(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("1000"))
	require.NoError(t, err)

	price := dec("10")
	for _, amount := range []string{"100", "200", "300"} {
		_, err = service.Buy("bitcoin", dec(amount), &price)
		require.NoError(t, err)
	}

	// 150 consumes the 100 lot fully and 50 of the 200 lot
	snapshot, err := service.Sell("bitcoin", dec("150"))
	require.NoError(t, err)

	require.Len(t, snapshot.Lots, 2)
	assert.True(t, snapshot.Lots[0].AmountInvested.Equal(dec("150")))
	assert.True(t, snapshot.Lots[1].AmountInvested.Equal(dec("300")))

	// Partial lot quantity shrinks proportionally: 20 - 20*(50/200) = 15
	require.True(t, snapshot.Lots[0].Priced())
	assert.True(t, snapshot.Lots[0].Quantity.Equal(dec("15")))

	// Proceeds return to the balance: 1000 - 600 + 150
	assert.True(t, snapshot.Balance.Equal(dec("550")))
}

func TestSell_ClampsToHoldings(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("500"))
	require.NoError(t, err)
	_, err = service.Buy("bitcoin", dec("200"), nil)
	require.NoError(t, err)

	snapshot, err := service.Sell("bitcoin", dec("9999"))
	require.NoError(t, err)

	assert.Empty(t, snapshot.Lots)
	assert.True(t, snapshot.Balance.Equal(dec("500")))

	last := snapshot.Transactions[len(snapshot.Transactions)-1]
	assert.True(t, last.Amount.Equal(dec("200")))
	assert.Contains(t, last.Memo, "clamped to holdings")
}

func TestSell_NoHoldings(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Sell("bitcoin", dec("100"))
	assert.ErrorIs(t, err, ErrNoHoldings)
}

func TestSell_OnlyTargetAssetDepleted(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("1000"))
	require.NoError(t, err)
	_, err = service.Buy("bitcoin", dec("100"), nil)
	require.NoError(t, err)
	_, err = service.Buy("ethereum", dec("200"), nil)
	require.NoError(t, err)
	_, err = service.Buy("bitcoin", dec("300"), nil)
	require.NoError(t, err)

	snapshot, err := service.Sell("bitcoin", dec("350"))
	require.NoError(t, err)

	// Ethereum untouched, 50 of the second bitcoin lot remains
	require.Len(t, snapshot.Lots, 2)
	assert.Equal(t, "ethereum", snapshot.Lots[0].AssetKey)
	assert.True(t, snapshot.Lots[0].AmountInvested.Equal(dec("200")))
	assert.Equal(t, "bitcoin", snapshot.Lots[1].AssetKey)
	assert.True(t, snapshot.Lots[1].AmountInvested.Equal(dec("50")))
}

func TestTransactionReconciliation(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("1000"))
	require.NoError(t, err)
	_, err = service.Buy("bitcoin", dec("400"), nil)
	require.NoError(t, err)
	_, err = service.Withdraw(dec("100"))
	require.NoError(t, err)
	snapshot, err := service.Sell("bitcoin", dec("150"))
	require.NoError(t, err)

	// Replaying the audit trail reproduces the balance exactly
	replayed := decimal.Zero
	for _, tx := range snapshot.Transactions {
		switch tx.Kind {
		case domain.TransactionDeposit, domain.TransactionSell:
			replayed = replayed.Add(tx.Amount)
		case domain.TransactionWithdraw, domain.TransactionInvest:
			replayed = replayed.Sub(tx.Amount)
		}
	}

	assert.True(t, snapshot.Balance.Equal(replayed),
		"balance %s != replayed %s", snapshot.Balance, replayed)
}

func TestTransactionReconciliation_ClampedBuy(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("100"))
	require.NoError(t, err)
	snapshot, err := service.Buy("bitcoin", dec("500"), nil)
	require.NoError(t, err)

	// The invest transaction records the 100 actually deducted, not 500
	last := snapshot.Transactions[len(snapshot.Transactions)-1]
	assert.Equal(t, domain.TransactionInvest, last.Kind)
	assert.True(t, last.Amount.Equal(dec("100")))
	assert.Contains(t, last.Memo, "requested 500")

	snapshot, err = service.Sell("bitcoin", dec("500"))
	require.NoError(t, err)

	replayed := decimal.Zero
	for _, tx := range snapshot.Transactions {
		switch tx.Kind {
		case domain.TransactionDeposit, domain.TransactionSell:
			replayed = replayed.Add(tx.Amount)
		case domain.TransactionWithdraw, domain.TransactionInvest:
			replayed = replayed.Sub(tx.Amount)
		}
	}

	assert.True(t, snapshot.Balance.Equal(replayed),
		"balance %s != replayed %s", snapshot.Balance, replayed)
}

func TestPlanInvest_ClampedRecordsDeducted(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("1500"))
	require.NoError(t, err)
	snapshot, err := service.PlanInvest("Growth Plan", dec("2000"), domain.PlanCapital, 12, dec("5.5"))
	require.NoError(t, err)

	assert.True(t, snapshot.Balance.IsZero())

	last := snapshot.Transactions[len(snapshot.Transactions)-1]
	assert.True(t, last.Amount.Equal(dec("1500")))
	assert.Contains(t, last.Memo, string(domain.PlanCapital))
	assert.Contains(t, last.Memo, "requested 2000")
}

func TestPersistenceAcrossRestart(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db, zerolog.Nop())

	service := NewService(store, nil, nil, zerolog.Nop())
	_, err := service.Deposit(dec("1000"))
	require.NoError(t, err)
	price := dec("100")
	_, err = service.Buy("bitcoin", dec("250"), &price)
	require.NoError(t, err)

	// New engine over the same store picks up where the old one stopped
	restarted := NewService(store, nil, nil, zerolog.Nop())
	snapshot := restarted.Snapshot()

	assert.True(t, snapshot.Balance.Equal(dec("750")))
	require.Len(t, snapshot.Lots, 1)
	assert.Equal(t, "bitcoin", snapshot.Lots[0].AssetKey)
	require.True(t, snapshot.Lots[0].Priced())
	assert.True(t, snapshot.Lots[0].Quantity.Equal(dec("2.5")))
	require.Len(t, snapshot.Transactions, 2)
}

func TestPricedAssetKeys(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("5000"))
	require.NoError(t, err)

	price := dec("10")
	_, err = service.Buy("bitcoin", dec("100"), &price)
	require.NoError(t, err)
	_, err = service.Buy("bitcoin", dec("100"), &price)
	require.NoError(t, err)
	_, err = service.Buy("ethereum", dec("100"), &price)
	require.NoError(t, err)
	_, err = service.Buy("unknown-token", dec("100"), nil)
	require.NoError(t, err)
	_, err = service.PlanInvest("Growth Plan", dec("100"), domain.PlanCapital, 12, dec("5"))
	require.NoError(t, err)

	keys := service.PricedAssetKeys()
	assert.ElementsMatch(t, []string{"bitcoin", "ethereum"}, keys)
}

func TestSeedDemo(t *testing.T) {
	service := setupTestService(t, nil)

	service.SeedDemo()
	snapshot := service.Snapshot()
	assert.Len(t, snapshot.Lots, 2)
	assert.Len(t, snapshot.Transactions, 3)

	// Seeding again is a no-op
	service.SeedDemo()
	assert.Len(t, service.Snapshot().Transactions, 3)
}

func TestSnapshotIsACopy(t *testing.T) {
	service := setupTestService(t, nil)

	_, err := service.Deposit(dec("1000"))
	require.NoError(t, err)
	price := dec("10")
	_, err = service.Buy("bitcoin", dec("100"), &price)
	require.NoError(t, err)

	snapshot := service.Snapshot()
	mutated := dec("999999")
	*snapshot.Lots[0].Quantity = mutated
	snapshot.Lots[0].AmountInvested = mutated

	fresh := service.Snapshot()
	assert.True(t, fresh.Lots[0].AmountInvested.Equal(dec("100")))
	assert.True(t, fresh.Lots[0].Quantity.Equal(dec("10")))
}
