package ledger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarath/folio/internal/domain"
)

func TestStore_SaveAndLoad(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	balance := decimal.RequireFromString("123.45")
	require.NoError(t, store.Save(KeyBalance, balance))

	var loaded decimal.Decimal
	require.True(t, store.Load(KeyBalance, &loaded))
	assert.True(t, loaded.Equal(balance))
}

func TestStore_LoadMissingKey(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	var out decimal.Decimal
	assert.False(t, store.Load(KeyBalance, &out))
}

func TestStore_LoadCorruptValue(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db, zerolog.Nop())

	_, err := db.Exec(`INSERT INTO ledger_state (key, value, updated_at) VALUES (?, ?, '')`,
		KeyLots, "{not valid json")
	require.NoError(t, err)

	// Corrupt rows read as absent so the engine falls back to empty state
	var lots []domain.Lot
	assert.False(t, store.Load(KeyLots, &lots))
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	require.NoError(t, store.Save(KeyBalance, decimal.NewFromInt(100)))
	require.NoError(t, store.Save(KeyBalance, decimal.NewFromInt(200)))

	var loaded decimal.Decimal
	require.True(t, store.Load(KeyBalance, &loaded))
	assert.True(t, loaded.Equal(decimal.NewFromInt(200)))
}

func TestStore_SaveSnapshot(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	quantity := decimal.NewFromInt(2)
	price := decimal.NewFromInt(50)
	lots := []domain.Lot{{
		ID:              "lot-1",
		AssetKey:        "bitcoin",
		AmountInvested:  decimal.NewFromInt(100),
		Quantity:        &quantity,
		PriceAtPurchase: &price,
	}}
	transactions := []domain.Transaction{{
		ID:     "tx-1",
		Kind:   domain.TransactionDeposit,
		Amount: decimal.NewFromInt(100),
	}}

	require.NoError(t, store.SaveSnapshot(decimal.NewFromInt(500), lots, transactions))

	var balance decimal.Decimal
	require.True(t, store.Load(KeyBalance, &balance))
	assert.True(t, balance.Equal(decimal.NewFromInt(500)))

	var loadedLots []domain.Lot
	require.True(t, store.Load(KeyLots, &loadedLots))
	require.Len(t, loadedLots, 1)
	assert.Equal(t, "bitcoin", loadedLots[0].AssetKey)
	require.NotNil(t, loadedLots[0].Quantity)
	assert.True(t, loadedLots[0].Quantity.Equal(quantity))

	var loadedTxs []domain.Transaction
	require.True(t, store.Load(KeyTransactions, &loadedTxs))
	require.Len(t, loadedTxs, 1)
	assert.Equal(t, domain.TransactionDeposit, loadedTxs[0].Kind)
}
