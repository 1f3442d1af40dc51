package domain

// QuoteProvider defines read access to cached market quotes.
// This interface breaks the dependency between the ledger/valuation modules
// and the pricing module: mutation stays with the refresh scheduler, readers
// only ever see the latest cached value (possibly stale or missing).
type QuoteProvider interface {
	// Get returns the latest cached quote for the asset key, or nil when no
	// quote has ever been fetched for it (not an error)
	Get(assetKey string) *Quote

	// GetAll returns all cached quotes keyed by asset key
	GetAll() map[string]Quote
}

// LedgerReader defines read access to the current ledger state.
// Used by the valuation handlers and the refresh scheduler, which must never
// mutate ledger state directly.
type LedgerReader interface {
	Snapshot() LedgerSnapshot
}
