// Package pricing provides the market quote cache and the quote source client.
package pricing

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mkarath/folio/internal/domain"
)

// Cache holds the latest known quote per asset symbol. It is a pure lookup
// table: the refresh scheduler is its only writer, everything else reads.
// Last writer wins per symbol; a failed fetch never clears existing entries.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	store  *SnapshotStore // optional warm-start persistence, may be nil
	log    zerolog.Logger
}

// NewCache creates a new quote cache
func NewCache(store *SnapshotStore, log zerolog.Logger) *Cache {
	return &Cache{
		quotes: make(map[string]domain.Quote),
		store:  store,
		log:    log.With().Str("component", "price_cache").Logger(),
	}
}

// WarmStart loads the last persisted quote snapshot so a restart shows
// stale-but-present prices instead of an empty dashboard.
func (c *Cache) WarmStart() {
	if c.store == nil {
		return
	}

	quotes, err := c.store.Load()
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to load quote snapshot, starting cold")
		return
	}
	if len(quotes) == 0 {
		return
	}

	c.mu.Lock()
	for key, quote := range quotes {
		c.quotes[key] = quote
	}
	c.mu.Unlock()

	c.log.Info().Int("quotes", len(quotes)).Msg("Price cache warm-started from snapshot")
}

// Get returns the latest cached quote for the asset key, or nil when no quote
// has ever been fetched for it.
func (c *Cache) Get(assetKey string) *domain.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quote, ok := c.quotes[assetKey]
	if !ok {
		return nil
	}
	return &quote
}

// GetAll returns a copy of all cached quotes keyed by asset key
func (c *Cache) GetAll() map[string]domain.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quotes := make(map[string]domain.Quote, len(c.quotes))
	for key, quote := range c.quotes {
		quotes[key] = quote
	}
	return quotes
}

// SetBatch merges a fetched quote batch into the cache, last writer wins per
// symbol. Symbols missing from the batch keep their previous values.
func (c *Cache) SetBatch(quotes map[string]domain.Quote) {
	if len(quotes) == 0 {
		return
	}

	c.mu.Lock()
	for key, quote := range quotes {
		c.quotes[key] = quote
	}
	snapshot := make(map[string]domain.Quote, len(c.quotes))
	for key, quote := range c.quotes {
		snapshot[key] = quote
	}
	c.mu.Unlock()

	// Persistence is best-effort: the cache stays authoritative in memory
	if c.store != nil {
		if err := c.store.Save(snapshot); err != nil {
			c.log.Warn().Err(err).Msg("Failed to persist quote snapshot")
		}
	}
}

// Len returns the number of cached symbols
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
