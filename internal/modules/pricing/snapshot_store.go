package pricing

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mkarath/folio/internal/database"
	"github.com/mkarath/folio/internal/domain"
)

// SnapshotStore persists the whole quote cache as one msgpack blob in the
// cache-profile database. The snapshot is ephemeral data: corruption or loss
// only costs a cold cache until the next refresh tick.
type SnapshotStore struct {
	db *database.DB
}

// NewSnapshotStore creates a new quote snapshot store
func NewSnapshotStore(db *database.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// cachedQuote is the wire shape for persisted quotes. Prices travel as strings
// so decimal precision survives the round trip.
type cachedQuote struct {
	AssetKey  string   `msgpack:"asset_key"`
	Price     string   `msgpack:"price"`
	Change24h *float64 `msgpack:"change_24h,omitempty"`
	Change7d  *float64 `msgpack:"change_7d,omitempty"`
	Change30d *float64 `msgpack:"change_30d,omitempty"`
	FetchedAt int64    `msgpack:"fetched_at"` // Unix seconds
}

// Save overwrites the persisted snapshot with the given quotes
func (s *SnapshotStore) Save(quotes map[string]domain.Quote) error {
	cached := make([]cachedQuote, 0, len(quotes))
	for _, quote := range quotes {
		cached = append(cached, cachedQuote{
			AssetKey:  quote.AssetKey,
			Price:     quote.Price.String(),
			Change24h: quote.Change24h,
			Change7d:  quote.Change7d,
			Change30d: quote.Change30d,
			FetchedAt: quote.FetchedAt.Unix(),
		})
	}

	payload, err := msgpack.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to encode quote snapshot: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO quote_snapshot (id, payload, updated_at)
		VALUES (1, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		payload)
	if err != nil {
		return fmt.Errorf("failed to write quote snapshot: %w", err)
	}

	return nil
}

// Load returns the persisted snapshot, or an empty map when none exists.
// A corrupt snapshot is reported as an error so the caller can log and start cold.
func (s *SnapshotStore) Load() (map[string]domain.Quote, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM quote_snapshot WHERE id = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]domain.Quote{}, nil
		}
		return nil, fmt.Errorf("failed to read quote snapshot: %w", err)
	}

	var cached []cachedQuote
	if err := msgpack.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode quote snapshot: %w", err)
	}

	quotes := make(map[string]domain.Quote, len(cached))
	for _, cq := range cached {
		price, err := decimal.NewFromString(cq.Price)
		if err != nil {
			// Skip the one bad entry rather than dropping the whole snapshot
			continue
		}
		quotes[cq.AssetKey] = domain.Quote{
			AssetKey:  cq.AssetKey,
			Price:     price,
			Change24h: cq.Change24h,
			Change7d:  cq.Change7d,
			Change30d: cq.Change30d,
			FetchedAt: time.Unix(cq.FetchedAt, 0),
		}
	}

	return quotes, nil
}
