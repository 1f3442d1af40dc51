// Package ledger provides the investment ledger engine and its durable store.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mkarath/folio/internal/database"
)

// Store keys for the persisted ledger state
const (
	KeyBalance      = "balance"
	KeyLots         = "lots"
	KeyTransactions = "transactions"
)

// Store is a key-scoped JSON document store over the ledger database.
// Reads treat missing or corrupt values as absent, never as fatal; writes are
// best-effort and the in-memory engine stays authoritative when they fail.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a new ledger store
func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("store", "ledger").Logger(),
	}
}

// Load unmarshals the value stored under key into out and reports whether a
// usable value was found. Corrupt rows are logged and reported as absent so
// the caller falls back to its default.
func (s *Store) Load(key string, out interface{}) bool {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM ledger_state WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to read ledger state")
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Corrupt ledger state, treating as absent")
		return false
	}

	return true
}

// Save writes one value under key. Errors are returned for the caller to log
// and swallow; they never propagate past the engine boundary.
func (s *Store) Save(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.db.Exec(`INSERT INTO ledger_state (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

// SaveSnapshot persists balance, lots and transactions atomically. Either the
// whole new snapshot lands on disk or the previous one stays intact.
func (s *Store) SaveSnapshot(balance, lots, transactions interface{}) error {
	encoded := make(map[string]string, 3)
	for key, value := range map[string]interface{}{
		KeyBalance:      balance,
		KeyLots:         lots,
		KeyTransactions: transactions,
	} {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		encoded[key] = string(raw)
	}

	return database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		for key, raw := range encoded {
			_, err := tx.Exec(`INSERT INTO ledger_state (key, value, updated_at)
				VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				key, raw)
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
		return nil
	})
}
