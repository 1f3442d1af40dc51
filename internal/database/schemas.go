package database

// schemas maps database names to their embedded schema DDL.
// Every statement must be idempotent (IF NOT EXISTS) so Migrate can run on
// every startup.
var schemas = map[string]string{
	"ledger":     ledgerSchema,
	"pricecache": priceCacheSchema,
}

// ledgerSchema holds the durable ledger state: a key-scoped JSON document store.
// The ledger engine persists whole snapshots under fixed keys (balance, lots,
// transactions) rather than normalized rows; the in-memory engine is the single
// writer and always rewrites complete values.
const ledgerSchema = `
CREATE TABLE IF NOT EXISTS ledger_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`

// priceCacheSchema holds the warm-start snapshot of the in-memory price cache,
// one msgpack blob per row. Losing this file costs nothing but a cold cache.
const priceCacheSchema = `
CREATE TABLE IF NOT EXISTS quote_snapshot (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    payload    BLOB NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`
