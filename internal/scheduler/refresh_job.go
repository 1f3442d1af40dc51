package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkarath/folio/internal/events"
	"github.com/mkarath/folio/internal/modules/pricing"
)

// HeldAssetSource reports the asset keys of market-priced holdings
type HeldAssetSource interface {
	PricedAssetKeys() []string
}

// RefreshJob fetches fresh quotes for the baseline symbols plus every asset
// currently held, and merges them into the cache.
type RefreshJob struct {
	client       *pricing.Client
	cache        *pricing.Cache
	held         HeldAssetSource
	baseline     []string
	eventManager *events.Manager
	timeout      time.Duration
	log          zerolog.Logger
}

// NewRefreshJob creates a new quote refresh job
func NewRefreshJob(
	client *pricing.Client,
	cache *pricing.Cache,
	held HeldAssetSource,
	baseline []string,
	eventManager *events.Manager,
	log zerolog.Logger,
) *RefreshJob {
	return &RefreshJob{
		client:       client,
		cache:        cache,
		held:         held,
		baseline:     baseline,
		eventManager: eventManager,
		timeout:      45 * time.Second,
		log:          log.With().Str("job", "quote_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "quote_refresh"
}

// Run fetches and caches a fresh batch of quotes. A failed fetch leaves the
// cache untouched; stale quotes keep serving until the next successful run.
func (j *RefreshJob) Run() error {
	symbols := j.symbols()
	if len(symbols) == 0 {
		j.log.Debug().Msg("No symbols to refresh")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	quotes, err := j.client.GetBatchQuotes(ctx, symbols)
	if err != nil {
		if j.eventManager != nil {
			j.eventManager.EmitError("pricing", err, map[string]interface{}{
				"requested": len(symbols),
			})
		}
		return err
	}

	j.cache.SetBatch(quotes)

	j.log.Info().
		Int("requested", len(symbols)).
		Int("received", len(quotes)).
		Msg("Quotes refreshed")

	if j.eventManager != nil {
		j.eventManager.Emit(events.PricesRefreshed, "pricing", map[string]interface{}{
			"requested": len(symbols),
			"received":  len(quotes),
		})
	}

	return nil
}

// symbols merges the baseline symbols with the held asset keys, deduplicated
// and sorted for a stable request shape.
func (j *RefreshJob) symbols() []string {
	seen := make(map[string]struct{}, len(j.baseline))
	symbols := make([]string, 0, len(j.baseline))

	for _, symbol := range j.baseline {
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	if j.held != nil {
		for _, symbol := range j.held.PricedAssetKeys() {
			if _, ok := seen[symbol]; ok {
				continue
			}
			seen[symbol] = struct{}{}
			symbols = append(symbols, symbol)
		}
	}

	sort.Strings(symbols)
	return symbols
}
