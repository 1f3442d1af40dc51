package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mkarath/folio/internal/domain"
)

// Client fetches market quotes from a CoinGecko-compatible markets endpoint.
// The source is best-effort: individual symbols it cannot price are simply
// omitted from the result, and a whole-batch failure is returned to the caller
// so the cache can keep its stale entries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new quote client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "quotes").Logger(),
	}
}

// marketQuote is the wire shape of one entry in the markets response
type marketQuote struct {
	ID        string   `json:"id"`
	Price     float64  `json:"current_price"`
	Change24h *float64 `json:"price_change_percentage_24h_in_currency"`
	Change7d  *float64 `json:"price_change_percentage_7d_in_currency"`
	Change30d *float64 `json:"price_change_percentage_30d_in_currency"`
}

// GetBatchQuotes fetches the latest quotes for the given symbols in a single
// request. The returned map is keyed by symbol and omits symbols the source
// could not price.
func (c *Client) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("ids", strings.Join(symbols, ","))
	params.Set("price_change_percentage", "24h,7d,30d")

	endpoint := fmt.Sprintf("%s/coins/markets?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote source returned status %d", resp.StatusCode)
	}

	var results []marketQuote
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	now := time.Now()
	quotes := make(map[string]domain.Quote, len(results))
	for _, r := range results {
		if r.ID == "" || r.Price <= 0 {
			continue
		}
		quotes[r.ID] = domain.Quote{
			AssetKey:  r.ID,
			Price:     decimal.NewFromFloat(r.Price),
			Change24h: r.Change24h,
			Change7d:  r.Change7d,
			Change30d: r.Change30d,
			FetchedAt: now,
		}
	}

	c.log.Debug().
		Int("requested", len(symbols)).
		Int("priced", len(quotes)).
		Msg("Fetched quote batch")

	return quotes, nil
}
