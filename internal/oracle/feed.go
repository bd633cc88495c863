/*
This file implements the HTTP price-feed provider. Feeds are queried with
retries and every observation is strictly validated before it is served to the
vault: prices backing mints and redeems must never be guessed, defaulted, or
silently carried forward.
*/

package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/logger"
	"github.com/meridian-money/svm/internal/types"
)

var feedLogger = logger.GetForComponent("price_feed")

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 10
	RETRY_BACKOFF   = 500 * time.Millisecond
)

// feedResponse is the wire format served by the price feed endpoint.
type feedResponse struct {
	Asset     string `json:"asset"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// FeedProvider fetches prices from an HTTP price feed and caches the last
// validated quote per asset.
type FeedProvider struct {
	baseURL string
	client  *http.Client
	refresh time.Duration

	mu    sync.Mutex
	cache map[types.AssetID]PriceQuote
	now   func() time.Time
}

// NewFeedProvider creates a provider for the given feed base URL. refresh is
// how long a fetched quote is served before the feed is queried again.
func NewFeedProvider(baseURL string, refresh time.Duration) (*FeedProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: feed base URL is required", ErrInvalidPrice)
	}
	if refresh <= 0 {
		return nil, fmt.Errorf("%w: refresh interval must be positive", ErrInvalidPrice)
	}
	return &FeedProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: TIMEOUT_SECONDS * time.Second},
		refresh: refresh,
		cache:   make(map[types.AssetID]PriceQuote),
		now:     time.Now,
	}, nil
}

// Price implements PriceProvider. A cached quote younger than the refresh
// interval is served directly; otherwise the feed is queried with retries.
func (p *FeedProvider) Price(asset types.AssetID) (PriceQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quote, ok := p.cache[asset]; ok && p.now().Sub(quote.Time) < p.refresh {
		return quote, nil
	}

	quote, err := p.fetchWithRetries(asset)
	if err != nil {
		return PriceQuote{}, err
	}
	p.cache[asset] = quote
	return quote, nil
}

func (p *FeedProvider) fetchWithRetries(asset types.AssetID) (PriceQuote, error) {
	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		quote, err := p.fetchOnce(asset)
		if err == nil {
			return quote, nil
		}
		lastErr = err
		feedLogger.Warn().
			Err(err).
			Str("asset", string(asset)).
			Int("attempt", attempt).
			Msg("Price feed request failed")
		if attempt < MAX_RETRIES {
			time.Sleep(RETRY_BACKOFF * time.Duration(attempt))
		}
	}
	return PriceQuote{}, fmt.Errorf("%w: %s after %d attempts: %w", ErrPriceUnavailable, asset, MAX_RETRIES, lastErr)
}

func (p *FeedProvider) fetchOnce(asset types.AssetID) (PriceQuote, error) {
	endpoint := fmt.Sprintf("%s/price?asset=%s", p.baseURL, url.QueryEscape(string(asset)))
	resp, err := p.client.Get(endpoint)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PriceQuote{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return PriceQuote{}, fmt.Errorf("failed to read feed response: %w", err)
	}

	var payload feedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return PriceQuote{}, fmt.Errorf("failed to decode feed response: %w", err)
	}

	return validateFeedPayload(asset, payload)
}

// validateFeedPayload performs strict validation on a feed observation.
func validateFeedPayload(asset types.AssetID, payload feedResponse) (PriceQuote, error) {
	if payload.Asset != string(asset) {
		return PriceQuote{}, fmt.Errorf("%w: feed answered for %q, asked for %q", ErrInvalidPrice, payload.Asset, asset)
	}
	if payload.Timestamp <= 0 {
		return PriceQuote{}, fmt.Errorf("%w: invalid timestamp %d for %s", ErrInvalidPrice, payload.Timestamp, asset)
	}

	price, err := sdkmath.LegacyNewDecFromStr(payload.Price)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("%w: unparseable price %q for %s: %w", ErrInvalidPrice, payload.Price, asset, err)
	}
	if !price.IsPositive() {
		return PriceQuote{}, fmt.Errorf("%w: non-positive price %s for %s", ErrInvalidPrice, price, asset)
	}

	quote := PriceQuote{Price: price, Time: time.Unix(payload.Timestamp, 0)}
	if err := validateQuote(quote); err != nil {
		return PriceQuote{}, err
	}
	return quote, nil
}
