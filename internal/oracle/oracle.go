/*

PriceProvider is the query interface the vault consumes for converting asset
amounts into the unit of account. The vault never substitutes a guessed price:
a provider either returns a validated quote or an error.

*/

package oracle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/types"
)

var (
	ErrPriceUnavailable = errors.New("no price available for asset")
	ErrInvalidPrice     = errors.New("invalid price data received")
)

// PriceQuote is one validated oracle observation.
type PriceQuote struct {
	// Price is the unit-of-account value of one whole asset.
	Price sdkmath.LegacyDec `json:"price"`
	// Time is when the observation was made, used for staleness checks.
	Time time.Time `json:"time"`
}

// PriceProvider exposes oracle prices to the vault.
type PriceProvider interface {
	// Price returns the current quote for the asset.
	Price(asset types.AssetID) (PriceQuote, error)
}

// FixedProvider serves governance-set prices from memory. It backs tests and
// the bootstrap path before a feed is configured.
type FixedProvider struct {
	mu     sync.RWMutex
	quotes map[types.AssetID]PriceQuote
	now    func() time.Time
}

// NewFixedProvider creates an empty fixed provider.
func NewFixedProvider() *FixedProvider {
	return &FixedProvider{
		quotes: make(map[types.AssetID]PriceQuote),
		now:    time.Now,
	}
}

// SetPrice records a price observed now.
func (p *FixedProvider) SetPrice(asset types.AssetID, price sdkmath.LegacyDec) error {
	return p.SetQuote(asset, PriceQuote{Price: price, Time: p.now()})
}

// SetQuote records a fully specified quote, including its observation time.
func (p *FixedProvider) SetQuote(asset types.AssetID, quote PriceQuote) error {
	if err := validateQuote(quote); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[asset] = quote
	return nil
}

// Price implements PriceProvider.
func (p *FixedProvider) Price(asset types.AssetID) (PriceQuote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	quote, ok := p.quotes[asset]
	if !ok {
		return PriceQuote{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, asset)
	}
	return quote, nil
}

func validateQuote(quote PriceQuote) error {
	if quote.Price.IsNil() || !quote.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidPrice)
	}
	if quote.Time.IsZero() {
		return fmt.Errorf("%w: missing observation time", ErrInvalidPrice)
	}
	return nil
}
