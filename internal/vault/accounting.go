/*

Vault accounting: the single source of truth for the unit-of-account value
backing the token. Every conversion floors so backing is never overstated,
and every price that reaches a mutating operation is validated for freshness
and band deviation first.

*/

package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/oracle"
	"github.com/meridian-money/svm/internal/types"
	"github.com/meridian-money/svm/internal/utils"
)

// TotalValue returns the unit-of-account value of all collateral across the
// vault buffer and every approved strategy. 18-decimal fixed point.
func (v *Vault) TotalValue() (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalValueLocked()
}

func (v *Vault) totalValueLocked() (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	for _, id := range v.assetOrder {
		asset := v.assets[id]

		held, err := v.checkAssetBalanceLocked(id)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		if held.IsZero() {
			continue
		}

		price, err := v.valuationPrice(asset)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}

		value, err := v.unitValueFloor(asset, held, price)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		total = total.Add(value)
	}

	// Collateral owed to outstanding withdrawal requests no longer backs the
	// token: those units were burned at request time.
	liability, err := v.queueLiabilityLocked()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	total = total.Sub(liability)
	if total.IsNegative() {
		total = sdkmath.ZeroInt()
	}
	return total, nil
}

// queueLiabilityLocked values the withdrawal queue's unpaid obligations in
// the unit of account.
func (v *Vault) queueLiabilityLocked() (sdkmath.Int, error) {
	if v.queue == nil {
		return sdkmath.ZeroInt(), nil
	}
	outstanding := v.queue.queuedTotal.Sub(v.queue.claimedTotal)
	if !outstanding.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	asset, exists := v.assets[v.queue.asset]
	if !exists {
		return sdkmath.ZeroInt(), nil
	}
	price, err := v.valuationPrice(asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.unitValueFloor(asset, outstanding, price)
}

// CheckAssetBalance aggregates the vault's own balance of an asset plus every
// approved strategy's reported balance. Read-only.
func (v *Vault) CheckAssetBalance(id types.AssetID) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.assets[id]; !exists {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	return v.checkAssetBalanceLocked(id)
}

func (v *Vault) checkAssetBalanceLocked(id types.AssetID) (sdkmath.Int, error) {
	total, err := v.backend.BalanceOf(id, v.account)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("buffer balance query failed for %s: %w", id, err)
	}
	for _, stratID := range v.stratOrder {
		strat := v.strategies[stratID]
		if !strat.SupportsAsset(id) {
			continue
		}
		balance, err := strat.CheckBalance(id)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("strategy %s balance query failed for %s: %w", stratID, id, err)
		}
		total = total.Add(balance)
	}
	return total, nil
}

// bufferBalanceLocked is the vault's spendable liquid balance of an asset:
// the backend balance minus funds reserved for the withdrawal queue.
func (v *Vault) bufferBalanceLocked(id types.AssetID) (sdkmath.Int, error) {
	balance, err := v.backend.BalanceOf(id, v.account)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("buffer balance query failed for %s: %w", id, err)
	}
	reserved := v.queueReservedLocked(id)
	if balance.LTE(reserved) {
		return sdkmath.ZeroInt(), nil
	}
	return balance.Sub(reserved), nil
}

// valuationPrice returns the price used for TotalValue, honoring the
// stale-price policy: Reject surfaces ErrOracleStale, Hold falls back to the
// last accepted quote.
func (v *Vault) valuationPrice(asset *types.Asset) (sdkmath.LegacyDec, error) {
	quote, err := v.oracle.Price(asset.ID)
	if err == nil && v.now().Sub(quote.Time) <= v.params.MaxPriceAge {
		v.lastPrice[asset.ID] = quote
		return quote.Price, nil
	}

	if v.params.StalePolicy == types.StalePriceHold {
		if held, ok := v.lastPrice[asset.ID]; ok {
			v.log.Warn().
				Str("asset", string(asset.ID)).
				Str("held_price", held.Price.String()).
				Msg("Oracle stale, valuing at last accepted price")
			return held.Price, nil
		}
	}
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s: %w", ErrOracleStale, asset.ID, err)
	}
	return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s quote from %s", ErrOracleStale, asset.ID, quote.Time)
}

// freshQuote returns a quote for a mutating operation. Stale quotes are
// always rejected here, regardless of the valuation policy.
func (v *Vault) freshQuote(asset *types.Asset) (oracle.PriceQuote, error) {
	quote, err := v.oracle.Price(asset.ID)
	if err != nil {
		return oracle.PriceQuote{}, fmt.Errorf("%w: %s: %w", ErrOracleStale, asset.ID, err)
	}
	if v.now().Sub(quote.Time) > v.params.MaxPriceAge {
		return oracle.PriceQuote{}, fmt.Errorf("%w: %s quote from %s", ErrOracleStale, asset.ID, quote.Time)
	}
	v.lastPrice[asset.ID] = quote
	return quote, nil
}

// checkPriceBand fails with ErrPriceSlippage if the quote deviates from the
// asset's reference price beyond its configured tolerance.
func checkPriceBand(asset *types.Asset, price sdkmath.LegacyDec) error {
	tolerance, err := utils.BpsToDec(asset.OracleSlippageBps)
	if err != nil {
		return err
	}
	deviation := price.Sub(asset.ReferencePrice).Abs().Quo(asset.ReferencePrice)
	if deviation.GT(tolerance) {
		return fmt.Errorf("%w: %s price %s vs reference %s (tolerance %d bps)",
			ErrPriceSlippage, asset.ID, price, asset.ReferencePrice, asset.OracleSlippageBps)
	}
	return nil
}

// priceUnitMint returns the price applied to a mint: the fresh oracle price,
// band-checked, and capped at the reference so the vault never credits more
// than the peg for incoming collateral.
func (v *Vault) priceUnitMint(asset *types.Asset) (sdkmath.LegacyDec, error) {
	quote, err := v.freshQuote(asset)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if err := checkPriceBand(asset, quote.Price); err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if quote.Price.GT(asset.ReferencePrice) {
		return asset.ReferencePrice, nil
	}
	return quote.Price, nil
}

// priceUnitRedeem returns the price applied to a redeem: the fresh oracle
// price, band-checked, and floored at the reference so outgoing collateral is
// never valued below the peg.
func (v *Vault) priceUnitRedeem(asset *types.Asset) (sdkmath.LegacyDec, error) {
	quote, err := v.freshQuote(asset)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if err := checkPriceBand(asset, quote.Price); err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if quote.Price.LT(asset.ReferencePrice) {
		return asset.ReferencePrice, nil
	}
	return quote.Price, nil
}

// unitValueFloor converts a native asset amount into the unit of account at
// the given price, rounding down at every step.
func (v *Vault) unitValueFloor(asset *types.Asset, amount sdkmath.Int, price sdkmath.LegacyDec) (sdkmath.Int, error) {
	underlying := amount
	if asset.Mode == types.ConversionExchangeRate {
		rate, err := v.backend.ExchangeRate(asset.ID)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("exchange rate query failed for %s: %w", asset.ID, err)
		}
		underlying, err = utils.MulDecFloor(amount, rate)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	scaled, err := utils.ScaleToUnit(underlying, asset.Decimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return utils.MulDecFloor(scaled, price)
}

// unitsToAssetFloor converts a unit-of-account amount into native asset
// units at the given price, rounding down (the direction that favors the
// protocol when paying out).
func (v *Vault) unitsToAssetFloor(asset *types.Asset, units sdkmath.Int, price sdkmath.LegacyDec) (sdkmath.Int, error) {
	scaled, err := utils.QuoDecFloor(units, price)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if asset.Mode == types.ConversionExchangeRate {
		rate, err := v.backend.ExchangeRate(asset.ID)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("exchange rate query failed for %s: %w", asset.ID, err)
		}
		scaled, err = utils.QuoDecFloor(scaled, rate)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	return utils.ScaleFromUnitFloor(scaled, asset.Decimals)
}

// checkSolvencyLocked verifies that backing value covers token supply within
// the configured tolerance.
func (v *Vault) checkSolvencyLocked() error {
	supply := v.token.TotalSupply()
	if supply.IsZero() {
		return nil
	}
	value, err := v.totalValueLocked()
	if err != nil {
		return err
	}
	tolerance, err := utils.MulBpsFloor(supply, v.params.MaxSupplyDiffBps)
	if err != nil {
		return err
	}
	if value.Add(tolerance).LT(supply) {
		return fmt.Errorf("%w: backing %s vs supply %s (tolerance %s)",
			ErrInsolvent, value, supply, tolerance)
	}
	return nil
}
