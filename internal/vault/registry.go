/*
Asset and strategy registries. All entry points here are governance-gated and
validate fully before mutating: a failed call leaves both registries exactly
as they were.
*/

package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/strategy"
	"github.com/meridian-money/svm/internal/types"
	"github.com/meridian-money/svm/internal/utils"
)

// SupportAsset registers a collateral asset and caches its decimals from the
// asset backend. The cached decimals never change afterwards.
func (v *Vault) SupportAsset(caller string, id types.AssetID, symbol string, mode types.ConversionMode) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if mode != types.ConversionScaled && mode != types.ConversionExchangeRate {
		return fmt.Errorf("%w: conversion mode %q", ErrInvalidParameter, mode)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.assets[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadySupported, id)
	}

	decimals, err := v.backend.Decimals(id)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecimalsUnavailable, id, err)
	}
	if decimals == 0 || decimals > utils.MaxAssetDecimals {
		return fmt.Errorf("%w: %s reports %d decimals", ErrDecimalsUnavailable, id, decimals)
	}

	v.assets[id] = &types.Asset{
		ID:                id,
		Symbol:            symbol,
		Mode:              mode,
		Decimals:          decimals,
		OracleSlippageBps: 25,
		ReferencePrice:    sdkmath.LegacyOneDec(),
	}
	v.assetOrder = append(v.assetOrder, id)

	v.log.Info().
		Str("asset", string(id)).
		Str("symbol", symbol).
		Str("mode", string(mode)).
		Uint8("decimals", decimals).
		Msg("Asset supported")
	return nil
}

// RemoveAsset deregisters an asset. Permitted only when neither the vault
// buffer nor any approved strategy holds a balance of it.
func (v *Vault) RemoveAsset(caller string, id types.AssetID) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	asset, exists := v.assets[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}

	held, err := v.checkAssetBalanceLocked(id)
	if err != nil {
		return fmt.Errorf("failed to aggregate balance for %s: %w", id, err)
	}
	if !held.IsZero() {
		return fmt.Errorf("%w: %s still holds %s", ErrNonZeroBalance, id, held)
	}

	asset.DefaultStrategy = ""
	delete(v.assets, id)
	for i, existing := range v.assetOrder {
		if existing == id {
			v.assetOrder = append(v.assetOrder[:i], v.assetOrder[i+1:]...)
			break
		}
	}
	delete(v.lastPrice, id)

	v.log.Info().Str("asset", string(id)).Msg("Asset removed")
	return nil
}

// SetAssetDefaultStrategy points an asset's auto-allocation at a strategy.
// An empty strategy ID clears the default.
func (v *Vault) SetAssetDefaultStrategy(caller string, id types.AssetID, strategyID types.StrategyID) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	asset, exists := v.assets[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}

	if strategyID == "" {
		asset.DefaultStrategy = ""
		v.log.Info().Str("asset", string(id)).Msg("Asset default strategy cleared")
		return nil
	}

	strat, approved := v.strategies[strategyID]
	if !approved {
		return fmt.Errorf("%w: %s", ErrStrategyNotApproved, strategyID)
	}
	if !strat.SupportsAsset(id) {
		return fmt.Errorf("%w: %s does not accept %s", ErrAssetNotSupportedByStrategy, strategyID, id)
	}

	asset.DefaultStrategy = strategyID
	v.log.Info().
		Str("asset", string(id)).
		Str("strategy", string(strategyID)).
		Msg("Asset default strategy set")
	return nil
}

// SetOracleSlippage sets the tolerated oracle price deviation for an asset.
func (v *Vault) SetOracleSlippage(caller string, id types.AssetID, bps uint32) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if bps > utils.BpsDenominator {
		return fmt.Errorf("%w: oracle slippage %d bps", ErrInvalidParameter, bps)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	asset, exists := v.assets[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	asset.OracleSlippageBps = bps
	v.log.Info().Str("asset", string(id)).Uint32("oracle_slippage_bps", bps).Msg("Oracle slippage updated")
	return nil
}

// SetReferencePrice sets the center of an asset's oracle price band.
func (v *Vault) SetReferencePrice(caller string, id types.AssetID, price sdkmath.LegacyDec) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if price.IsNil() || !price.IsPositive() {
		return fmt.Errorf("%w: reference price must be positive", ErrInvalidParameter)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	asset, exists := v.assets[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	asset.ReferencePrice = price
	v.log.Info().Str("asset", string(id)).Str("reference_price", price.String()).Msg("Reference price updated")
	return nil
}

// ApproveStrategy adds a strategy to the approved set.
func (v *Vault) ApproveStrategy(caller string, strat strategy.Strategy) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if strat == nil {
		return fmt.Errorf("%w: strategy cannot be nil", ErrInvalidParameter)
	}
	id := strat.ID()
	if id == "" {
		return fmt.Errorf("%w: strategy ID cannot be empty", ErrInvalidParameter)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.strategies[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyApproved, id)
	}
	v.strategies[id] = strat
	v.stratOrder = append(v.stratOrder, id)

	v.log.Info().Str("strategy", string(id)).Msg("Strategy approved")
	return nil
}

// RemoveStrategy withdraws all funds from a strategy back into the buffer and
// removes it from the approved set. Fails while any asset still defaults to
// it: clearing the default is an explicit separate step so funds are never
// silently stranded.
func (v *Vault) RemoveStrategy(caller string, id types.StrategyID) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	strat, exists := v.strategies[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrStrategyNotApproved, id)
	}

	for _, assetID := range v.assetOrder {
		if v.assets[assetID].DefaultStrategy == id {
			return fmt.Errorf("%w: %s is the default for %s", ErrStrategyStillDefault, id, assetID)
		}
	}

	// Recover funds before touching registry state so a reverting strategy
	// leaves the approved set intact.
	if err := strat.WithdrawAll(v.account); err != nil {
		return fmt.Errorf("withdraw-all from %s failed: %w", id, err)
	}

	delete(v.strategies, id)
	for i, existing := range v.stratOrder {
		if existing == id {
			v.stratOrder = append(v.stratOrder[:i], v.stratOrder[i+1:]...)
			break
		}
	}

	v.log.Info().Str("strategy", string(id)).Msg("Strategy removed")
	return nil
}
