/*

This file contains the types describing supported collateral assets and the
approved strategies they can be allocated to.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// AssetID is the stable identifier of a collateral asset (token address or denom).
type AssetID string

// StrategyID is the stable identifier of an approved strategy. The identity
// survives implementation upgrades behind the strategy handle.
type StrategyID string

// ConversionMode determines how a native asset amount is converted into the
// 18-decimal unit of account.
type ConversionMode string

const (
	// ConversionScaled applies plain decimal scaling using the cached decimals.
	ConversionScaled ConversionMode = "SCALED"
	// ConversionExchangeRate additionally applies the asset's exchange rate,
	// for share tokens whose backing grows (e.g. rebasing LSTs).
	ConversionExchangeRate ConversionMode = "EXCHANGE_RATE"
)

// Asset holds the per-asset configuration tracked by the asset registry.
type Asset struct {
	ID     AssetID        `json:"id"`
	Symbol string         `json:"symbol"`
	Mode   ConversionMode `json:"mode"`

	// Decimals is cached from the asset backend when the asset is supported
	// and must not change afterwards.
	Decimals uint8 `json:"decimals"`

	// OracleSlippageBps is the tolerated deviation of the oracle price from
	// ReferencePrice, in basis points.
	OracleSlippageBps uint32 `json:"oracle_slippage_bps"`

	// ReferencePrice is the governance-set price band center in unit of
	// account (1.0 for a pegged stable asset).
	ReferencePrice sdkmath.LegacyDec `json:"reference_price"`

	// DefaultStrategy receives the asset's excess buffer during allocation.
	// Empty when no default is configured.
	DefaultStrategy StrategyID `json:"default_strategy,omitempty"`
}

// StrategyRecord is the registry's view of an approved strategy.
type StrategyRecord struct {
	ID       StrategyID `json:"id"`
	Approved bool       `json:"approved"`
}
