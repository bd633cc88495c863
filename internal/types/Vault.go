package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// StalePricePolicy controls how TotalValue treats a stale oracle quote.
type StalePricePolicy string

const (
	// StalePriceReject surfaces the staleness as an error. Default.
	StalePriceReject StalePricePolicy = "REJECT"
	// StalePriceHold values the asset at the last accepted price. Mutating
	// operations still reject stale quotes; this only relaxes valuation reads.
	StalePriceHold StalePricePolicy = "HOLD"
)

// VaultParameters is the vault's persistent, governance-mutated configuration.
type VaultParameters struct {
	// VaultBufferBps is the target fraction of each asset's total value kept
	// liquid in the vault buffer, in basis points. Valid range [0, 10000].
	VaultBufferBps uint32 `json:"vault_buffer_bps"`

	// RedeemFeeBps is charged on redeem, in basis points. Valid range [0, 10000).
	RedeemFeeBps uint32 `json:"redeem_fee_bps"`

	// AutoAllocateThreshold is the minimum unit-of-account value of a mint or
	// redeem that triggers Allocate as a side effect. 18-decimal fixed point.
	AutoAllocateThreshold sdkmath.Int `json:"auto_allocate_threshold"`

	// RebaseThreshold is the minimum divergence between backing value and
	// token supply before the keeper rebases. 18-decimal fixed point.
	RebaseThreshold sdkmath.Int `json:"rebase_threshold"`

	// MaxSupplyDiffBps is the tolerated shortfall of TotalValue versus token
	// supply before an operation is considered insolvent.
	MaxSupplyDiffBps uint32 `json:"max_supply_diff_bps"`

	CapitalPaused bool `json:"capital_paused"`
	RebasePaused  bool `json:"rebase_paused"`

	StalePolicy StalePricePolicy `json:"stale_policy"`

	// MaxPriceAge is the oldest oracle quote accepted as fresh.
	MaxPriceAge time.Duration `json:"max_price_age"`
}

// DefaultVaultParameters returns a conservative starting configuration.
func DefaultVaultParameters() VaultParameters {
	return VaultParameters{
		VaultBufferBps:        0,
		RedeemFeeBps:          0,
		AutoAllocateThreshold: sdkmath.ZeroInt(),
		RebaseThreshold:       sdkmath.ZeroInt(),
		MaxSupplyDiffBps:      0,
		CapitalPaused:         false,
		RebasePaused:          false,
		StalePolicy:           StalePriceReject,
		MaxPriceAge:           time.Hour,
	}
}
