/*

This file contains the default vault parameters used when no active parameter
set is found in the database during initialization.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/types"
)

// DefaultVaultParameters provides a baseline parameter set for a production
// deployment. These values are used if the database holds no active row.
var DefaultVaultParameters = types.VaultParameters{
	// Keep 2% of each asset's total value liquid in the buffer so small
	// redeems never touch a strategy.
	VaultBufferBps: 200,

	// 50 bps redeem fee, retained by remaining holders.
	RedeemFeeBps: 50,

	// Auto-allocate only when a single mint or redeem moves at least
	// 10,000 units of account. Smaller flows wait for the keeper.
	AutoAllocateThreshold: sdkmath.NewInt(10_000).MulRaw(1e18),

	// Skip rebases that would move total supply by less than 1 unit.
	RebaseThreshold: sdkmath.NewInt(1).MulRaw(1e18),

	// Tolerate a 50 bps shortfall of backing value versus supply before
	// refusing mints and redeems as insolvent.
	MaxSupplyDiffBps: 50,

	CapitalPaused: false,
	RebasePaused:  false,

	StalePolicy: types.StalePriceReject,
	MaxPriceAge: time.Hour,
}
