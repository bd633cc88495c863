/*

The allocation engine. For every asset with a default strategy it pushes the
buffer's excess over the target buffer into that strategy. Allocation is
idempotent and all-or-nothing: a failing deposit unwinds every deposit made
earlier in the same call, so buffer accounting is never left half-applied.

*/

package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meridian-money/svm/internal/types"
	"github.com/meridian-money/svm/internal/utils"
)

// Allocate pushes excess buffer funds into each asset's default strategy.
// Callable by the strategist or governor, and triggered automatically by
// mints and redeems that move more value than the auto-allocate threshold.
func (v *Vault) Allocate(caller string) ([]types.StrategyTransfer, error) {
	if err := v.auth.RequireStrategist(caller); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.params.CapitalPaused {
		return nil, ErrCapitalPaused
	}

	opID := uuid.New().String()
	transfers, err := v.allocateLocked(opID)
	receipt := types.OperationReceipt{
		OpID:        opID,
		Kind:        types.OperationAllocate,
		Account:     caller,
		AssetAmount: sdkmath.ZeroInt(),
		TokenUnits:  sdkmath.ZeroInt(),
		FeeUnits:    sdkmath.ZeroInt(),
		Success:     err == nil,
		Timestamp:   v.now(),
	}
	if err != nil {
		receipt.Message = err.Error()
	}
	v.saveReceipt(receipt)
	return transfers, err
}

type plannedDeposit struct {
	asset    *types.Asset
	strategy types.StrategyID
	amount   sdkmath.Int
}

// allocateLocked computes and executes the full deposit plan. Callers hold
// the operation lock.
func (v *Vault) allocateLocked(opID string) ([]types.StrategyTransfer, error) {
	log := v.log.With().Str("op_id", opID).Logger()

	// Plan first: every asset's excess is computed against its current
	// buffer and total balance before anything moves.
	plan := make([]plannedDeposit, 0, len(v.assetOrder))
	for _, id := range v.assetOrder {
		asset := v.assets[id]
		if asset.DefaultStrategy == "" {
			continue
		}

		buffer, err := v.bufferBalanceLocked(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
		total, err := v.checkAssetBalanceLocked(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}

		target, err := utils.MulBpsFloor(total, v.params.VaultBufferBps)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
		if buffer.LTE(target) {
			continue
		}
		excess := buffer.Sub(target)
		plan = append(plan, plannedDeposit{asset: asset, strategy: asset.DefaultStrategy, amount: excess})
	}

	if len(plan) == 0 {
		log.Debug().Msg("Allocation: nothing to deposit")
		return nil, nil
	}

	// Execute. A failure unwinds every deposit already made in this call.
	executed := make([]plannedDeposit, 0, len(plan))
	for _, deposit := range plan {
		strat := v.strategies[deposit.strategy]
		if strat == nil {
			v.unwindDeposits(log, executed)
			return nil, fmt.Errorf("%w: default strategy %s for %s is not approved",
				ErrAllocationFailed, deposit.strategy, deposit.asset.ID)
		}
		if err := strat.Deposit(deposit.asset.ID, deposit.amount); err != nil {
			v.unwindDeposits(log, executed)
			return nil, fmt.Errorf("%w: deposit of %s %s to %s: %w",
				ErrAllocationFailed, deposit.amount, deposit.asset.ID, deposit.strategy, err)
		}
		executed = append(executed, deposit)
		log.Info().
			Str("asset", string(deposit.asset.ID)).
			Str("strategy", string(deposit.strategy)).
			Str("amount", deposit.amount.String()).
			Msg("Allocated buffer excess to default strategy")
	}

	transfers := make([]types.StrategyTransfer, 0, len(executed))
	for _, deposit := range executed {
		transfers = append(transfers, types.StrategyTransfer{
			Asset:     deposit.asset.ID,
			Strategy:  deposit.strategy,
			Amount:    deposit.amount,
			Direction: types.TransferToStrategy,
		})
	}
	return transfers, nil
}

// unwindDeposits pulls back deposits made earlier in a failed allocation.
// A failing unwind is escalated in the logs: it means funds are parked in a
// strategy the vault believed broken, and needs operator attention.
func (v *Vault) unwindDeposits(log zerolog.Logger, executed []plannedDeposit) {
	for i := len(executed) - 1; i >= 0; i-- {
		deposit := executed[i]
		strat := v.strategies[deposit.strategy]
		if strat == nil {
			continue
		}
		if err := strat.Withdraw(v.account, deposit.asset.ID, deposit.amount); err != nil {
			log.Error().
				Err(err).
				Str("asset", string(deposit.asset.ID)).
				Str("strategy", string(deposit.strategy)).
				Str("amount", deposit.amount.String()).
				Msg("CRITICAL: failed to unwind deposit during allocation rollback")
		}
	}
}

// maybeAutoAllocate runs allocation as a side effect of a mint or redeem
// whose unit-of-account value exceeds the threshold. A zero threshold
// allocates on every operation.
func (v *Vault) maybeAutoAllocate(opID string, opUnits sdkmath.Int) error {
	if opUnits.LT(v.params.AutoAllocateThreshold) {
		return nil
	}
	_, err := v.allocateLocked(opID)
	return err
}
