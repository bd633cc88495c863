/*

Rebase: realigns total token supply with the total backing value, so yield
earned by strategies accrues to holders. Skipped while supply is zero or the
divergence is within the configured threshold.

*/

package vault

import (
	"fmt"

	"github.com/google/uuid"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/types"
)

// Rebase sets the token supply to the current total backing value. Returns
// true when a rebase was applied, false when it was skipped because supply is
// zero or divergence is within RebaseThreshold.
func (v *Vault) Rebase(caller string) (bool, error) {
	if err := v.auth.RequireStrategist(caller); err != nil {
		return false, err
	}

	opID := uuid.New().String()
	log := v.log.With().Str("op_id", opID).Logger()

	v.mu.Lock()
	defer v.mu.Unlock()

	applied, supply, value, err := v.rebaseLocked()

	receipt := types.OperationReceipt{
		OpID:       opID,
		Kind:       types.OperationRebase,
		Account:    caller,
		TokenUnits: safeInt(value),
		FeeUnits:   sdkmath.ZeroInt(),
		Success:    err == nil,
		Timestamp:  v.now(),
	}
	if err != nil {
		receipt.Message = err.Error()
		log.Warn().Err(err).Msg("Rebase failed")
	} else if applied {
		log.Info().
			Str("old_supply", supply.String()).
			Str("new_supply", value.String()).
			Msg("Rebase applied")
	} else {
		receipt.Message = "skipped"
		log.Debug().
			Str("supply", supply.String()).
			Str("value", value.String()).
			Msg("Rebase skipped, divergence within threshold")
	}
	v.saveReceipt(receipt)
	return applied, err
}

func (v *Vault) rebaseLocked() (applied bool, supply, value sdkmath.Int, err error) {
	supply = v.token.TotalSupply()
	value = sdkmath.ZeroInt()

	if v.params.RebasePaused {
		return false, supply, value, ErrRebasePaused
	}
	if v.params.CapitalPaused {
		return false, supply, value, ErrCapitalPaused
	}
	if supply.IsZero() {
		return false, supply, value, nil
	}

	value, err = v.totalValueLocked()
	if err != nil {
		return false, supply, value, err
	}
	if !value.IsPositive() {
		return false, supply, value, fmt.Errorf("%w: total value is %s with supply %s", ErrInsolvent, value, supply)
	}

	diff := value.Sub(supply).Abs()
	if diff.LTE(v.params.RebaseThreshold) {
		return false, supply, value, nil
	}

	if err := v.token.Rebase(value); err != nil {
		return false, supply, value, fmt.Errorf("token rebase failed: %w", err)
	}
	return true, supply, value, nil
}
