/*

Mint and redeem: the transactional entry points. Each call runs a linear
sequence of steps (validate, price, move collateral, mint or burn, recheck
solvency, maybe auto-allocate) under the operation lock. Any failure after
funds have moved is compensated before returning, so a caller never observes
a partially applied mint or redeem.

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

// Mint accepts amount of a supported asset from the caller and mints the
// unit-of-account equivalent of the token. minUnits guards the caller against
// price movement; pass zero to accept any outcome.
func (v *Vault) Mint(from string, id types.AssetID, amount, minUnits sdkmath.Int) (sdkmath.Int, error) {
	opID := uuid.New().String()
	log := v.log.With().Str("op_id", opID).Str("account", from).Str("asset", string(id)).Logger()

	v.mu.Lock()
	defer v.mu.Unlock()

	units, err := v.mintLocked(log, from, id, amount, minUnits, opID)

	receipt := types.OperationReceipt{
		OpID:        opID,
		Kind:        types.OperationMint,
		Account:     from,
		Asset:       id,
		AssetAmount: safeInt(amount),
		TokenUnits:  safeInt(units),
		FeeUnits:    sdkmath.ZeroInt(),
		Success:     err == nil,
		Timestamp:   v.now(),
	}
	if err != nil {
		receipt.Message = err.Error()
		log.Warn().Err(err).Msg("Mint failed")
	} else {
		log.Info().
			Str("amount", amount.String()).
			Str("units", units.String()).
			Msg("Mint completed")
	}
	v.saveReceipt(receipt)
	return units, err
}

func (v *Vault) mintLocked(log zerolog.Logger, from string, id types.AssetID, amount, minUnits sdkmath.Int, opID string) (sdkmath.Int, error) {
	if v.params.CapitalPaused {
		return sdkmath.ZeroInt(), ErrCapitalPaused
	}
	if from == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: account cannot be empty", ErrInvalidParameter)
	}
	asset, exists := v.assets[id]
	if !exists {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: mint amount must be positive", ErrInvalidParameter)
	}
	if minUnits.IsNil() {
		minUnits = sdkmath.ZeroInt()
	}

	price, err := v.priceUnitMint(asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	units, err := v.unitValueFloor(asset, amount, price)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !units.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount too small to mint", ErrInvalidParameter)
	}
	if units.LT(minUnits) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: would mint %s units, caller requires %s", ErrPriceSlippage, units, minUnits)
	}

	// Interactions: pull collateral in, then mint against it.
	if err := v.backend.Transfer(id, from, v.account, amount); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("collateral transfer failed: %w", err)
	}
	if err := v.token.Mint(from, units); err != nil {
		v.compensateTransfer(log, id, v.account, from, amount)
		return sdkmath.ZeroInt(), fmt.Errorf("token mint failed: %w", err)
	}

	if err := v.checkSolvencyLocked(); err != nil {
		v.rollbackMint(log, from, id, amount, units)
		return sdkmath.ZeroInt(), err
	}

	if err := v.maybeAutoAllocate(opID, units); err != nil {
		v.rollbackMint(log, from, id, amount, units)
		return sdkmath.ZeroInt(), err
	}

	return units, nil
}

// Redeem burns units of the token and pays out the equivalent amount of the
// requested asset, net of the redeem fee. When the buffer cannot cover the
// payout, strategies holding the asset are drained largest balance first.
func (v *Vault) Redeem(to string, id types.AssetID, units, minAmount sdkmath.Int) (sdkmath.Int, error) {
	opID := uuid.New().String()
	log := v.log.With().Str("op_id", opID).Str("account", to).Str("asset", string(id)).Logger()

	v.mu.Lock()
	defer v.mu.Unlock()

	amount, feeUnits, err := v.redeemLocked(log, to, id, units, minAmount, opID)

	receipt := types.OperationReceipt{
		OpID:        opID,
		Kind:        types.OperationRedeem,
		Account:     to,
		Asset:       id,
		AssetAmount: safeInt(amount),
		TokenUnits:  safeInt(units),
		FeeUnits:    safeInt(feeUnits),
		Success:     err == nil,
		Timestamp:   v.now(),
	}
	if err != nil {
		receipt.Message = err.Error()
		log.Warn().Err(err).Msg("Redeem failed")
	} else {
		log.Info().
			Str("units", units.String()).
			Str("amount", amount.String()).
			Str("fee_units", feeUnits.String()).
			Msg("Redeem completed")
	}
	v.saveReceipt(receipt)
	return amount, err
}

func (v *Vault) redeemLocked(log zerolog.Logger, to string, id types.AssetID, units, minAmount sdkmath.Int, opID string) (amount, feeUnits sdkmath.Int, err error) {
	amount = sdkmath.ZeroInt()
	feeUnits = sdkmath.ZeroInt()

	if v.params.CapitalPaused {
		return amount, feeUnits, ErrCapitalPaused
	}
	if to == "" {
		return amount, feeUnits, fmt.Errorf("%w: account cannot be empty", ErrInvalidParameter)
	}
	asset, exists := v.assets[id]
	if !exists {
		return amount, feeUnits, fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	if units.IsNil() || !units.IsPositive() {
		return amount, feeUnits, fmt.Errorf("%w: redeem units must be positive", ErrInvalidParameter)
	}
	if minAmount.IsNil() {
		minAmount = sdkmath.ZeroInt()
	}
	if v.token.BalanceOf(to).LT(units) {
		return amount, feeUnits, fmt.Errorf("%w: %s", ErrInsufficientBalance, to)
	}

	// Net value after the redeem fee, floored toward the protocol.
	netUnits, err := utils.MulBpsFloor(units, utils.BpsDenominator-v.params.RedeemFeeBps)
	if err != nil {
		return amount, feeUnits, err
	}
	feeUnits = units.Sub(netUnits)

	price, err := v.priceUnitRedeem(asset)
	if err != nil {
		return amount, feeUnits, err
	}
	amount, err = v.unitsToAssetFloor(asset, netUnits, price)
	if err != nil {
		return sdkmath.ZeroInt(), feeUnits, err
	}
	if !amount.IsPositive() {
		return amount, feeUnits, fmt.Errorf("%w: units too small to redeem", ErrInvalidParameter)
	}
	if amount.LT(minAmount) {
		return amount, feeUnits, fmt.Errorf("%w: would pay %s, caller requires %s", ErrPriceSlippage, amount, minAmount)
	}

	// Cover any buffer shortfall from strategies before funds move out.
	withdrawn, err := v.coverShortfallLocked(log, id, amount)
	if err != nil {
		return amount, feeUnits, err
	}

	if err := v.token.Burn(to, units); err != nil {
		v.redepositTransfers(log, withdrawn)
		return amount, feeUnits, fmt.Errorf("token burn failed: %w", err)
	}
	if err := v.backend.Transfer(id, v.account, to, amount); err != nil {
		v.compensateMint(log, to, units)
		v.redepositTransfers(log, withdrawn)
		return amount, feeUnits, fmt.Errorf("payout transfer failed: %w", err)
	}

	if err := v.checkSolvencyLocked(); err != nil {
		v.compensateTransfer(log, id, to, v.account, amount)
		v.compensateMint(log, to, units)
		v.redepositTransfers(log, withdrawn)
		return amount, feeUnits, err
	}

	if err := v.maybeAutoAllocate(opID, units); err != nil {
		v.compensateTransfer(log, id, to, v.account, amount)
		v.compensateMint(log, to, units)
		v.redepositTransfers(log, withdrawn)
		return amount, feeUnits, err
	}

	return amount, feeUnits, nil
}

// coverShortfallLocked tops the buffer up to at least amount by withdrawing
// from strategies holding the asset, largest balance first. The full plan is
// verified before any withdrawal executes.
func (v *Vault) coverShortfallLocked(log zerolog.Logger, id types.AssetID, amount sdkmath.Int) ([]types.StrategyTransfer, error) {
	buffer, err := v.bufferBalanceLocked(id)
	if err != nil {
		return nil, err
	}
	if buffer.GTE(amount) {
		return nil, nil
	}
	shortfall := amount.Sub(buffer)

	candidates := v.sortedStrategiesForAsset(id)
	available := sdkmath.ZeroInt()
	balances := make([]sdkmath.Int, len(candidates))
	for i, strat := range candidates {
		balance, err := strat.CheckBalance(id)
		if err != nil {
			return nil, fmt.Errorf("strategy %s balance query failed: %w", strat.ID(), err)
		}
		balances[i] = balance
		available = available.Add(balance)
	}
	if available.LT(shortfall) {
		return nil, fmt.Errorf("%w: need %s %s beyond buffer, strategies hold %s",
			ErrInsufficientLiquidity, shortfall, id, available)
	}

	withdrawn := make([]types.StrategyTransfer, 0, len(candidates))
	remaining := shortfall
	for i, strat := range candidates {
		if !remaining.IsPositive() {
			break
		}
		take := sdkmath.MinInt(balances[i], remaining)
		if take.IsZero() {
			continue
		}
		if err := strat.Withdraw(v.account, id, take); err != nil {
			v.redepositTransfers(log, withdrawn)
			return nil, fmt.Errorf("withdrawal of %s %s from %s failed: %w", take, id, strat.ID(), err)
		}
		withdrawn = append(withdrawn, types.StrategyTransfer{
			Asset:     id,
			Strategy:  strat.ID(),
			Amount:    take,
			Direction: types.TransferFromStrategy,
		})
		remaining = remaining.Sub(take)
		log.Info().
			Str("strategy", string(strat.ID())).
			Str("amount", take.String()).
			Msg("Withdrew redeem shortfall from strategy")
	}
	return withdrawn, nil
}

// --- Compensation helpers ---------------------------------------------------
// Rollbacks run while the operation lock is held, so the compensated state is
// never observable. A compensation failure is logged as critical: it means an
// external collaborator broke mid-rollback.

func (v *Vault) rollbackMint(log zerolog.Logger, from string, id types.AssetID, amount, units sdkmath.Int) {
	v.compensateMintBurn(log, from, units)
	v.compensateTransfer(log, id, v.account, from, amount)
}

func (v *Vault) compensateMintBurn(log zerolog.Logger, holder string, units sdkmath.Int) {
	if err := v.token.Burn(holder, units); err != nil {
		log.Error().Err(err).Str("units", units.String()).Msg("CRITICAL: failed to burn during rollback")
	}
}

func (v *Vault) compensateMint(log zerolog.Logger, holder string, units sdkmath.Int) {
	if err := v.token.Mint(holder, units); err != nil {
		log.Error().Err(err).Str("units", units.String()).Msg("CRITICAL: failed to re-mint during rollback")
	}
}

func (v *Vault) compensateTransfer(log zerolog.Logger, id types.AssetID, from, to string, amount sdkmath.Int) {
	if err := v.backend.Transfer(id, from, to, amount); err != nil {
		log.Error().Err(err).
			Str("asset", string(id)).
			Str("amount", amount.String()).
			Msg("CRITICAL: failed to return collateral during rollback")
	}
}

func (v *Vault) redepositTransfers(log zerolog.Logger, withdrawn []types.StrategyTransfer) {
	for i := len(withdrawn) - 1; i >= 0; i-- {
		transfer := withdrawn[i]
		strat := v.strategies[transfer.Strategy]
		if strat == nil {
			continue
		}
		if err := strat.Deposit(transfer.Asset, transfer.Amount); err != nil {
			log.Error().Err(err).
				Str("strategy", string(transfer.Strategy)).
				Str("amount", transfer.Amount.String()).
				Msg("CRITICAL: failed to redeposit during rollback")
		}
	}
}

func safeInt(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}
