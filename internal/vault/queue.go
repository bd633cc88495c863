/*

Asynchronous withdrawal queue. A request burns the token immediately and
fixes the asset amount owed at the current price. Requests become claimable
strictly in FIFO order as the liquidity watermark advances, and the funds
backing claimable requests are reserved out of the buffer so that mints,
redeems and allocation can never spend them.

*/

package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/meridian-money/svm/internal/types"
)

type withdrawalQueue struct {
	asset    types.AssetID
	requests map[uint64]*types.WithdrawalRequest
	order    []uint64
	nextID   uint64

	// queuedTotal is the cumulative owed amount of all live requests.
	// claimedTotal is the cumulative amount already paid out. watermark is
	// the cumulative liquidity committed to the queue; it never exceeds
	// queuedTotal. Reserved funds are watermark minus claimedTotal.
	queuedTotal  sdkmath.Int
	claimedTotal sdkmath.Int
	watermark    sdkmath.Int
}

func newWithdrawalQueue(asset types.AssetID) *withdrawalQueue {
	return &withdrawalQueue{
		asset:        asset,
		requests:     make(map[uint64]*types.WithdrawalRequest),
		queuedTotal:  sdkmath.ZeroInt(),
		claimedTotal: sdkmath.ZeroInt(),
		watermark:    sdkmath.ZeroInt(),
	}
}

func (q *withdrawalQueue) reserved() sdkmath.Int {
	return q.watermark.Sub(q.claimedTotal)
}

// queueReservedLocked returns the amount of the given asset held back for
// claimable withdrawals. Zero when the queue is unconfigured or keyed to a
// different asset.
func (v *Vault) queueReservedLocked(id types.AssetID) sdkmath.Int {
	if v.queue == nil || v.queue.asset != id {
		return sdkmath.ZeroInt()
	}
	return v.queue.reserved()
}

// ConfigureWithdrawalQueue enables the queue for the given asset. The queue
// cannot be repointed while requests are outstanding.
func (v *Vault) ConfigureWithdrawalQueue(caller string, id types.AssetID) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.assets[id]; !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	if v.queue != nil {
		outstanding := v.queue.queuedTotal.Sub(v.queue.claimedTotal)
		if outstanding.IsPositive() {
			return fmt.Errorf("%w: queue has %s %s outstanding", ErrInvalidParameter, outstanding, v.queue.asset)
		}
	}

	v.queue = newWithdrawalQueue(id)
	v.log.Info().Str("asset", string(id)).Msg("Withdrawal queue configured")
	return nil
}

// RequestWithdrawal burns units from the requester and enqueues a withdrawal
// for the queue asset. The asset amount owed is fixed now; no redeem fee is
// charged, the wait for liquidity is the cost.
func (v *Vault) RequestWithdrawal(requester string, units sdkmath.Int) (types.WithdrawalRequest, error) {
	opID := uuid.New().String()
	log := v.log.With().Str("op_id", opID).Str("account", requester).Logger()

	v.mu.Lock()
	defer v.mu.Unlock()

	request, err := v.requestWithdrawalLocked(requester, units)

	receipt := types.OperationReceipt{
		OpID:        opID,
		Kind:        types.OperationQueueRequest,
		Account:     requester,
		Asset:       request.Asset,
		AssetAmount: safeInt(request.AmountOwed),
		TokenUnits:  safeInt(units),
		FeeUnits:    sdkmath.ZeroInt(),
		Success:     err == nil,
		Timestamp:   v.now(),
	}
	if err != nil {
		receipt.Message = err.Error()
		log.Warn().Err(err).Msg("RequestWithdrawal failed")
	} else {
		log.Info().
			Uint64("request_id", request.ID).
			Str("units", units.String()).
			Str("amount_owed", request.AmountOwed.String()).
			Str("queued_total", request.QueuedTotal.String()).
			Msg("Withdrawal requested")
	}
	v.saveReceipt(receipt)
	return request, err
}

func (v *Vault) requestWithdrawalLocked(requester string, units sdkmath.Int) (types.WithdrawalRequest, error) {
	if v.params.CapitalPaused {
		return types.WithdrawalRequest{}, ErrCapitalPaused
	}
	if v.queue == nil {
		return types.WithdrawalRequest{}, ErrQueueNotConfigured
	}
	if requester == "" {
		return types.WithdrawalRequest{}, fmt.Errorf("%w: account cannot be empty", ErrInvalidParameter)
	}
	if units.IsNil() || !units.IsPositive() {
		return types.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal units must be positive", ErrInvalidParameter)
	}
	if v.token.BalanceOf(requester).LT(units) {
		return types.WithdrawalRequest{}, fmt.Errorf("%w: %s", ErrInsufficientBalance, requester)
	}

	asset, exists := v.assets[v.queue.asset]
	if !exists {
		return types.WithdrawalRequest{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, v.queue.asset)
	}
	price, err := v.priceUnitRedeem(asset)
	if err != nil {
		return types.WithdrawalRequest{}, err
	}
	amount, err := v.unitsToAssetFloor(asset, units, price)
	if err != nil {
		return types.WithdrawalRequest{}, err
	}
	if !amount.IsPositive() {
		return types.WithdrawalRequest{}, fmt.Errorf("%w: units too small to withdraw", ErrInvalidParameter)
	}

	if err := v.token.Burn(requester, units); err != nil {
		return types.WithdrawalRequest{}, fmt.Errorf("token burn failed: %w", err)
	}

	v.queue.nextID++
	v.queue.queuedTotal = v.queue.queuedTotal.Add(amount)
	request := &types.WithdrawalRequest{
		ID:          v.queue.nextID,
		Requester:   requester,
		Asset:       asset.ID,
		UnitsBurned: units,
		AmountOwed:  amount,
		QueuedTotal: v.queue.queuedTotal,
		Status:      types.WithdrawalRequested,
		RequestedAt: v.now(),
	}
	v.queue.requests[request.ID] = request
	v.queue.order = append(v.queue.order, request.ID)
	return *request, nil
}

// AddQueueLiquidity advances the claimable watermark with whatever vault
// balance of the queue asset is not already reserved. Returns the new
// watermark.
func (v *Vault) AddQueueLiquidity(caller string) (sdkmath.Int, error) {
	if err := v.auth.RequireStrategist(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.queue == nil {
		return sdkmath.ZeroInt(), ErrQueueNotConfigured
	}

	balance, err := v.backend.BalanceOf(v.queue.asset, v.account)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("queue asset balance query failed: %w", err)
	}

	// The watermark may never promise more than the queue owes, nor more
	// than funds on hand can back.
	next := sdkmath.MinInt(v.queue.queuedTotal, v.queue.claimedTotal.Add(balance))
	if next.GT(v.queue.watermark) {
		advanced := next.Sub(v.queue.watermark)
		v.queue.watermark = next
		v.log.Info().
			Str("asset", string(v.queue.asset)).
			Str("advanced", advanced.String()).
			Str("watermark", next.String()).
			Msg("Queue watermark advanced")
	}
	if v.queue.reserved().GT(balance) {
		return v.queue.watermark, fmt.Errorf("%w: reserved %s exceeds vault balance %s",
			ErrInsufficientLiquidity, v.queue.reserved(), balance)
	}
	return v.queue.watermark, nil
}

// ClaimWithdrawal pays out a claimable request to its requester.
func (v *Vault) ClaimWithdrawal(requester string, requestID uint64) (sdkmath.Int, error) {
	opID := uuid.New().String()
	log := v.log.With().Str("op_id", opID).Str("account", requester).Uint64("request_id", requestID).Logger()

	v.mu.Lock()
	defer v.mu.Unlock()

	amount, assetID, err := v.claimWithdrawalLocked(requester, requestID)

	receipt := types.OperationReceipt{
		OpID:        opID,
		Kind:        types.OperationQueueClaim,
		Account:     requester,
		Asset:       assetID,
		AssetAmount: safeInt(amount),
		TokenUnits:  sdkmath.ZeroInt(),
		FeeUnits:    sdkmath.ZeroInt(),
		Success:     err == nil,
		Timestamp:   v.now(),
	}
	if err != nil {
		receipt.Message = err.Error()
		log.Warn().Err(err).Msg("ClaimWithdrawal failed")
	} else {
		log.Info().Str("amount", amount.String()).Msg("Withdrawal claimed")
	}
	v.saveReceipt(receipt)
	return amount, err
}

func (v *Vault) claimWithdrawalLocked(requester string, requestID uint64) (sdkmath.Int, types.AssetID, error) {
	if v.params.CapitalPaused {
		return sdkmath.ZeroInt(), "", ErrCapitalPaused
	}
	if v.queue == nil {
		return sdkmath.ZeroInt(), "", ErrQueueNotConfigured
	}
	request, exists := v.queue.requests[requestID]
	if !exists {
		return sdkmath.ZeroInt(), "", fmt.Errorf("%w: %d", ErrUnknownRequest, requestID)
	}
	if request.Requester != requester {
		return sdkmath.ZeroInt(), request.Asset, ErrNotRequester
	}
	if !request.Claimable(v.queue.watermark) {
		return sdkmath.ZeroInt(), request.Asset, fmt.Errorf("%w: request %d at %s, watermark %s",
			ErrNotClaimable, requestID, request.QueuedTotal, v.queue.watermark)
	}

	if err := v.backend.Transfer(request.Asset, v.account, requester, request.AmountOwed); err != nil {
		return sdkmath.ZeroInt(), request.Asset, fmt.Errorf("payout transfer failed: %w", err)
	}

	claimedAt := v.now()
	request.Status = types.WithdrawalClaimed
	request.ClaimedAt = &claimedAt
	v.queue.claimedTotal = v.queue.claimedTotal.Add(request.AmountOwed)
	return request.AmountOwed, request.Asset, nil
}

// CancelWithdrawal re-mints the burned units and releases the queued
// liability. Only requests the watermark has not yet reached can be
// cancelled.
func (v *Vault) CancelWithdrawal(requester string, requestID uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.queue == nil {
		return ErrQueueNotConfigured
	}
	request, exists := v.queue.requests[requestID]
	if !exists {
		return fmt.Errorf("%w: %d", ErrUnknownRequest, requestID)
	}
	if request.Requester != requester {
		return ErrNotRequester
	}
	if request.Status != types.WithdrawalRequested {
		return fmt.Errorf("%w: request %d is %s", ErrInvalidParameter, requestID, request.Status)
	}
	if request.Claimable(v.queue.watermark) {
		return fmt.Errorf("%w: request %d is already claimable", ErrInvalidParameter, requestID)
	}

	if err := v.token.Mint(requester, request.UnitsBurned); err != nil {
		return fmt.Errorf("token re-mint failed: %w", err)
	}

	request.Status = types.WithdrawalCancelled
	v.queue.queuedTotal = v.queue.queuedTotal.Sub(request.AmountOwed)
	// Later requests slide forward in the queue.
	passed := false
	for _, id := range v.queue.order {
		if id == requestID {
			passed = true
			continue
		}
		if !passed {
			continue
		}
		later := v.queue.requests[id]
		later.QueuedTotal = later.QueuedTotal.Sub(request.AmountOwed)
	}
	v.queue.watermark = sdkmath.MinInt(v.queue.watermark, v.queue.queuedTotal)

	v.log.Info().
		Str("account", requester).
		Uint64("request_id", requestID).
		Str("released", request.AmountOwed.String()).
		Msg("Withdrawal cancelled")
	return nil
}

// QueueState is a point-in-time snapshot of the withdrawal queue.
type QueueState struct {
	Configured   bool                      `json:"configured"`
	Asset        types.AssetID             `json:"asset,omitempty"`
	Watermark    sdkmath.Int               `json:"watermark"`
	QueuedTotal  sdkmath.Int               `json:"queued_total"`
	ClaimedTotal sdkmath.Int               `json:"claimed_total"`
	Requests     []types.WithdrawalRequest `json:"requests"`
}

// Queue returns a snapshot of the withdrawal queue in request order.
func (v *Vault) Queue() QueueState {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.queue == nil {
		return QueueState{
			Watermark:    sdkmath.ZeroInt(),
			QueuedTotal:  sdkmath.ZeroInt(),
			ClaimedTotal: sdkmath.ZeroInt(),
		}
	}
	state := QueueState{
		Configured:   true,
		Asset:        v.queue.asset,
		Watermark:    v.queue.watermark,
		QueuedTotal:  v.queue.queuedTotal,
		ClaimedTotal: v.queue.claimedTotal,
		Requests:     make([]types.WithdrawalRequest, 0, len(v.queue.order)),
	}
	for _, id := range v.queue.order {
		state.Requests = append(state.Requests, *v.queue.requests[id])
	}
	return state
}
