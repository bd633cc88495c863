package vault

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-money/svm/internal/governance"
	"github.com/meridian-money/svm/internal/strategy"
	"github.com/meridian-money/svm/internal/types"
)

// deployedFixture mints 1000 DAI from alice with a zero buffer target, so
// the entire backing sits in the default strategy and the buffer is empty.
func deployedFixture(t *testing.T) (*fixture, *strategy.Generic) {
	t.Helper()
	f := newFixture(t)
	strat := f.addStrategy(t, "aave_dai", "dai")
	require.NoError(t, f.vault.SetAssetDefaultStrategy(governor, "dai", "aave_dai"))
	_, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)
	require.NoError(t, f.vault.ConfigureWithdrawalQueue(governor, "dai"))
	return f, strat
}

func TestConfigureWithdrawalQueue(t *testing.T) {
	f := newFixture(t)
	v := f.vault

	assert.ErrorIs(t, v.ConfigureWithdrawalQueue(strategist, "dai"), governance.ErrNotGovernor)
	assert.ErrorIs(t, v.ConfigureWithdrawalQueue(governor, "frax"), ErrUnsupportedAsset)

	require.NoError(t, v.ConfigureWithdrawalQueue(governor, "dai"))
	assert.True(t, v.Queue().Configured)
	assert.Equal(t, types.AssetID("dai"), v.Queue().Asset)

	// Repointing is refused while requests are outstanding.
	_, err := v.Mint(alice, "dai", unit(100), sdkmath.ZeroInt())
	require.NoError(t, err)
	_, err = v.RequestWithdrawal(alice, unit(100))
	require.NoError(t, err)
	assert.ErrorIs(t, v.ConfigureWithdrawalQueue(governor, "usdc"), ErrInvalidParameter)

	// Once everything is settled the queue can move to another asset.
	_, err = v.AddQueueLiquidity(strategist)
	require.NoError(t, err)
	_, err = v.ClaimWithdrawal(alice, 1)
	require.NoError(t, err)
	require.NoError(t, v.ConfigureWithdrawalQueue(governor, "usdc"))
	assert.Equal(t, types.AssetID("usdc"), v.Queue().Asset)
}

func TestRequestWithdrawalValidation(t *testing.T) {
	f := newFixture(t)
	v := f.vault

	_, err := v.RequestWithdrawal(alice, unit(1))
	assert.ErrorIs(t, err, ErrQueueNotConfigured)

	require.NoError(t, v.ConfigureWithdrawalQueue(governor, "dai"))

	_, err = v.RequestWithdrawal(alice, sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = v.RequestWithdrawal(alice, unit(1))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = v.Mint(alice, "dai", unit(100), sdkmath.ZeroInt())
	require.NoError(t, err)

	request, err := v.RequestWithdrawal(alice, unit(40))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), request.ID)
	assert.Equal(t, types.WithdrawalRequested, request.Status)
	assert.True(t, request.AmountOwed.Equal(unit(40)))
	assert.True(t, request.QueuedTotal.Equal(unit(40)))

	// Units are burned up front.
	assert.True(t, f.token.BalanceOf(alice).Equal(unit(60)))

	require.NoError(t, v.PauseCapital(strategist))
	_, err = v.RequestWithdrawal(alice, unit(10))
	assert.ErrorIs(t, err, ErrCapitalPaused)
}

func TestQueueFIFOLifecycle(t *testing.T) {
	f, strat := deployedFixture(t)
	v := f.vault

	r1, err := v.RequestWithdrawal(alice, unit(300))
	require.NoError(t, err)
	r2, err := v.RequestWithdrawal(alice, unit(300))
	require.NoError(t, err)
	assert.True(t, r2.QueuedTotal.Equal(unit(600)))

	// No liquid funds yet: the watermark stays put and nothing is claimable.
	watermark, err := v.AddQueueLiquidity(strategist)
	require.NoError(t, err)
	assert.True(t, watermark.IsZero())
	_, err = v.ClaimWithdrawal(alice, r1.ID)
	assert.ErrorIs(t, err, ErrNotClaimable)

	// Partial liquidity covers the first request but not the second.
	require.NoError(t, strat.Withdraw(vaultAccount, "dai", unit(350)))
	watermark, err = v.AddQueueLiquidity(strategist)
	require.NoError(t, err)
	assert.True(t, watermark.Equal(unit(350)))

	_, err = v.ClaimWithdrawal(alice, r2.ID)
	assert.ErrorIs(t, err, ErrNotClaimable)
	_, err = v.ClaimWithdrawal(bob, r1.ID)
	assert.ErrorIs(t, err, ErrNotRequester)
	_, err = v.ClaimWithdrawal(alice, 99)
	assert.ErrorIs(t, err, ErrUnknownRequest)

	before, err := f.backend.BalanceOf("dai", alice)
	require.NoError(t, err)
	paid, err := v.ClaimWithdrawal(alice, r1.ID)
	require.NoError(t, err)
	assert.True(t, paid.Equal(unit(300)))
	after, err := f.backend.BalanceOf("dai", alice)
	require.NoError(t, err)
	assert.True(t, after.Sub(before).Equal(unit(300)))

	// A claimed request cannot be claimed twice.
	_, err = v.ClaimWithdrawal(alice, r1.ID)
	assert.ErrorIs(t, err, ErrNotClaimable)

	// Full liquidity unlocks the second request.
	require.NoError(t, strat.Withdraw(vaultAccount, "dai", unit(650)))
	watermark, err = v.AddQueueLiquidity(strategist)
	require.NoError(t, err)
	assert.True(t, watermark.Equal(unit(600)))
	paid, err = v.ClaimWithdrawal(alice, r2.ID)
	require.NoError(t, err)
	assert.True(t, paid.Equal(unit(300)))

	state := v.Queue()
	assert.True(t, state.ClaimedTotal.Equal(state.QueuedTotal))
	require.Len(t, state.Requests, 2)
	for _, request := range state.Requests {
		assert.Equal(t, types.WithdrawalClaimed, request.Status)
		assert.NotNil(t, request.ClaimedAt)
	}
}

func TestQueueReservationShieldsBuffer(t *testing.T) {
	f := newFixture(t)
	v := f.vault
	strat := f.addStrategy(t, "aave_dai", "dai")
	require.NoError(t, v.SetAutoAllocateThreshold(governor, unit(1_000_000)))

	_, err := v.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)
	require.NoError(t, v.ConfigureWithdrawalQueue(governor, "dai"))

	_, err = v.RequestWithdrawal(alice, unit(400))
	require.NoError(t, err)
	_, err = v.AddQueueLiquidity(strategist)
	require.NoError(t, err)

	// Allocation may deploy only the unreserved part of the buffer.
	require.NoError(t, v.SetAssetDefaultStrategy(governor, "dai", "aave_dai"))
	transfers, err := v.Allocate(strategist)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.True(t, transfers[0].Amount.Equal(unit(600)), "deployed %s", transfers[0].Amount)

	// A redeem cannot spend the reserved funds either: the shortfall comes
	// out of the strategy and the reservation stays whole.
	_, err = v.Redeem(alice, "dai", unit(600), sdkmath.ZeroInt())
	require.NoError(t, err)
	deployed, err := strat.CheckBalance("dai")
	require.NoError(t, err)
	assert.True(t, deployed.IsZero())

	paid, err := v.ClaimWithdrawal(alice, 1)
	require.NoError(t, err)
	assert.True(t, paid.Equal(unit(400)))
}

func TestCancelWithdrawal(t *testing.T) {
	f, strat := deployedFixture(t)
	v := f.vault

	r1, err := v.RequestWithdrawal(alice, unit(300))
	require.NoError(t, err)
	r2, err := v.RequestWithdrawal(alice, unit(300))
	require.NoError(t, err)
	assert.True(t, f.token.BalanceOf(alice).Equal(unit(400)))

	assert.ErrorIs(t, v.CancelWithdrawal(bob, r1.ID), ErrNotRequester)
	assert.ErrorIs(t, v.CancelWithdrawal(alice, 99), ErrUnknownRequest)

	// Cancelling the head re-mints the burned units and slides the second
	// request forward in the queue.
	require.NoError(t, v.CancelWithdrawal(alice, r1.ID))
	assert.True(t, f.token.BalanceOf(alice).Equal(unit(700)))

	state := v.Queue()
	assert.True(t, state.QueuedTotal.Equal(unit(300)))
	require.Len(t, state.Requests, 2)
	assert.Equal(t, types.WithdrawalCancelled, state.Requests[0].Status)
	assert.True(t, state.Requests[1].QueuedTotal.Equal(unit(300)))

	// 300 of liquidity now covers the surviving request.
	require.NoError(t, strat.Withdraw(vaultAccount, "dai", unit(300)))
	_, err = v.AddQueueLiquidity(strategist)
	require.NoError(t, err)

	// Claimable and claimed requests can no longer be cancelled.
	assert.ErrorIs(t, v.CancelWithdrawal(alice, r2.ID), ErrInvalidParameter)
	paid, err := v.ClaimWithdrawal(alice, r2.ID)
	require.NoError(t, err)
	assert.True(t, paid.Equal(unit(300)))
	assert.ErrorIs(t, v.CancelWithdrawal(alice, r2.ID), ErrInvalidParameter)

	// A cancelled request stays cancelled.
	assert.ErrorIs(t, v.CancelWithdrawal(alice, r1.ID), ErrInvalidParameter)
}
