package strategy

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-money/svm/internal/bank"
	"github.com/meridian-money/svm/internal/types"
)

const (
	vaultAccount = "vault"
	stratAccount = "strategy_aave"
)

func newTestBackend(t *testing.T) *bank.Ledger {
	t.Helper()
	ledger := bank.NewLedger()
	ledger.RegisterAsset("dai", 18)
	ledger.RegisterAsset("usdc", 6)
	require.NoError(t, ledger.Faucet("dai", vaultAccount, sdkmath.NewIntWithDecimal(1000, 18)))
	require.NoError(t, ledger.Faucet("usdc", vaultAccount, sdkmath.NewInt(500_000_000)))
	return ledger
}

func TestGenericDepositWithdraw(t *testing.T) {
	backend := newTestBackend(t)
	strat, err := NewGeneric("aave", backend, stratAccount, vaultAccount, []types.AssetID{"dai"})
	require.NoError(t, err)

	amount := sdkmath.NewIntWithDecimal(100, 18)
	require.NoError(t, strat.Deposit("dai", amount))

	balance, err := strat.CheckBalance("dai")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amount))

	require.NoError(t, strat.Withdraw(vaultAccount, "dai", sdkmath.NewIntWithDecimal(40, 18)))
	balance, err = strat.CheckBalance("dai")
	require.NoError(t, err)
	assert.True(t, balance.Equal(sdkmath.NewIntWithDecimal(60, 18)))

	vaultBalance, err := backend.BalanceOf("dai", vaultAccount)
	require.NoError(t, err)
	assert.True(t, vaultBalance.Equal(sdkmath.NewIntWithDecimal(940, 18)))
}

func TestGenericRejectsUnsupportedAsset(t *testing.T) {
	backend := newTestBackend(t)
	strat, err := NewGeneric("aave", backend, stratAccount, vaultAccount, []types.AssetID{"dai"})
	require.NoError(t, err)

	assert.ErrorIs(t, strat.Deposit("usdc", sdkmath.OneInt()), ErrAssetNotSupported)
	assert.ErrorIs(t, strat.Withdraw(vaultAccount, "usdc", sdkmath.OneInt()), ErrAssetNotSupported)
	_, err = strat.CheckBalance("usdc")
	assert.ErrorIs(t, err, ErrAssetNotSupported)

	assert.False(t, strat.SupportsAsset("usdc"))
	assert.True(t, strat.SupportsAsset("dai"))

	assert.ErrorIs(t, strat.Deposit("dai", sdkmath.ZeroInt()), ErrInvalidAmount)
}

func TestGenericWithdrawAll(t *testing.T) {
	backend := newTestBackend(t)
	strat, err := NewGeneric("aave", backend, stratAccount, vaultAccount, []types.AssetID{"dai", "usdc"})
	require.NoError(t, err)

	require.NoError(t, strat.Deposit("dai", sdkmath.NewIntWithDecimal(100, 18)))
	require.NoError(t, strat.Deposit("usdc", sdkmath.NewInt(200_000_000)))

	require.NoError(t, strat.WithdrawAll(vaultAccount))

	for _, asset := range []types.AssetID{"dai", "usdc"} {
		balance, err := strat.CheckBalance(asset)
		require.NoError(t, err)
		assert.True(t, balance.IsZero(), "%s should be fully withdrawn", asset)
	}
}

func TestHandleUpgradeKeepsIdentity(t *testing.T) {
	backend := newTestBackend(t)
	implV1, err := NewGeneric("aave", backend, stratAccount, vaultAccount, []types.AssetID{"dai"})
	require.NoError(t, err)

	handle := NewHandle("aave", implV1)
	assert.Equal(t, types.StrategyID("aave"), handle.ID())
	assert.Equal(t, 1, handle.Version())

	require.NoError(t, handle.Deposit("dai", sdkmath.NewIntWithDecimal(50, 18)))

	// Swap the implementation; the new one supports usdc too.
	implV2, err := NewGeneric("aave", backend, stratAccount, vaultAccount, []types.AssetID{"dai", "usdc"})
	require.NoError(t, err)
	handle.Upgrade(implV2)

	assert.Equal(t, types.StrategyID("aave"), handle.ID())
	assert.Equal(t, 2, handle.Version())
	assert.True(t, handle.SupportsAsset("usdc"))

	// Funds deposited through v1 remain visible through the handle.
	balance, err := handle.CheckBalance("dai")
	require.NoError(t, err)
	assert.True(t, balance.Equal(sdkmath.NewIntWithDecimal(50, 18)))
}

func TestHandleWithoutImplementation(t *testing.T) {
	handle := NewHandle("empty", nil)

	assert.ErrorIs(t, handle.Deposit("dai", sdkmath.OneInt()), ErrNoImplementation)
	assert.ErrorIs(t, handle.Withdraw("vault", "dai", sdkmath.OneInt()), ErrNoImplementation)
	_, err := handle.CheckBalance("dai")
	assert.ErrorIs(t, err, ErrNoImplementation)
	assert.False(t, handle.SupportsAsset("dai"))
	assert.Equal(t, types.StrategyID("empty"), handle.ID())
}
