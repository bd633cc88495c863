package vault

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-money/svm/internal/governance"
	"github.com/meridian-money/svm/internal/types"
)

func TestRebaseDistributesYieldProRata(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.backend.Faucet("dai", bob, unit(1_000)))

	_, err := f.vault.Mint(alice, "dai", unit(750), sdkmath.ZeroInt())
	require.NoError(t, err)
	_, err = f.vault.Mint(bob, "dai", unit(250), sdkmath.ZeroInt())
	require.NoError(t, err)

	// Simulated strategy yield lands in the vault buffer.
	require.NoError(t, f.backend.Faucet("dai", vaultAccount, unit(100)))

	_, err = f.vault.Rebase(alice)
	assert.ErrorIs(t, err, governance.ErrNotStrategist)

	applied, err := f.vault.Rebase(strategist)
	require.NoError(t, err)
	assert.True(t, applied)

	assert.True(t, f.token.TotalSupply().Equal(unit(1_100)))
	assert.True(t, f.token.BalanceOf(alice).Equal(unit(825)), "alice %s", f.token.BalanceOf(alice))
	assert.True(t, f.token.BalanceOf(bob).Equal(unit(275)), "bob %s", f.token.BalanceOf(bob))

	receipt := f.receipts.last()
	assert.Equal(t, types.OperationRebase, receipt.Kind)
	assert.True(t, receipt.Success)
	assert.True(t, receipt.TokenUnits.Equal(unit(1_100)))
}

func TestRebaseSkipsWithinThreshold(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vault.SetRebaseThreshold(governor, unit(200)))

	_, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)
	require.NoError(t, f.backend.Faucet("dai", vaultAccount, unit(100)))

	applied, err := f.vault.Rebase(strategist)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, f.token.TotalSupply().Equal(unit(1_000)))
	assert.Equal(t, "skipped", f.receipts.last().Message)

	// More yield pushes the divergence past the threshold.
	require.NoError(t, f.backend.Faucet("dai", vaultAccount, unit(150)))
	applied, err = f.vault.Rebase(strategist)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, f.token.TotalSupply().Equal(unit(1_250)))
}

func TestRebaseDownward(t *testing.T) {
	f := newFixture(t)

	_, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)

	// Valuation tracks the oracle; a price drop shrinks supply with it.
	require.NoError(t, f.oracle.SetPrice("dai", sdkmath.LegacyMustNewDecFromStr("0.95")))
	applied, err := f.vault.Rebase(strategist)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, f.token.TotalSupply().Equal(unit(950)))
	assert.True(t, f.token.BalanceOf(alice).Equal(unit(950)))
}

func TestRebaseSkipsZeroSupply(t *testing.T) {
	f := newFixture(t)

	applied, err := f.vault.Rebase(strategist)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRebasePauseGating(t *testing.T) {
	f := newFixture(t)

	_, err := f.vault.Mint(alice, "dai", unit(100), sdkmath.ZeroInt())
	require.NoError(t, err)

	require.NoError(t, f.vault.PauseRebase(strategist))
	_, err = f.vault.Rebase(strategist)
	assert.ErrorIs(t, err, ErrRebasePaused)
	require.NoError(t, f.vault.UnpauseRebase(governor))

	require.NoError(t, f.vault.PauseCapital(strategist))
	_, err = f.vault.Rebase(strategist)
	assert.ErrorIs(t, err, ErrCapitalPaused)
}
