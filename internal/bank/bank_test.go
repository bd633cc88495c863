package bank

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerTransfers(t *testing.T) {
	ledger := NewLedger()
	ledger.RegisterAsset("usdc", 6)
	require.NoError(t, ledger.Faucet("usdc", "alice", sdkmath.NewInt(1_000_000)))

	require.NoError(t, ledger.Transfer("usdc", "alice", "bob", sdkmath.NewInt(400_000)))

	aliceBalance, err := ledger.BalanceOf("usdc", "alice")
	require.NoError(t, err)
	assert.True(t, aliceBalance.Equal(sdkmath.NewInt(600_000)))

	bobBalance, err := ledger.BalanceOf("usdc", "bob")
	require.NoError(t, err)
	assert.True(t, bobBalance.Equal(sdkmath.NewInt(400_000)))

	err = ledger.Transfer("usdc", "bob", "alice", sdkmath.NewInt(500_000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Zero-amount transfers are a no-op, negative ones an error.
	assert.NoError(t, ledger.Transfer("usdc", "alice", "bob", sdkmath.ZeroInt()))
	assert.ErrorIs(t, ledger.Transfer("usdc", "alice", "bob", sdkmath.NewInt(-1)), ErrInvalidAmount)
}

func TestLedgerUnknownAsset(t *testing.T) {
	ledger := NewLedger()

	_, err := ledger.Decimals("dai")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = ledger.BalanceOf("dai", "alice")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	assert.ErrorIs(t, ledger.Transfer("dai", "a", "b", sdkmath.OneInt()), ErrUnknownAsset)
	assert.ErrorIs(t, ledger.Faucet("dai", "a", sdkmath.OneInt()), ErrUnknownAsset)
}

func TestExchangeRate(t *testing.T) {
	ledger := NewLedger()
	ledger.RegisterAsset("reth", 18)

	_, err := ledger.ExchangeRate("reth")
	assert.ErrorIs(t, err, ErrNoExchangeRate)

	rate := sdkmath.LegacyMustNewDecFromStr("1.08")
	require.NoError(t, ledger.SetExchangeRate("reth", rate))

	got, err := ledger.ExchangeRate("reth")
	require.NoError(t, err)
	assert.True(t, got.Equal(rate))

	assert.Error(t, ledger.SetExchangeRate("reth", sdkmath.LegacyZeroDec()))
	assert.ErrorIs(t, ledger.SetExchangeRate("unknown", rate), ErrUnknownAsset)
}

func TestRegisterAssetIsIdempotent(t *testing.T) {
	ledger := NewLedger()
	ledger.RegisterAsset("usdc", 6)
	require.NoError(t, ledger.Faucet("usdc", "alice", sdkmath.NewInt(100)))

	// Re-registering must not wipe balances.
	ledger.RegisterAsset("usdc", 8)

	decimals, err := ledger.Decimals("usdc")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	balance, err := ledger.BalanceOf("usdc", "alice")
	require.NoError(t, err)
	assert.True(t, balance.Equal(sdkmath.NewInt(100)))
}
