package vault

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-money/svm/internal/oracle"
	"github.com/meridian-money/svm/internal/types"
)

func TestTotalValueNormalizesDecimals(t *testing.T) {
	f := newFixture(t)

	// 1000 DAI at 18 decimals and 1000 USDC at 6 decimals each mint the same
	// number of units.
	daiUnits, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, daiUnits.Equal(unit(1_000)), "dai units %s", daiUnits)

	usdcUnits, err := f.vault.Mint(alice, "usdc", sdkmath.NewInt(1_000_000_000), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, usdcUnits.Equal(unit(1_000)), "usdc units %s", usdcUnits)

	value, err := f.vault.TotalValue()
	require.NoError(t, err)
	assert.True(t, value.Equal(unit(2_000)), "total value %s", value)
	assert.True(t, f.token.TotalSupply().Equal(unit(2_000)))
}

func TestCheckAssetBalanceSpansStrategies(t *testing.T) {
	f := newFixture(t)
	strat := f.addStrategy(t, "aave_dai", "dai")
	require.NoError(t, f.vault.SetAssetDefaultStrategy(governor, "dai", "aave_dai"))
	require.NoError(t, f.vault.SetVaultBuffer(governor, 200))

	_, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)

	// The aggregate is unchanged by where the funds sit.
	total, err := f.vault.CheckAssetBalance("dai")
	require.NoError(t, err)
	assert.True(t, total.Equal(unit(1_000)), "aggregate %s", total)

	deployed, err := strat.CheckBalance("dai")
	require.NoError(t, err)
	assert.True(t, deployed.Equal(unit(980)))

	_, err = f.vault.CheckAssetBalance("frax")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestExchangeRateAssetConversion(t *testing.T) {
	f := newFixture(t)

	f.backend.RegisterAsset("reth", 18)
	require.NoError(t, f.backend.SetExchangeRate("reth", sdkmath.LegacyMustNewDecFromStr("1.08")))
	require.NoError(t, f.backend.Faucet("reth", alice, unit(1_000)))
	require.NoError(t, f.oracle.SetPrice("reth", sdkmath.LegacyOneDec()))
	require.NoError(t, f.vault.SupportAsset(governor, "reth", "rETH", types.ConversionExchangeRate))

	// 100 rETH at rate 1.08 backs 108 units.
	units, err := f.vault.Mint(alice, "reth", unit(100), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, units.Equal(unit(108)), "units %s", units)

	value, err := f.vault.TotalValue()
	require.NoError(t, err)
	assert.True(t, value.Equal(unit(108)))

	// Redeeming 54 units pays out 50 rETH at the same rate.
	amount, err := f.vault.Redeem(alice, "reth", unit(54), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, amount.Equal(unit(50)), "amount %s", amount)
}

func TestStalePriceRejectPolicy(t *testing.T) {
	f := newFixture(t)

	_, err := f.vault.Mint(alice, "dai", unit(100), sdkmath.ZeroInt())
	require.NoError(t, err)

	require.NoError(t, f.oracle.SetQuote("dai", oracle.PriceQuote{
		Price: sdkmath.LegacyOneDec(),
		Time:  time.Now().Add(-2 * time.Hour),
	}))

	_, err = f.vault.TotalValue()
	assert.ErrorIs(t, err, ErrOracleStale)

	_, err = f.vault.Mint(alice, "dai", unit(100), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrOracleStale)
}

func TestStalePriceHoldPolicy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vault.SetStalePricePolicy(governor, types.StalePriceHold))

	// A fresh valuation records the last accepted price.
	_, err := f.vault.Mint(alice, "dai", unit(100), sdkmath.ZeroInt())
	require.NoError(t, err)
	_, err = f.vault.TotalValue()
	require.NoError(t, err)

	require.NoError(t, f.oracle.SetQuote("dai", oracle.PriceQuote{
		Price: sdkmath.LegacyOneDec(),
		Time:  time.Now().Add(-2 * time.Hour),
	}))

	// Valuation holds at the last price; mutating operations still reject.
	value, err := f.vault.TotalValue()
	require.NoError(t, err)
	assert.True(t, value.Equal(unit(100)))

	_, err = f.vault.Mint(alice, "dai", unit(100), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrOracleStale)
}

func TestMintRejectsPriceOutsideBand(t *testing.T) {
	f := newFixture(t)

	// 100 bps below reference against a 25 bps default tolerance.
	require.NoError(t, f.oracle.SetPrice("dai", sdkmath.LegacyMustNewDecFromStr("0.99")))
	_, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrPriceSlippage)

	// Widening the band admits the same price, and the mint credits at the
	// discounted price rather than the peg.
	require.NoError(t, f.vault.SetOracleSlippage(governor, "dai", 200))
	units, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, units.Equal(unit(990)), "units %s", units)
}

func TestMintPriceCappedAtReference(t *testing.T) {
	f := newFixture(t)

	// 10 bps above the peg is inside the band, but minting never credits
	// above the reference price.
	require.NoError(t, f.oracle.SetPrice("dai", sdkmath.LegacyMustNewDecFromStr("1.001")))
	units, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, units.Equal(unit(1_000)), "units %s", units)
}

func TestRedeemPriceFlooredAtReference(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vault.SetMaxSupplyDiff(governor, 50))

	_, err := f.vault.Mint(alice, "dai", unit(1_000), sdkmath.ZeroInt())
	require.NoError(t, err)

	// 10 bps below the peg is inside the band, but a redeem never values the
	// outgoing asset below the reference price.
	require.NoError(t, f.oracle.SetPrice("dai", sdkmath.LegacyMustNewDecFromStr("0.999")))
	amount, err := f.vault.Redeem(alice, "dai", unit(500), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, amount.Equal(unit(500)), "amount %s", amount)
}
