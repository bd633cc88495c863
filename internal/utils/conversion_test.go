package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleToUnit(t *testing.T) {
	tests := []struct {
		name     string
		amount   sdkmath.Int
		decimals uint8
		expected sdkmath.Int
	}{
		{
			name:     "18 decimals unchanged",
			amount:   sdkmath.NewInt(1_000_000),
			decimals: 18,
			expected: sdkmath.NewInt(1_000_000),
		},
		{
			name:     "6 decimals scales up",
			amount:   sdkmath.NewInt(1_000_000), // 1.0 USDC
			decimals: 6,
			expected: sdkmath.NewIntWithDecimal(1, 18),
		},
		{
			name:     "0 decimals scales up",
			amount:   sdkmath.NewInt(3),
			decimals: 0,
			expected: sdkmath.NewIntWithDecimal(3, 18),
		},
		{
			name:     "24 decimals scales down with truncation",
			amount:   sdkmath.NewInt(1_999_999),
			decimals: 24,
			expected: sdkmath.NewInt(1),
		},
		{
			name:     "zero amount",
			amount:   sdkmath.ZeroInt(),
			decimals: 6,
			expected: sdkmath.ZeroInt(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScaleToUnit(tt.amount, tt.decimals)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %s, want %s", got, tt.expected)
		})
	}
}

func TestScaleToUnitRejectsBadInput(t *testing.T) {
	_, err := ScaleToUnit(sdkmath.NewInt(1), 37)
	assert.ErrorIs(t, err, ErrInvalidDecimals)

	_, err = ScaleToUnit(sdkmath.Int{}, 18)
	assert.ErrorIs(t, err, ErrAmountNil)

	_, err = ScaleToUnit(sdkmath.NewInt(-1), 18)
	assert.ErrorIs(t, err, ErrAmountNegative)
}

func TestScaleFromUnitRounding(t *testing.T) {
	// 1.5 units at 6 decimals: floor truncates, ceil rounds up.
	units := sdkmath.NewInt(1_500_000_000_000).AddRaw(1) // not an exact multiple

	floor, err := ScaleFromUnitFloor(units, 6)
	require.NoError(t, err)
	ceil, err := ScaleFromUnitCeil(units, 6)
	require.NoError(t, err)

	assert.True(t, ceil.Sub(floor).Equal(sdkmath.OneInt()))

	// Exact multiples agree in both directions.
	exact := sdkmath.NewIntWithDecimal(7, 12)
	floor, err = ScaleFromUnitFloor(exact, 6)
	require.NoError(t, err)
	ceil, err = ScaleFromUnitCeil(exact, 6)
	require.NoError(t, err)
	assert.True(t, floor.Equal(ceil))

	// Scaling up to more decimals is always exact.
	up, err := ScaleFromUnitFloor(sdkmath.NewInt(5), 24)
	require.NoError(t, err)
	assert.True(t, up.Equal(sdkmath.NewIntWithDecimal(5, 6)))
}

func TestMulDecRounding(t *testing.T) {
	amount := sdkmath.NewInt(1000)
	price := sdkmath.LegacyMustNewDecFromStr("0.9995")

	floor, err := MulDecFloor(amount, price)
	require.NoError(t, err)
	assert.True(t, floor.Equal(sdkmath.NewInt(999)))

	ceil, err := MulDecCeil(amount, price)
	require.NoError(t, err)
	assert.True(t, ceil.Equal(sdkmath.NewInt(1000)))

	_, err = MulDecFloor(amount, sdkmath.LegacyDec{})
	assert.ErrorIs(t, err, ErrPriceInvalid)
}

func TestQuoDecFloor(t *testing.T) {
	amount := sdkmath.NewInt(1000)

	got, err := QuoDecFloor(amount, sdkmath.LegacyMustNewDecFromStr("3"))
	require.NoError(t, err)
	assert.True(t, got.Equal(sdkmath.NewInt(333)))

	_, err = QuoDecFloor(amount, sdkmath.LegacyZeroDec())
	assert.ErrorIs(t, err, ErrPriceInvalid)
}

func TestQuoDecFloorAtPrecisionBoundary(t *testing.T) {
	// 2 / 2.000000000000000001 is a hair under 1. Half-away rounding at the
	// 18th decimal would carry the quotient up to a full unit; the floor
	// contract requires zero.
	got, err := QuoDecFloor(sdkmath.NewInt(2), sdkmath.LegacyMustNewDecFromStr("2.000000000000000001"))
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "got %s", got)
}

func TestBpsMath(t *testing.T) {
	fee, err := MulBpsFloor(sdkmath.NewInt(1000), 50)
	require.NoError(t, err)
	assert.True(t, fee.Equal(sdkmath.NewInt(5)))

	// Sub-bps remainders are dropped.
	fee, err = MulBpsFloor(sdkmath.NewInt(199), 50)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())

	_, err = MulBpsFloor(sdkmath.NewInt(1000), 10001)
	assert.ErrorIs(t, err, ErrInvalidBps)

	frac, err := BpsToDec(200)
	require.NoError(t, err)
	assert.True(t, frac.Equal(sdkmath.LegacyMustNewDecFromStr("0.02")))
}
