/*
This file contains common utility functions for converting between native
asset units and the 18-decimal unit of account, and for basis-point math.
Every division states its rounding direction explicitly: floor for amounts
owed to users, ceiling for amounts owed by users.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// UnitDecimals is the fixed-point precision of the unit of account.
const UnitDecimals = 18

// MaxAssetDecimals is the largest plausible decimals value for an asset.
const MaxAssetDecimals = 36

// BpsDenominator is the basis-point scale.
const BpsDenominator = 10000

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals = errors.New("asset decimals are invalid")
	ErrAmountNil       = errors.New("amount is nil")
	ErrAmountNegative  = errors.New("amount is negative")
	ErrInvalidBps      = errors.New("basis points out of range")
	ErrPriceInvalid    = errors.New("price is not positive")
)

// Pow10 returns 10^n as an Int. n must be within [0, MaxAssetDecimals].
func Pow10(n uint8) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, int(n))
}

// ScaleToUnit converts a native asset amount into 18-decimal unit-of-account
// scale, before any price is applied. Rounds down when the asset carries more
// than 18 decimals.
func ScaleToUnit(amount sdkmath.Int, decimals uint8) (sdkmath.Int, error) {
	if err := validateAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if decimals > MaxAssetDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	if decimals <= UnitDecimals {
		return amount.Mul(Pow10(UnitDecimals - decimals)), nil
	}
	return amount.Quo(Pow10(decimals - UnitDecimals)), nil
}

// ScaleFromUnitFloor converts an 18-decimal amount back into native asset
// units, rounding down.
func ScaleFromUnitFloor(units sdkmath.Int, decimals uint8) (sdkmath.Int, error) {
	if err := validateAmount(units); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if decimals > MaxAssetDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	if decimals >= UnitDecimals {
		return units.Mul(Pow10(decimals - UnitDecimals)), nil
	}
	return units.Quo(Pow10(UnitDecimals - decimals)), nil
}

// ScaleFromUnitCeil converts an 18-decimal amount back into native asset
// units, rounding up.
func ScaleFromUnitCeil(units sdkmath.Int, decimals uint8) (sdkmath.Int, error) {
	if err := validateAmount(units); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if decimals > MaxAssetDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	if decimals >= UnitDecimals {
		return units.Mul(Pow10(decimals - UnitDecimals)), nil
	}
	divisor := Pow10(UnitDecimals - decimals)
	out := units.Quo(divisor)
	if !units.Mod(divisor).IsZero() {
		out = out.AddRaw(1)
	}
	return out, nil
}

// MulDecFloor multiplies an integer amount by a decimal factor, rounding down.
func MulDecFloor(amount sdkmath.Int, factor sdkmath.LegacyDec) (sdkmath.Int, error) {
	if err := validateAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if factor.IsNil() || factor.IsNegative() {
		return sdkmath.ZeroInt(), ErrPriceInvalid
	}
	return sdkmath.LegacyNewDecFromInt(amount).MulTruncate(factor).TruncateInt(), nil
}

// MulDecCeil multiplies an integer amount by a decimal factor, rounding up.
func MulDecCeil(amount sdkmath.Int, factor sdkmath.LegacyDec) (sdkmath.Int, error) {
	if err := validateAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if factor.IsNil() || factor.IsNegative() {
		return sdkmath.ZeroInt(), ErrPriceInvalid
	}
	return sdkmath.LegacyNewDecFromInt(amount).MulRoundUp(factor).Ceil().TruncateInt(), nil
}

// QuoDecFloor divides an integer amount by a decimal factor, rounding down.
// The factor must be strictly positive.
func QuoDecFloor(amount sdkmath.Int, factor sdkmath.LegacyDec) (sdkmath.Int, error) {
	if err := validateAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if factor.IsNil() || !factor.IsPositive() {
		return sdkmath.ZeroInt(), ErrPriceInvalid
	}
	return sdkmath.LegacyNewDecFromInt(amount).QuoTruncate(factor).TruncateInt(), nil
}

// BpsToDec converts basis points into a decimal fraction.
func BpsToDec(bps uint32) (sdkmath.LegacyDec, error) {
	if bps > BpsDenominator {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %d", ErrInvalidBps, bps)
	}
	return sdkmath.LegacyNewDec(int64(bps)).Quo(sdkmath.LegacyNewDec(BpsDenominator)), nil
}

// MulBpsFloor applies a basis-point fraction to an amount, rounding down.
func MulBpsFloor(amount sdkmath.Int, bps uint32) (sdkmath.Int, error) {
	if err := validateAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if bps > BpsDenominator {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrInvalidBps, bps)
	}
	return amount.MulRaw(int64(bps)).QuoRaw(BpsDenominator), nil
}

func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return ErrAmountNil
	}
	if amount.IsNegative() {
		return ErrAmountNegative
	}
	return nil
}
