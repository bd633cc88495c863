/*

The token package holds the vault's view of the rebasing token ledger: mint,
burn, supply, and the rebase hook the keeper drives off backing value. Only as
much of the credit arithmetic as the vault needs is implemented; balances are
credits scaled by a supply factor so a rebase touches one number, not every
holder.

*/

package token

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInsufficientBalance = errors.New("token balance too low")
	ErrInvalidUnits        = errors.New("token units must be positive")
	ErrNoSupply            = errors.New("cannot rebase with zero supply")
)

// Ledger is the token-ledger interface the vault mints and burns against.
type Ledger interface {
	Mint(to string, units sdkmath.Int) error
	Burn(from string, units sdkmath.Int) error
	TotalSupply() sdkmath.Int
	BalanceOf(holder string) sdkmath.Int
	// Rebase scales all balances pro-rata so that TotalSupply becomes
	// newSupply. Holders' relative shares are unchanged.
	Rebase(newSupply sdkmath.Int) error
}

// Rebasing is the in-process Ledger implementation. 18-decimal units.
type Rebasing struct {
	mu           sync.RWMutex
	credits      map[string]sdkmath.Int
	totalCredits sdkmath.Int
	// factor is units per credit; starts at 1 and moves only on rebase.
	factor sdkmath.LegacyDec
}

// NewRebasing creates an empty token ledger.
func NewRebasing() *Rebasing {
	return &Rebasing{
		credits:      make(map[string]sdkmath.Int),
		totalCredits: sdkmath.ZeroInt(),
		factor:       sdkmath.LegacyOneDec(),
	}
}

// Mint credits units to a holder.
func (r *Rebasing) Mint(to string, units sdkmath.Int) error {
	if units.IsNil() || !units.IsPositive() {
		return ErrInvalidUnits
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	credits := sdkmath.LegacyNewDecFromInt(units).Quo(r.factor).TruncateInt()
	r.credits[to] = r.creditBalance(to).Add(credits)
	r.totalCredits = r.totalCredits.Add(credits)
	return nil
}

// Burn removes units from a holder. Credits round up so rounding never favors
// the holder over the protocol.
func (r *Rebasing) Burn(from string, units sdkmath.Int) error {
	if units.IsNil() || !units.IsPositive() {
		return ErrInvalidUnits
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	credits := sdkmath.LegacyNewDecFromInt(units).Quo(r.factor).Ceil().TruncateInt()
	held := r.creditBalance(from)
	if held.LT(credits) {
		heldUnits := r.factor.MulInt(held).TruncateInt()
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, heldUnits, units)
	}
	r.credits[from] = held.Sub(credits)
	r.totalCredits = r.totalCredits.Sub(credits)
	return nil
}

// TotalSupply returns the current supply in units.
func (r *Rebasing) TotalSupply() sdkmath.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factor.MulInt(r.totalCredits).TruncateInt()
}

// BalanceOf returns a holder's balance in units.
func (r *Rebasing) BalanceOf(holder string) sdkmath.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factor.MulInt(r.creditBalance(holder)).TruncateInt()
}

// Rebase implements Ledger.
func (r *Rebasing) Rebase(newSupply sdkmath.Int) error {
	if newSupply.IsNil() || newSupply.IsNegative() {
		return ErrInvalidUnits
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.totalCredits.IsZero() {
		return ErrNoSupply
	}
	r.factor = sdkmath.LegacyNewDecFromInt(newSupply).Quo(sdkmath.LegacyNewDecFromInt(r.totalCredits))
	return nil
}

func (r *Rebasing) creditBalance(holder string) sdkmath.Int {
	if c, ok := r.credits[holder]; ok {
		return c
	}
	return sdkmath.ZeroInt()
}
