/*

The bank package models the external asset-token layer the vault does not own:
token metadata, balances, and transfers. The vault only ever talks to the
AssetBackend interface; Ledger is the in-process implementation used for tests
and local operation.

*/

package bank

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/types"
)

var (
	ErrUnknownAsset      = errors.New("asset is not known to the backend")
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrNoExchangeRate    = errors.New("asset has no exchange rate")
)

// AssetBackend is the vault's view of the external token contracts.
type AssetBackend interface {
	// Decimals returns the asset's decimals. Queried once when an asset is
	// supported; the vault caches the answer.
	Decimals(asset types.AssetID) (uint8, error)

	// BalanceOf returns the asset balance held by an account.
	BalanceOf(asset types.AssetID, account string) (sdkmath.Int, error)

	// Transfer moves asset units between accounts.
	Transfer(asset types.AssetID, from, to string, amount sdkmath.Int) error

	// ExchangeRate returns the underlying-per-share rate for exchange-rate
	// mode assets. Plain assets return ErrNoExchangeRate.
	ExchangeRate(asset types.AssetID) (sdkmath.LegacyDec, error)
}

type assetRecord struct {
	decimals uint8
	rate     sdkmath.LegacyDec // nil for plain assets
	balances map[string]sdkmath.Int
}

// Ledger is an in-memory AssetBackend.
type Ledger struct {
	mu     sync.RWMutex
	assets map[types.AssetID]*assetRecord
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{assets: make(map[types.AssetID]*assetRecord)}
}

// RegisterAsset makes an asset known to the ledger with the given decimals.
func (l *Ledger) RegisterAsset(asset types.AssetID, decimals uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[asset]; ok {
		return
	}
	l.assets[asset] = &assetRecord{
		decimals: decimals,
		balances: make(map[string]sdkmath.Int),
	}
}

// SetExchangeRate marks an asset as exchange-rate based and sets its rate.
func (l *Ledger) SetExchangeRate(asset types.AssetID, rate sdkmath.LegacyDec) error {
	if rate.IsNil() || !rate.IsPositive() {
		return fmt.Errorf("%w: exchange rate must be positive", ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.assets[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	record.rate = rate
	return nil
}

// Faucet credits an account out of thin air. Test and local-mode helper.
func (l *Ledger) Faucet(asset types.AssetID, account string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.assets[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	record.balances[account] = l.balance(record, account).Add(amount)
	return nil
}

// Decimals implements AssetBackend.
func (l *Ledger) Decimals(asset types.AssetID) (uint8, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.assets[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return record.decimals, nil
}

// BalanceOf implements AssetBackend.
func (l *Ledger) BalanceOf(asset types.AssetID, account string) (sdkmath.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.assets[asset]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return l.balance(record, account), nil
}

// Transfer implements AssetBackend.
func (l *Ledger) Transfer(asset types.AssetID, from, to string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.assets[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	fromBalance := l.balance(record, from)
	if fromBalance.LT(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientFunds, from, fromBalance, asset, amount)
	}
	record.balances[from] = fromBalance.Sub(amount)
	record.balances[to] = l.balance(record, to).Add(amount)
	return nil
}

// ExchangeRate implements AssetBackend.
func (l *Ledger) ExchangeRate(asset types.AssetID) (sdkmath.LegacyDec, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.assets[asset]
	if !ok {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if record.rate.IsNil() {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s", ErrNoExchangeRate, asset)
	}
	return record.rate, nil
}

func (l *Ledger) balance(record *assetRecord, account string) sdkmath.Int {
	if b, ok := record.balances[account]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}
