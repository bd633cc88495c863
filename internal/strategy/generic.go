/*
Generic is the in-process reference strategy: it parks funds in its own backend
account, in the shape of a simple lending market. Concrete venue adapters
implement the same interface out of tree.
*/

package strategy

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/bank"
	"github.com/meridian-money/svm/internal/logger"
	"github.com/meridian-money/svm/internal/types"
)

var strategyLogger = logger.GetForComponent("strategy")

// Generic holds deposited collateral in a dedicated backend account.
type Generic struct {
	id           types.StrategyID
	backend      bank.AssetBackend
	account      string
	vaultAccount string
	supported    map[types.AssetID]bool
}

// NewGeneric creates a strategy identified by id that moves funds between
// vaultAccount and its own account on the backend.
func NewGeneric(id types.StrategyID, backend bank.AssetBackend, account, vaultAccount string, assets []types.AssetID) (*Generic, error) {
	if backend == nil {
		return nil, fmt.Errorf("asset backend cannot be nil")
	}
	if account == "" || vaultAccount == "" {
		return nil, fmt.Errorf("strategy and vault accounts are required")
	}
	supported := make(map[types.AssetID]bool, len(assets))
	for _, asset := range assets {
		supported[asset] = true
	}
	return &Generic{
		id:           id,
		backend:      backend,
		account:      account,
		vaultAccount: vaultAccount,
		supported:    supported,
	}, nil
}

// ID implements Strategy.
func (g *Generic) ID() types.StrategyID {
	return g.id
}

// Deposit implements Strategy.
func (g *Generic) Deposit(asset types.AssetID, amount sdkmath.Int) error {
	if !g.supported[asset] {
		return fmt.Errorf("%w: %s does not accept %s", ErrAssetNotSupported, g.id, asset)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := g.backend.Transfer(asset, g.vaultAccount, g.account, amount); err != nil {
		return fmt.Errorf("deposit transfer failed: %w", err)
	}
	strategyLogger.Debug().
		Str("strategy", string(g.id)).
		Str("asset", string(asset)).
		Str("amount", amount.String()).
		Msg("Deposit")
	return nil
}

// DepositAll implements Strategy. A no-op for the generic strategy: funds are
// deployed the moment Deposit moves them.
func (g *Generic) DepositAll() error {
	return nil
}

// Withdraw implements Strategy.
func (g *Generic) Withdraw(recipient string, asset types.AssetID, amount sdkmath.Int) error {
	if !g.supported[asset] {
		return fmt.Errorf("%w: %s does not hold %s", ErrAssetNotSupported, g.id, asset)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := g.backend.Transfer(asset, g.account, recipient, amount); err != nil {
		return fmt.Errorf("withdraw transfer failed: %w", err)
	}
	strategyLogger.Debug().
		Str("strategy", string(g.id)).
		Str("asset", string(asset)).
		Str("amount", amount.String()).
		Str("recipient", recipient).
		Msg("Withdraw")
	return nil
}

// WithdrawAll implements Strategy.
func (g *Generic) WithdrawAll(recipient string) error {
	for asset := range g.supported {
		balance, err := g.backend.BalanceOf(asset, g.account)
		if err != nil {
			return fmt.Errorf("balance query failed for %s: %w", asset, err)
		}
		if balance.IsZero() {
			continue
		}
		if err := g.backend.Transfer(asset, g.account, recipient, balance); err != nil {
			return fmt.Errorf("withdraw-all transfer failed for %s: %w", asset, err)
		}
	}
	return nil
}

// CheckBalance implements Strategy.
func (g *Generic) CheckBalance(asset types.AssetID) (sdkmath.Int, error) {
	if !g.supported[asset] {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s does not hold %s", ErrAssetNotSupported, g.id, asset)
	}
	return g.backend.BalanceOf(asset, g.account)
}

// SupportsAsset implements Strategy.
func (g *Generic) SupportsAsset(asset types.AssetID) bool {
	return g.supported[asset]
}
