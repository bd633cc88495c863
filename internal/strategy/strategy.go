/*

A Strategy is a pluggable yield venue the vault allocates collateral into. The
vault treats every strategy uniformly through this interface and never depends
on what the strategy does with the funds.

*/

package strategy

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/types"
)

var (
	ErrAssetNotSupported = errors.New("strategy does not support asset")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrNoImplementation  = errors.New("strategy handle has no implementation")
)

// Strategy is the capability contract every yield strategy must satisfy.
type Strategy interface {
	// ID returns the stable strategy identifier.
	ID() types.StrategyID

	// Deposit pulls amount of asset from the vault buffer into the strategy.
	Deposit(asset types.AssetID, amount sdkmath.Int) error

	// DepositAll deposits the strategy's entire undeployed holdings.
	DepositAll() error

	// Withdraw sends amount of asset from the strategy to recipient.
	Withdraw(recipient string, asset types.AssetID, amount sdkmath.Int) error

	// WithdrawAll exits every position and sends all holdings to recipient.
	WithdrawAll(recipient string) error

	// CheckBalance reports the strategy's holdings of asset. Read-only.
	CheckBalance(asset types.AssetID) (sdkmath.Int, error)

	// SupportsAsset reports whether the strategy accepts the asset.
	SupportsAsset(asset types.AssetID) bool
}
