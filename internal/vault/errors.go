/*

Error taxonomy for the vault core. Every failure is surfaced as one of these
sentinels (wrapped with call-site context) and leaves no partial state behind:
configuration errors reject before anything moves, economic errors roll the
whole operation back, and oracle errors are never papered over with a guessed
price.

*/

package vault

import "errors"

// Configuration errors. Caller mistakes, rejected before any state change.
var (
	ErrUnsupportedAsset            = errors.New("asset is not supported")
	ErrAlreadySupported            = errors.New("asset is already supported")
	ErrStrategyNotApproved         = errors.New("strategy is not approved")
	ErrAlreadyApproved             = errors.New("strategy is already approved")
	ErrAssetNotSupportedByStrategy = errors.New("strategy does not support asset")
	ErrStrategyStillDefault        = errors.New("strategy is still an asset default")
	ErrInvalidParameter            = errors.New("parameter out of range")
)

// Economic and solvency errors. The entire operation rolls back atomically.
var (
	ErrInsolvent             = errors.New("operation would leave vault insolvent")
	ErrPriceSlippage         = errors.New("price outside tolerated band")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity across buffer and strategies")
	ErrNonZeroBalance        = errors.New("asset balance is not zero")
	ErrAllocationFailed      = errors.New("allocation failed")
	ErrCapitalPaused         = errors.New("capital movements are paused")
	ErrRebasePaused          = errors.New("rebase is paused")
)

// Oracle errors. Surfaced rather than silently defaulted.
var (
	ErrOracleStale         = errors.New("oracle price is stale")
	ErrDecimalsUnavailable = errors.New("asset decimals unavailable or implausible")
)

// Withdrawal-queue errors.
var (
	ErrQueueNotConfigured  = errors.New("withdrawal queue is not configured")
	ErrNotClaimable        = errors.New("withdrawal request is not claimable yet")
	ErrUnknownRequest      = errors.New("withdrawal request not found")
	ErrNotRequester        = errors.New("caller did not create this request")
	ErrInsufficientBalance = errors.New("token balance too low")
)
