package strategy

import (
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-money/svm/internal/logger"
	"github.com/meridian-money/svm/internal/types"
)

var handleLogger = logger.GetForComponent("strategy_handle")

// Handle decouples a strategy's identity from the code currently running it.
// The registry and asset defaults hold Handles; swapping the implementation
// with Upgrade leaves every reference intact, the way an upgradeable proxy
// keeps its address across implementation changes.
type Handle struct {
	id types.StrategyID

	mu      sync.RWMutex
	impl    Strategy
	version int
}

// NewHandle wraps an implementation under the stable identifier id.
func NewHandle(id types.StrategyID, impl Strategy) *Handle {
	return &Handle{id: id, impl: impl, version: 1}
}

// Upgrade swaps the implementation. The handle's identity is unchanged.
func (h *Handle) Upgrade(impl Strategy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.impl = impl
	h.version++
	handleLogger.Info().
		Str("strategy", string(h.id)).
		Int("version", h.version).
		Msg("Strategy implementation upgraded")
}

// Version returns the current implementation version.
func (h *Handle) Version() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version
}

func (h *Handle) current() (Strategy, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.impl == nil {
		return nil, ErrNoImplementation
	}
	return h.impl, nil
}

// ID implements Strategy. Always the handle's own stable identifier.
func (h *Handle) ID() types.StrategyID {
	return h.id
}

// Deposit implements Strategy.
func (h *Handle) Deposit(asset types.AssetID, amount sdkmath.Int) error {
	impl, err := h.current()
	if err != nil {
		return err
	}
	return impl.Deposit(asset, amount)
}

// DepositAll implements Strategy.
func (h *Handle) DepositAll() error {
	impl, err := h.current()
	if err != nil {
		return err
	}
	return impl.DepositAll()
}

// Withdraw implements Strategy.
func (h *Handle) Withdraw(recipient string, asset types.AssetID, amount sdkmath.Int) error {
	impl, err := h.current()
	if err != nil {
		return err
	}
	return impl.Withdraw(recipient, asset, amount)
}

// WithdrawAll implements Strategy.
func (h *Handle) WithdrawAll(recipient string) error {
	impl, err := h.current()
	if err != nil {
		return err
	}
	return impl.WithdrawAll(recipient)
}

// CheckBalance implements Strategy.
func (h *Handle) CheckBalance(asset types.AssetID) (sdkmath.Int, error) {
	impl, err := h.current()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return impl.CheckBalance(asset)
}

// SupportsAsset implements Strategy.
func (h *Handle) SupportsAsset(asset types.AssetID) bool {
	impl, err := h.current()
	if err != nil {
		return false
	}
	return impl.SupportsAsset(asset)
}
