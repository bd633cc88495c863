/*

Governance gates every configuration-mutating vault entry point. Ownership
moves through an explicit two-step transfer: the governor nominates a pending
governor, and only the nominee's claim completes the handover
(Owned(X) -> PendingTransfer(X,Y) -> Owned(Y)).

*/

package governance

import (
	"errors"
	"fmt"
	"sync"

	"github.com/meridian-money/svm/internal/logger"
)

var govLogger = logger.GetForComponent("governance")

var (
	ErrNotGovernor        = errors.New("caller is not the governor")
	ErrNotStrategist      = errors.New("caller is not the strategist")
	ErrNotPendingGovernor = errors.New("caller is not the pending governor")
	ErrEmptyAccount       = errors.New("account cannot be empty")
)

// Authority tracks the governor and strategist roles.
type Authority struct {
	mu              sync.RWMutex
	governor        string
	pendingGovernor string
	strategist      string
}

// NewAuthority creates an authority owned by governor.
func NewAuthority(governor string) (*Authority, error) {
	if governor == "" {
		return nil, ErrEmptyAccount
	}
	return &Authority{governor: governor}, nil
}

// Governor returns the current governor.
func (a *Authority) Governor() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.governor
}

// PendingGovernor returns the nominee of an in-flight transfer, or empty.
func (a *Authority) PendingGovernor() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pendingGovernor
}

// Strategist returns the configured strategist, or empty.
func (a *Authority) Strategist() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.strategist
}

// RequireGovernor fails with ErrNotGovernor unless caller is the governor.
func (a *Authority) RequireGovernor(caller string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if caller == "" || caller != a.governor {
		return fmt.Errorf("%w: %q", ErrNotGovernor, caller)
	}
	return nil
}

// RequireStrategist passes for the strategist or the governor.
func (a *Authority) RequireStrategist(caller string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if caller != "" && (caller == a.strategist || caller == a.governor) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrNotStrategist, caller)
}

// SetStrategist assigns the strategist role. Governor only.
func (a *Authority) SetStrategist(caller, strategist string) error {
	if err := a.RequireGovernor(caller); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.strategist = strategist
	govLogger.Info().Str("strategist", strategist).Msg("Strategist updated")
	return nil
}

// TransferGovernance nominates a pending governor. Governor only. The current
// governor keeps full control until the nominee claims.
func (a *Authority) TransferGovernance(caller, nominee string) error {
	if err := a.RequireGovernor(caller); err != nil {
		return err
	}
	if nominee == "" {
		return ErrEmptyAccount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingGovernor = nominee
	govLogger.Info().
		Str("governor", a.governor).
		Str("pending_governor", nominee).
		Msg("Governance transfer initiated")
	return nil
}

// ClaimGovernance completes an in-flight transfer. Only the nominee may claim.
func (a *Authority) ClaimGovernance(caller string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pendingGovernor == "" || caller != a.pendingGovernor {
		return fmt.Errorf("%w: %q", ErrNotPendingGovernor, caller)
	}
	previous := a.governor
	a.governor = a.pendingGovernor
	a.pendingGovernor = ""
	govLogger.Info().
		Str("previous_governor", previous).
		Str("governor", a.governor).
		Msg("Governance transfer claimed")
	return nil
}
