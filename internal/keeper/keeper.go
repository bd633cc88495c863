package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meridian-money/svm/internal/logger"
	"github.com/meridian-money/svm/internal/state"
	"github.com/meridian-money/svm/internal/token"
	"github.com/meridian-money/svm/internal/types"
	"github.com/meridian-money/svm/internal/vault"
)

// Keeper drives the periodic maintenance cycle: allocate excess buffer funds
// to strategies, advance the withdrawal queue watermark, rebase supply onto
// backing value and persist a snapshot of the result.
type Keeper struct {
	logger zerolog.Logger
	vault  *vault.Vault
	token  token.Ledger

	// strategist is the account the keeper acts as. It must hold the
	// strategist role on the vault.
	strategist string

	cycleCount int
}

// Config holds the configuration for creating a new Keeper instance
type Config struct {
	Vault      *vault.Vault
	Token      token.Ledger
	Strategist string
}

// NewKeeper creates a new Keeper instance with dependency injection
func NewKeeper(cfg Config) (*Keeper, error) {
	if err := validateKeeperConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}

	keeper := &Keeper{
		logger:     logger.GetForComponent("keeper"),
		vault:      cfg.Vault,
		token:      cfg.Token,
		strategist: cfg.Strategist,
		cycleCount: 0,
	}

	keeper.logger.Info().
		Str("strategist", keeper.strategist).
		Msg("Keeper instance created successfully")

	return keeper, nil
}

// validateKeeperConfig validates the Keeper configuration
func validateKeeperConfig(cfg Config) error {
	if cfg.Vault == nil {
		return fmt.Errorf("vault cannot be nil")
	}
	if cfg.Token == nil {
		return fmt.Errorf("token ledger cannot be nil")
	}
	if cfg.Strategist == "" {
		return fmt.Errorf("strategist account cannot be empty")
	}
	return nil
}

// RunLoop starts the main keeper loop with the specified interval
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	k.logger.Info().
		Dur("interval", interval).
		Msg("Starting keeper main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	k.runCountedCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			k.runCountedCycle(ctx)
		}
	}
}

func (k *Keeper) runCountedCycle(ctx context.Context) {
	k.cycleCount++
	k.logger.Info().Int("cycle", k.cycleCount).Msg("Initiating keeper cycle")
	k.RunCycle(ctx)
	k.logger.Info().Int("cycle", k.cycleCount).Msg("Keeper cycle completed")
}

// RunCycle executes one complete maintenance cycle. Failures of individual
// steps are logged and do not abort the remaining steps.
func (k *Keeper) RunCycle(ctx context.Context) {
	cycleStartTime := time.Now()

	// Unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := k.logger.With().Str("cycle_id", cycleID).Logger()

	cycleNumber := k.persistentCycleNumber(cycleLogger)

	// Queue liquidity is committed before allocation so the buffer funds
	// owed to pending withdrawals are reserved, not deployed.
	if watermark, err := k.vault.AddQueueLiquidity(k.strategist); err != nil {
		if !errors.Is(err, vault.ErrQueueNotConfigured) {
			cycleLogger.Error().Err(err).Msg("Queue liquidity step failed")
		}
	} else {
		cycleLogger.Info().Str("watermark", watermark.String()).Msg("Queue liquidity step completed")
	}

	if ctx.Err() != nil {
		cycleLogger.Warn().Msg("Cycle aborted by context cancellation")
		return
	}

	transfers, err := k.vault.Allocate(k.strategist)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Allocation step failed")
	} else {
		cycleLogger.Info().Int("transfers", len(transfers)).Msg("Allocation step completed")
	}

	rebased, err := k.vault.Rebase(k.strategist)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Rebase step failed")
	} else if rebased {
		cycleLogger.Info().Msg("Rebase step applied a supply change")
	}

	k.saveCycleSnapshot(cycleLogger, types.AllocationSnapshot{
		CycleNumber: cycleNumber,
		CycleID:     cycleID,
		Timestamp:   cycleStartTime,
		TotalValue:  k.currentTotalValue(cycleLogger),
		TotalSupply: k.token.TotalSupply(),
		Transfers:   transfers,
		Rebased:     rebased,
	})

	k.syncQueue(cycleLogger)

	cycleLogger.Info().
		Dur("duration", time.Since(cycleStartTime)).
		Int("cycle_number", cycleNumber).
		Msg("End of cycle state recorded")
}

// persistentCycleNumber advances the database cycle counter, falling back to
// the in-process count when persistence is unavailable.
func (k *Keeper) persistentCycleNumber(log zerolog.Logger) int {
	cycleNumber, err := state.IncrementCycleNumber()
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to in-process cycle counter")
		return k.cycleCount
	}
	return cycleNumber
}

func (k *Keeper) currentTotalValue(log zerolog.Logger) sdkmath.Int {
	value, err := k.vault.TotalValue()
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute total value for snapshot")
		return sdkmath.ZeroInt()
	}
	return value
}

func (k *Keeper) saveCycleSnapshot(log zerolog.Logger, snapshot types.AllocationSnapshot) {
	snapshotID, err := state.SaveAllocationSnapshot(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save allocation snapshot")
		return
	}
	log.Debug().Int64("snapshot_id", snapshotID).Msg("Allocation snapshot saved")
}

func (k *Keeper) syncQueue(log zerolog.Logger) {
	queueState := k.vault.Queue()
	if !queueState.Configured {
		return
	}
	if err := state.SyncWithdrawalRequests(queueState.Requests); err != nil {
		log.Error().Err(err).Msg("Failed to sync withdrawal requests")
	}
}
