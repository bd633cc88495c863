/*

Vault is the accounting and strategy-allocation core: it tracks supported
collateral assets, computes the backing value behind the rebasing token, and
moves collateral between its liquid buffer and approved strategies.

Concurrency model: every mutating operation holds the vault's operation lock
for its full duration, so operations execute atomically in a total order.
External collaborators (strategies, oracles, the asset backend) are called
while the lock is held and must not call back into the vault.

*/

package vault

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/meridian-money/svm/internal/bank"
	"github.com/meridian-money/svm/internal/governance"
	"github.com/meridian-money/svm/internal/logger"
	"github.com/meridian-money/svm/internal/oracle"
	"github.com/meridian-money/svm/internal/strategy"
	"github.com/meridian-money/svm/internal/token"
	"github.com/meridian-money/svm/internal/types"
)

// ReceiptStore persists operation receipts. Optional; a nil store disables
// persistence without affecting vault semantics.
type ReceiptStore interface {
	SaveOperationReceipt(receipt types.OperationReceipt) (int64, error)
}

// Vault is the process-wide vault singleton.
type Vault struct {
	// mu is the operation lock: the implicit "no concurrent self-entry"
	// guard around every mutating entry point.
	mu sync.Mutex

	log zerolog.Logger

	account string
	backend bank.AssetBackend
	oracle  oracle.PriceProvider
	token   token.Ledger
	auth    *governance.Authority

	params types.VaultParameters

	assets     map[types.AssetID]*types.Asset
	assetOrder []types.AssetID

	strategies map[types.StrategyID]strategy.Strategy
	stratOrder []types.StrategyID

	// lastPrice backs the StalePriceHold valuation policy.
	lastPrice map[types.AssetID]oracle.PriceQuote

	queue *withdrawalQueue

	receipts ReceiptStore
	now      func() time.Time
}

// Config holds the dependencies for creating a Vault.
type Config struct {
	// Account is the vault's own account on the asset backend; the buffer is
	// whatever that account holds.
	Account string
	Backend bank.AssetBackend
	Oracle  oracle.PriceProvider
	Token   token.Ledger
	// Authority gates every governance entry point.
	Authority *governance.Authority
	// Parameters overrides the defaults when non-nil.
	Parameters *types.VaultParameters
	// Receipts is the optional receipt store.
	Receipts ReceiptStore
}

// New creates a Vault with dependency injection.
func New(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault configuration validation failed: %w", err)
	}

	params := types.DefaultVaultParameters()
	if cfg.Parameters != nil {
		params = *cfg.Parameters
	}
	if err := validateParameters(params); err != nil {
		return nil, err
	}

	v := &Vault{
		log:        logger.GetForComponent("vault_core"),
		account:    cfg.Account,
		backend:    cfg.Backend,
		oracle:     cfg.Oracle,
		token:      cfg.Token,
		auth:       cfg.Authority,
		params:     params,
		assets:     make(map[types.AssetID]*types.Asset),
		strategies: make(map[types.StrategyID]strategy.Strategy),
		lastPrice:  make(map[types.AssetID]oracle.PriceQuote),
		receipts:   cfg.Receipts,
		now:        time.Now,
	}

	v.log.Info().Str("account", v.account).Msg("Vault instance created")
	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Account == "" {
		return fmt.Errorf("vault account cannot be empty")
	}
	if cfg.Backend == nil {
		return fmt.Errorf("asset backend cannot be nil")
	}
	if cfg.Oracle == nil {
		return fmt.Errorf("price provider cannot be nil")
	}
	if cfg.Token == nil {
		return fmt.Errorf("token ledger cannot be nil")
	}
	if cfg.Authority == nil {
		return fmt.Errorf("governance authority cannot be nil")
	}
	return nil
}

func validateParameters(params types.VaultParameters) error {
	if params.VaultBufferBps > 10000 {
		return fmt.Errorf("%w: vault buffer %d bps", ErrInvalidParameter, params.VaultBufferBps)
	}
	if params.RedeemFeeBps >= 10000 {
		return fmt.Errorf("%w: redeem fee %d bps", ErrInvalidParameter, params.RedeemFeeBps)
	}
	if params.AutoAllocateThreshold.IsNil() || params.AutoAllocateThreshold.IsNegative() {
		return fmt.Errorf("%w: auto-allocate threshold", ErrInvalidParameter)
	}
	if params.RebaseThreshold.IsNil() || params.RebaseThreshold.IsNegative() {
		return fmt.Errorf("%w: rebase threshold", ErrInvalidParameter)
	}
	if params.MaxSupplyDiffBps > 10000 {
		return fmt.Errorf("%w: max supply diff %d bps", ErrInvalidParameter, params.MaxSupplyDiffBps)
	}
	if params.MaxPriceAge <= 0 {
		return fmt.Errorf("%w: max price age", ErrInvalidParameter)
	}
	return nil
}

// Account returns the vault's backend account.
func (v *Vault) Account() string {
	return v.account
}

// Parameters returns a copy of the current vault parameters.
func (v *Vault) Parameters() types.VaultParameters {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.params
}

// --- Governance parameter setters -----------------------------------------

// SetVaultBuffer sets the target liquid fraction in basis points.
func (v *Vault) SetVaultBuffer(caller string, bps uint32) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if bps > 10000 {
		return fmt.Errorf("%w: vault buffer %d bps", ErrInvalidParameter, bps)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.VaultBufferBps = bps
	v.log.Info().Uint32("vault_buffer_bps", bps).Msg("Vault buffer updated")
	return nil
}

// SetRedeemFeeBps sets the redeem fee in basis points.
func (v *Vault) SetRedeemFeeBps(caller string, bps uint32) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if bps >= 10000 {
		return fmt.Errorf("%w: redeem fee %d bps", ErrInvalidParameter, bps)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.RedeemFeeBps = bps
	v.log.Info().Uint32("redeem_fee_bps", bps).Msg("Redeem fee updated")
	return nil
}

// SetAutoAllocateThreshold sets the unit-of-account value change above which
// a mint or redeem triggers allocation.
func (v *Vault) SetAutoAllocateThreshold(caller string, threshold sdkmath.Int) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if threshold.IsNil() || threshold.IsNegative() {
		return fmt.Errorf("%w: auto-allocate threshold", ErrInvalidParameter)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.AutoAllocateThreshold = threshold
	v.log.Info().Str("auto_allocate_threshold", threshold.String()).Msg("Auto-allocate threshold updated")
	return nil
}

// SetRebaseThreshold sets the minimum backing/supply divergence before rebase.
func (v *Vault) SetRebaseThreshold(caller string, threshold sdkmath.Int) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if threshold.IsNil() || threshold.IsNegative() {
		return fmt.Errorf("%w: rebase threshold", ErrInvalidParameter)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.RebaseThreshold = threshold
	v.log.Info().Str("rebase_threshold", threshold.String()).Msg("Rebase threshold updated")
	return nil
}

// SetMaxSupplyDiff sets the tolerated shortfall of backing value versus
// supply, in basis points.
func (v *Vault) SetMaxSupplyDiff(caller string, bps uint32) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if bps > 10000 {
		return fmt.Errorf("%w: max supply diff %d bps", ErrInvalidParameter, bps)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.MaxSupplyDiffBps = bps
	v.log.Info().Uint32("max_supply_diff_bps", bps).Msg("Max supply diff updated")
	return nil
}

// SetPriceProvider swaps the oracle used for all pricing.
func (v *Vault) SetPriceProvider(caller string, provider oracle.PriceProvider) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("%w: price provider cannot be nil", ErrInvalidParameter)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.oracle = provider
	v.log.Info().Msg("Price provider updated")
	return nil
}

// SetStalePricePolicy selects how TotalValue treats stale quotes.
func (v *Vault) SetStalePricePolicy(caller string, policy types.StalePricePolicy) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	if policy != types.StalePriceReject && policy != types.StalePriceHold {
		return fmt.Errorf("%w: stale price policy %q", ErrInvalidParameter, policy)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.StalePolicy = policy
	v.log.Info().Str("stale_policy", string(policy)).Msg("Stale price policy updated")
	return nil
}

// PauseCapital halts mints, redeems, and allocation.
func (v *Vault) PauseCapital(caller string) error {
	if err := v.auth.RequireStrategist(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.CapitalPaused = true
	v.log.Warn().Msg("Capital paused")
	return nil
}

// UnpauseCapital resumes capital movements. Governor only.
func (v *Vault) UnpauseCapital(caller string) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.CapitalPaused = false
	v.log.Info().Msg("Capital unpaused")
	return nil
}

// PauseRebase halts supply rebases.
func (v *Vault) PauseRebase(caller string) error {
	if err := v.auth.RequireStrategist(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.RebasePaused = true
	v.log.Warn().Msg("Rebase paused")
	return nil
}

// UnpauseRebase resumes supply rebases. Governor only.
func (v *Vault) UnpauseRebase(caller string) error {
	if err := v.auth.RequireGovernor(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params.RebasePaused = false
	v.log.Info().Msg("Rebase unpaused")
	return nil
}

// --- Read accessors --------------------------------------------------------

// Assets returns the supported assets in registration order.
func (v *Vault) Assets() []types.Asset {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]types.Asset, 0, len(v.assetOrder))
	for _, id := range v.assetOrder {
		out = append(out, *v.assets[id])
	}
	return out
}

// Strategies returns the approved strategy records.
func (v *Vault) Strategies() []types.StrategyRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]types.StrategyRecord, 0, len(v.stratOrder))
	for _, id := range v.stratOrder {
		out = append(out, types.StrategyRecord{ID: id, Approved: true})
	}
	return out
}

func (v *Vault) sortedStrategiesForAsset(asset types.AssetID) []strategy.Strategy {
	type candidate struct {
		strat   strategy.Strategy
		balance sdkmath.Int
	}
	candidates := make([]candidate, 0, len(v.stratOrder))
	for _, id := range v.stratOrder {
		s := v.strategies[id]
		if !s.SupportsAsset(asset) {
			continue
		}
		// Balances are snapshotted once; the caller re-queries them and
		// surfaces any error, so a failing strategy simply sorts last here.
		balance, err := s.CheckBalance(asset)
		if err != nil {
			balance = sdkmath.ZeroInt()
		}
		candidates = append(candidates, candidate{strat: s, balance: balance})
	}
	// Largest balance first; lexicographic ID as the deterministic tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].balance.Equal(candidates[j].balance) {
			return candidates[i].balance.GT(candidates[j].balance)
		}
		return candidates[i].strat.ID() < candidates[j].strat.ID()
	})
	sorted := make([]strategy.Strategy, len(candidates))
	for i, c := range candidates {
		sorted[i] = c.strat
	}
	return sorted
}

func (v *Vault) saveReceipt(receipt types.OperationReceipt) {
	if v.receipts == nil {
		return
	}
	if _, err := v.receipts.SaveOperationReceipt(receipt); err != nil {
		v.log.Error().Err(err).Str("op_id", receipt.OpID).Msg("Failed to persist operation receipt")
	}
}
