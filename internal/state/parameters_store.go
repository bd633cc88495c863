// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meridian-money/svm/internal/types"
)

// SaveVaultParameters persists a parameter set under a config name and
// version. When makeActive is true, all other rows for the config name are
// deactivated in the same transaction.
func SaveVaultParameters(params types.VaultParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if makeActive {
		deactivateSQL := `UPDATE vault_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		if _, err := tx.Exec(deactivateSQL, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate previous parameters: %w", err)
		}
	}

	insertSQL := `
		INSERT INTO vault_parameters (
			version, config_name, is_active, activated_at,
			vault_buffer_bps, redeem_fee_bps,
			auto_allocate_threshold, rebase_threshold, max_supply_diff_bps,
			capital_paused, rebase_paused,
			stale_price_policy, max_price_age_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING params_id;
	`

	var paramsID int64
	err = tx.QueryRow(
		insertSQL,
		version, configName, makeActive, time.Now().UTC(),
		params.VaultBufferBps, params.RedeemFeeBps,
		params.AutoAllocateThreshold.String(), params.RebaseThreshold.String(), params.MaxSupplyDiffBps,
		params.CapitalPaused, params.RebasePaused,
		string(params.StalePolicy), int64(params.MaxPriceAge/time.Second),
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault parameters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vault parameters: %w", err)
	}

	log.Info().
		Int64("params_id", paramsID).
		Str("config_name", configName).
		Int("version", version).
		Bool("active", makeActive).
		Msg("Vault parameters saved to database")

	return paramsID, nil
}

// LoadActiveVaultParameters loads the active parameter set for a config name.
// Returns nil without error when no active row exists.
func LoadActiveVaultParameters(configName string) (*types.VaultParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT vault_buffer_bps, redeem_fee_bps,
		       auto_allocate_threshold, rebase_threshold, max_supply_diff_bps,
		       capital_paused, rebase_paused,
		       stale_price_policy, max_price_age_seconds
		FROM vault_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;
	`

	var (
		params        types.VaultParameters
		autoAllocate  string
		rebaseThresh  string
		stalePolicy   string
		maxAgeSeconds int64
	)
	err := DB.QueryRow(query, configName).Scan(
		&params.VaultBufferBps, &params.RedeemFeeBps,
		&autoAllocate, &rebaseThresh, &params.MaxSupplyDiffBps,
		&params.CapitalPaused, &params.RebasePaused,
		&stalePolicy, &maxAgeSeconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active vault parameters: %w", err)
	}

	params.AutoAllocateThreshold, err = parseNumeric(autoAllocate)
	if err != nil {
		return nil, err
	}
	params.RebaseThreshold, err = parseNumeric(rebaseThresh)
	if err != nil {
		return nil, err
	}
	params.StalePolicy = types.StalePricePolicy(stalePolicy)
	params.MaxPriceAge = time.Duration(maxAgeSeconds) * time.Second

	return &params, nil
}
