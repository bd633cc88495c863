/*

This file manages the persistent global cycle counter for the keeper. The
counter is stored in the database so cycle numbering survives restarts.

*/

package state

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureCycleCounterTable creates the cycle_counter table if it doesn't exist.
func ensureCycleCounterTable() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := DB.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create cycle_counter table: %w", err)
	}

	log.Debug().Msg("Ensured cycle_counter table exists")
	return nil
}

// GetCurrentCycleNumber retrieves the current cycle number from the database.
func GetCurrentCycleNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT current_cycle FROM cycle_counter WHERE id = 1;`

	var currentCycle int
	if err := DB.QueryRow(query).Scan(&currentCycle); err != nil {
		return 0, fmt.Errorf("failed to read cycle counter: %w", err)
	}
	return currentCycle, nil
}

// IncrementCycleNumber advances the cycle counter and returns the new value.
func IncrementCycleNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		UPDATE cycle_counter
		SET current_cycle = current_cycle + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_cycle;
	`

	var newCycle int
	if err := DB.QueryRow(query).Scan(&newCycle); err != nil {
		return 0, fmt.Errorf("failed to increment cycle counter: %w", err)
	}

	log.Debug().Int("cycle_number", newCycle).Msg("Cycle counter incremented")
	return newCycle, nil
}
