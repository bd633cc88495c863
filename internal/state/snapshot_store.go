// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meridian-money/svm/internal/types"
)

// SaveAllocationSnapshot saves one keeper-cycle snapshot to the database.
func SaveAllocationSnapshot(snapshot types.AllocationSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	transfersJSON, err := json.Marshal(snapshot.Transfers)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal transfers: %w", err)
	}

	query := `
		INSERT INTO allocation_snapshots (
			cycle_number, cycle_id, snapshot_timestamp,
			total_value, total_supply, transfers, rebased
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.CycleNumber, snapshot.CycleID, snapshot.Timestamp,
		snapshot.TotalValue.String(), snapshot.TotalSupply.String(), transfersJSON, snapshot.Rebased,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save allocation snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("total_value", snapshot.TotalValue.String()).
		Msg("Allocation snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots retrieves the most recent allocation snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.AllocationSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 24
	}

	query := `
		SELECT snapshot_id, cycle_number, cycle_id, snapshot_timestamp,
		       total_value, total_supply, transfers, rebased
		FROM allocation_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.AllocationSnapshot
	for rows.Next() {
		var (
			snapshot      types.AllocationSnapshot
			totalValue    string
			totalSupply   string
			transfersJSON []byte
			timestamp     time.Time
		)
		err := rows.Scan(
			&snapshot.SnapshotID, &snapshot.CycleNumber, &snapshot.CycleID, &timestamp,
			&totalValue, &totalSupply, &transfersJSON, &snapshot.Rebased,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation snapshot: %w", err)
		}
		snapshot.Timestamp = timestamp
		snapshot.TotalValue, err = parseNumeric(totalValue)
		if err != nil {
			return nil, err
		}
		snapshot.TotalSupply, err = parseNumeric(totalSupply)
		if err != nil {
			return nil, err
		}
		if len(transfersJSON) > 0 {
			if err := json.Unmarshal(transfersJSON, &snapshot.Transfers); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transfers: %w", err)
			}
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocation snapshots: %w", err)
	}

	return snapshots, nil
}
