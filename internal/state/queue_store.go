// ./internal/state/queue_store.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/meridian-money/svm/internal/types"
)

// SyncWithdrawalRequests mirrors the in-memory withdrawal queue into the
// database. Rows are upserted by request ID so repeated syncs are safe.
func SyncWithdrawalRequests(requests []types.WithdrawalRequest) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if len(requests) == 0 {
		return nil
	}

	query := `
		INSERT INTO withdrawal_requests (
			request_id, requester, asset,
			units_burned, amount_owed, queued_total,
			status, requested_at, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO UPDATE SET
			queued_total = EXCLUDED.queued_total,
			status = EXCLUDED.status,
			claimed_at = EXCLUDED.claimed_at;
	`

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, request := range requests {
		_, err := tx.Exec(
			query,
			int64(request.ID), request.Requester, string(request.Asset),
			request.UnitsBurned.String(), request.AmountOwed.String(), request.QueuedTotal.String(),
			string(request.Status), request.RequestedAt, request.ClaimedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert withdrawal request %d: %w", request.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withdrawal requests: %w", err)
	}

	log.Debug().Int("count", len(requests)).Msg("Withdrawal requests synced to database")
	return nil
}
