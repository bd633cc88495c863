// ./internal/state/receipt_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/meridian-money/svm/internal/types"
)

// SaveOperationReceipt persists one operation receipt and returns its ID.
func SaveOperationReceipt(receipt types.OperationReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO operation_receipts (
			op_id, kind, account, asset,
			asset_amount, token_units, fee_units,
			success, message, op_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		receipt.OpID, string(receipt.Kind), receipt.Account, string(receipt.Asset),
		receipt.AssetAmount.String(), receipt.TokenUnits.String(), receipt.FeeUnits.String(),
		receipt.Success, receipt.Message, receipt.Timestamp,
	).Scan(&receiptID)

	if err != nil {
		return 0, fmt.Errorf("failed to save operation receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("op_id", receipt.OpID).
		Str("kind", string(receipt.Kind)).
		Bool("success", receipt.Success).
		Msg("Operation receipt saved to database")

	return receiptID, nil
}

// GetRecentReceipts retrieves the most recent operation receipts, newest first.
func GetRecentReceipts(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT receipt_id, op_id, kind, account, asset,
		       asset_amount, token_units, fee_units,
		       success, message, op_timestamp
		FROM operation_receipts
		ORDER BY op_timestamp DESC, receipt_id DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var (
			receipt     types.OperationReceipt
			kind        string
			asset       string
			assetAmount string
			tokenUnits  string
			feeUnits    string
			message     sql.NullString
			timestamp   time.Time
		)
		err := rows.Scan(
			&receipt.ReceiptID, &receipt.OpID, &kind, &receipt.Account, &asset,
			&assetAmount, &tokenUnits, &feeUnits,
			&receipt.Success, &message, &timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt: %w", err)
		}
		receipt.Kind = types.OperationKind(kind)
		receipt.Asset = types.AssetID(asset)
		receipt.AssetAmount, err = parseNumeric(assetAmount)
		if err != nil {
			return nil, err
		}
		receipt.TokenUnits, err = parseNumeric(tokenUnits)
		if err != nil {
			return nil, err
		}
		receipt.FeeUnits, err = parseNumeric(feeUnits)
		if err != nil {
			return nil, err
		}
		receipt.Message = message.String
		receipt.Timestamp = timestamp
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operation receipts: %w", err)
	}

	return receipts, nil
}

// parseNumeric converts a NUMERIC column value back to an Int.
func parseNumeric(raw string) (sdkmath.Int, error) {
	value, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid numeric value in database: %q", raw)
	}
	return value, nil
}

// ReceiptWriter adapts the package-level receipt persistence to the vault's
// receipt store interface.
type ReceiptWriter struct{}

func (ReceiptWriter) SaveOperationReceipt(receipt types.OperationReceipt) (int64, error) {
	return SaveOperationReceipt(receipt)
}
