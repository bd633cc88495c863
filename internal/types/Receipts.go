package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// OperationKind identifies the vault entry point that produced a receipt.
type OperationKind string

const (
	OperationMint         OperationKind = "MINT"
	OperationRedeem       OperationKind = "REDEEM"
	OperationAllocate     OperationKind = "ALLOCATE"
	OperationRebase       OperationKind = "REBASE"
	OperationQueueRequest OperationKind = "QUEUE_REQUEST"
	OperationQueueClaim   OperationKind = "QUEUE_CLAIM"
)

// OperationReceipt is the persisted record of a single vault operation,
// successful or not. OpID traces the operation through the logs.
type OperationReceipt struct {
	ReceiptID int64         `json:"receipt_id,omitempty"` // Auto-incremented by DB
	OpID      string        `json:"op_id"`
	Kind      OperationKind `json:"kind"`
	Account   string        `json:"account,omitempty"`
	Asset     AssetID       `json:"asset,omitempty"`

	// AssetAmount is in native asset units; TokenUnits and FeeUnits are in
	// the 18-decimal unit of account.
	AssetAmount sdkmath.Int `json:"asset_amount"`
	TokenUnits  sdkmath.Int `json:"token_units"`
	FeeUnits    sdkmath.Int `json:"fee_units"`

	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferDirection distinguishes buffer-to-strategy from strategy-to-buffer moves.
type TransferDirection string

const (
	TransferToStrategy   TransferDirection = "TO_STRATEGY"
	TransferFromStrategy TransferDirection = "FROM_STRATEGY"
)

// StrategyTransfer records one asset movement between the vault buffer and a strategy.
type StrategyTransfer struct {
	Asset     AssetID           `json:"asset"`
	Strategy  StrategyID        `json:"strategy"`
	Amount    sdkmath.Int       `json:"amount"` // native asset units
	Direction TransferDirection `json:"direction"`
}

// AllocationSnapshot captures vault state around one keeper cycle.
type AllocationSnapshot struct {
	SnapshotID  int64              `json:"snapshot_id,omitempty"`
	CycleNumber int                `json:"cycle_number"`
	CycleID     string             `json:"cycle_id"`
	Timestamp   time.Time          `json:"timestamp"`
	TotalValue  sdkmath.Int        `json:"total_value"`  // 18-decimal unit of account
	TotalSupply sdkmath.Int        `json:"total_supply"` // 18-decimal unit of account
	Transfers   []StrategyTransfer `json:"transfers"`
	Rebased     bool               `json:"rebased"`
}
