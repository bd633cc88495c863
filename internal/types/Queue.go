/*

This file contains the types for the asynchronous withdrawal queue. Requests
are strictly FIFO: a request becomes claimable once the cumulative liquidity
watermark covers its position in the queue.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// WithdrawalStatus is the lifecycle state of a queued withdrawal.
type WithdrawalStatus string

const (
	WithdrawalRequested WithdrawalStatus = "REQUESTED"
	WithdrawalClaimed   WithdrawalStatus = "CLAIMED"
	WithdrawalCancelled WithdrawalStatus = "CANCELLED"
)

// WithdrawalRequest represents one queued redeem.
type WithdrawalRequest struct {
	ID        uint64  `json:"id"`
	Requester string  `json:"requester"`
	Asset     AssetID `json:"asset"`

	// UnitsBurned is the token amount burned at request time, 18 decimals.
	UnitsBurned sdkmath.Int `json:"units_burned"`

	// AmountOwed is the asset amount payable, fixed at request time, in
	// native asset units.
	AmountOwed sdkmath.Int `json:"amount_owed"`

	// QueuedTotal is the cumulative owed amount of the queue up to and
	// including this request. The request is claimable once the liquidity
	// watermark reaches QueuedTotal.
	QueuedTotal sdkmath.Int `json:"queued_total"`

	Status      WithdrawalStatus `json:"status"`
	RequestedAt time.Time        `json:"requested_at"`
	ClaimedAt   *time.Time       `json:"claimed_at,omitempty"`
}

// Claimable reports whether the request can be claimed at the given watermark.
func (r WithdrawalRequest) Claimable(watermark sdkmath.Int) bool {
	return r.Status == WithdrawalRequested && r.QueuedTotal.LTE(watermark)
}
