// Package inventory tracks on-hand stock and its moving-average cost basis.
// The sale posting source reads COGS from here; the package itself never
// writes journal entries. Costs are integer minor units throughout: each
// product carries whole-unit quantity plus total cost, and the average is
// derived, so consumption never accumulates rounding drift.
package inventory

import (
	"errors"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
)

// Sentinel errors.
var (
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	ErrInvalidUnitCost = errors.New("inventory: unit cost cannot be negative")
	ErrNegativeStock   = errors.New("inventory: insufficient stock")
	ErrBalanceNotFound = errors.New("inventory: balance not found")
)

// MovementType enumerates stock card movements.
type MovementType string

const (
	MovementReceipt     MovementType = "RECEIPT"
	MovementConsumption MovementType = "CONSUMPTION"
	MovementAdjustment  MovementType = "ADJUSTMENT"
)

// Balance is one product's stock position. TotalCost is the exact cost of
// the on-hand quantity; AvgUnitCost is derived for display.
type Balance struct {
	ProductID int64         `json:"productId"`
	Qty       int64         `json:"qty"`
	TotalCost ledger.Amount `json:"totalCost"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// AvgUnitCost returns the rounded average cost per unit.
func (b Balance) AvgUnitCost() ledger.Amount {
	if b.Qty <= 0 {
		return 0
	}
	return (b.TotalCost + b.Qty/2) / b.Qty
}

// Movement is one stock card line.
type Movement struct {
	ID        int64         `json:"id"`
	ProductID int64         `json:"productId"`
	Type      MovementType  `json:"type"`
	QtyDelta  int64         `json:"qtyDelta"`
	CostDelta ledger.Amount `json:"costDelta"`
	RefID     string        `json:"refId,omitempty"`
	Note      string        `json:"note,omitempty"`
	PostedAt  time.Time     `json:"postedAt"`
}
