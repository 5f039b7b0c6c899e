package models

import (
	"time"

	"github.com/google/uuid"

	"tally/pkg/guard"

	dErrors "tally/pkg/domain-errors"
)

// MovementType records the direction of a stock movement. The wire strings
// match the values exposed by the API.
type MovementType string

const (
	MovementStockAdded   MovementType = "Stock Added"
	MovementStockRemoved MovementType = "Stock Removed"
)

// ParseMovementType validates a raw movement type string.
func ParseMovementType(raw string) (MovementType, error) {
	switch MovementType(raw) {
	case MovementStockAdded, MovementStockRemoved:
		return MovementType(raw), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvariantViolation, "invalid transaction type %q", raw)
	}
}

// StockMovement is an immutable ledger entry owned by exactly one Product.
// Quantity is always positive; the direction lives in Type.
type StockMovement struct {
	ID         string       `json:"id"`
	ProductID  string       `json:"product_id"`
	Quantity   int          `json:"quantity"`
	Type       MovementType `json:"transaction_type"`
	Note       string       `json:"notes,omitempty"`
	OccurredAt time.Time    `json:"transaction_date"`
}

// NewStockMovement constructs a validated movement. The owning Product
// assigns ProductID when the movement is applied.
func NewStockMovement(quantity int, movementType MovementType, note string, now time.Time) (*StockMovement, error) {
	if err := guard.RequirePositive("quantity", quantity); err != nil {
		return nil, err
	}
	return &StockMovement{
		ID:         uuid.NewString(),
		Quantity:   quantity,
		Type:       movementType,
		Note:       note,
		OccurredAt: now,
	}, nil
}

// signed returns the movement's net effect on the stock quantity.
func (m *StockMovement) signed() int {
	if m.Type == MovementStockRemoved {
		return -m.Quantity
	}
	return m.Quantity
}
