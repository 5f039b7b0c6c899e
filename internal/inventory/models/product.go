package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tally/pkg/guard"

	dErrors "tally/pkg/domain-errors"
)

// Product is the aggregate root for one item's stock, owned by exactly one
// user account and grouped under exactly one category.
//
// Invariants:
//   - StockQuantity equals the net effect of the movement history applied in
//     commit order and is never negative
//   - UnitPrice is strictly positive
//   - Movements are exclusively owned and immutable; deleting the product
//     cascades to its history
//
// StockQuantity is a derived field. Every mutation routes through AddStock /
// RemoveStock, which append a movement and re-derive the quantity from the
// full history; there is no direct set.
type Product struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"-"`
	CategoryID    string          `json:"category_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"-"`

	Movements []*StockMovement `json:"-"`
}

// NewProduct constructs a product. A positive initial stock is recorded as an
// opening "Stock Added" movement so the quantity stays derivable from the
// history alone.
func NewProduct(ownerID, categoryID, categoryName, name, description string, unitPrice decimal.Decimal, initialStock int, now time.Time) (*Product, error) {
	if err := guard.RequireNotBlank("product name", name); err != nil {
		return nil, err
	}
	if err := guard.RequirePositiveAmount("unit price", unitPrice); err != nil {
		return nil, err
	}
	if err := guard.RequireNonNegative("stock quantity", initialStock); err != nil {
		return nil, err
	}

	p := &Product{
		ID:          productID(categoryName, name),
		OwnerID:     ownerID,
		CategoryID:  categoryID,
		Name:        name,
		Description: description,
		UnitPrice:   unitPrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if initialStock > 0 {
		if _, err := p.AddStock(initialStock, "opening stock", now); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// productID slugs the category and product names into a stable identifier.
func productID(categoryName, name string) string {
	slug := categoryName + "_" + name
	slug = strings.ReplaceAll(slug, " ", "_")
	return strings.ToLower(slug)
}

// Update replaces the mutable descriptive fields. Stock is derived from the
// movement history and cannot be set here.
func (p *Product) Update(name, description string, unitPrice decimal.Decimal, now time.Time) error {
	if err := guard.RequireNotBlank("product name", name); err != nil {
		return err
	}
	if err := guard.RequirePositiveAmount("unit price", unitPrice); err != nil {
		return err
	}
	p.Name = name
	p.Description = description
	p.UnitPrice = unitPrice
	p.UpdatedAt = now
	return nil
}

// AddStock appends a "Stock Added" movement and re-derives the quantity. The
// append and the quantity update commit together or not at all; the caller
// persists both inside one transaction.
func (p *Product) AddStock(quantity int, note string, now time.Time) (*StockMovement, error) {
	m, err := NewStockMovement(quantity, MovementStockAdded, note, now)
	if err != nil {
		return nil, err
	}
	m.ProductID = p.ID
	p.Movements = append(p.Movements, m)
	p.Recalculate()
	p.UpdatedAt = now
	return m, nil
}

// RemoveStock appends a "Stock Removed" movement after checking the quantity
// on hand. On rejection the aggregate is untouched.
func (p *Product) RemoveStock(quantity int, note string, now time.Time) (*StockMovement, error) {
	if err := guard.RequirePositive("quantity", quantity); err != nil {
		return nil, err
	}
	if quantity > p.StockQuantity {
		return nil, dErrors.Newf(dErrors.CodeInsufficientStock,
			"cannot remove %d units, only %d on hand", quantity, p.StockQuantity)
	}

	m, err := NewStockMovement(quantity, MovementStockRemoved, note, now)
	if err != nil {
		return nil, err
	}
	m.ProductID = p.ID
	p.Movements = append(p.Movements, m)
	p.Recalculate()
	p.UpdatedAt = now
	return m, nil
}

// RemoveMovement deletes a history entry and re-derives the quantity from
// what remains. The deletion is rejected when it would leave the derived
// quantity negative, since that history could never have happened.
func (p *Product) RemoveMovement(movementID string, now time.Time) (*StockMovement, error) {
	idx := -1
	for i, m := range p.Movements {
		if m.ID == movementID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}

	removed := p.Movements[idx]
	remaining := net(append(append([]*StockMovement{}, p.Movements[:idx]...), p.Movements[idx+1:]...))
	if remaining < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"removing this transaction would make the stock quantity negative")
	}

	p.Movements = append(p.Movements[:idx], p.Movements[idx+1:]...)
	p.Recalculate()
	p.UpdatedAt = now
	return removed, nil
}

// Recalculate re-derives StockQuantity from the full movement history. This
// is the invariant of record: the materialized quantity never diverges from
// the ledger.
func (p *Product) Recalculate() {
	p.StockQuantity = net(p.Movements)
}

func net(movements []*StockMovement) int {
	total := 0
	for _, m := range movements {
		total += m.signed()
	}
	return total
}
