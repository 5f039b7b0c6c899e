package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductView is the product projection including its category name.
type ProductView struct {
	ID            string          `json:"id"`
	CategoryID    string          `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// View projects a product into its read model.
func (p *Product) View(categoryName string) ProductView {
	return ProductView{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		CategoryName:  categoryName,
		Name:          p.Name,
		Description:   p.Description,
		UnitPrice:     p.UnitPrice,
		StockQuantity: p.StockQuantity,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// CategoryView lists a category with the owner's products under it.
type CategoryView struct {
	Category
	Products []ProductView `json:"products"`
}

// Summary aggregates one owner's inventory for the overview endpoint.
type Summary struct {
	Products   int             `json:"products"`
	Categories int             `json:"categories"`
	TotalUnits int             `json:"total_units"`
	StockValue decimal.Decimal `json:"stock_value"`
}
