package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Read-only projections handed back to callers. Views are computed from the
// aggregates (joined with owner-scoped lookups) and never persisted
// separately.

// DebtView is the debt projection including the owning debtor's name.
type DebtView struct {
	ID         string          `json:"id"`
	DebtorID   string          `json:"debtor_id"`
	DebtorName string          `json:"debtor_name"`
	TotalDebt  decimal.Decimal `json:"total_debt"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
	Status     DebtStatus      `json:"status"`
	DueDate    time.Time       `json:"due_date"`
	CreatedAt  time.Time       `json:"created_at"`
}

// View projects a debt into its read model.
func (d *Debt) View(debtorName string) DebtView {
	return DebtView{
		ID:         d.ID,
		DebtorID:   d.DebtorID,
		DebtorName: debtorName,
		TotalDebt:  d.TotalDebt,
		AmountOwed: d.AmountOwed,
		Status:     d.Status,
		DueDate:    d.DueDate,
		CreatedAt:  d.CreatedAt,
	}
}

// Summary aggregates one owner's ledger for the overview endpoint.
type Summary struct {
	Debtors          int             `json:"debtors"`
	OpenDebts        int             `json:"open_debts"`
	OverdueDebts     int             `json:"overdue_debts"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}
