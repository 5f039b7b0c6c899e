package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/pkg/guard"

	dErrors "tally/pkg/domain-errors"
)

// DebtStatus is a pure function of AmountOwed, TotalDebt and the due date.
// It is materialized on the aggregate but always re-derivable; callers never
// set it directly.
type DebtStatus string

const (
	StatusPendingPayment DebtStatus = "Pending Payment"
	StatusPartiallyPaid  DebtStatus = "Partially Paid"
	StatusPaid           DebtStatus = "Paid"
	StatusOverdue        DebtStatus = "Overdue"
)

// Debt is an aggregate owned by exactly one Debtor. It owns its Payment
// history and derives its balance from it.
//
// Invariants:
//   - TotalDebt is strictly positive and immutable after construction
//   - AmountOwed == TotalDebt − Σ(payment amounts); never negative because
//     RecordPayment rejects amounts above the remaining balance
//   - Status follows the derivation order Overdue → Pending Payment → Paid →
//     Partially Paid, first match wins
//   - DueDate only moves forward (ExtendDueDate), never backward
//
// The balance of record is the full recompute from the payment history
// (Recalculate). There is no incremental decrement path that could diverge
// from it.
type Debt struct {
	ID         string          `json:"id"`
	DebtorID   string          `json:"debtor_id"`
	TotalDebt  decimal.Decimal `json:"total_debt"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
	DueDate    time.Time       `json:"due_date"`
	Status     DebtStatus      `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	Version    int64           `json:"-"`

	Payments []*Payment `json:"-"`
}

// NewDebt constructs a debt with an empty payment history.
//
// The optional amountOwed mirrors the create-debt API: when supplied it must
// be positive, but the immediately following recalculation against the empty
// payment history resets the balance to TotalDebt. Callers wanting to seed a
// partially paid debt must record payments instead. See DESIGN.md for why
// this parameter is kept rather than repurposed.
func NewDebt(totalAmount decimal.Decimal, dueDate time.Time, amountOwed *decimal.Decimal, now time.Time) (*Debt, error) {
	if err := guard.RequirePositiveAmount("total debt", totalAmount); err != nil {
		return nil, err
	}
	if err := guard.RequireFutureOrEqual("due date", dueDate, now); err != nil {
		return nil, err
	}
	if amountOwed != nil {
		if err := guard.RequirePositiveAmount("amount owed", *amountOwed); err != nil {
			return nil, err
		}
	}

	d := &Debt{
		ID:        uuid.NewString(),
		TotalDebt: totalAmount,
		DueDate:   dueDate,
		CreatedAt: now,
	}
	if amountOwed != nil {
		d.AmountOwed = *amountOwed
	} else {
		d.AmountOwed = totalAmount
	}
	d.Recalculate(now)
	return d, nil
}

// RecordPayment validates and appends a ledger entry, then re-derives the
// balance and status. On any rejection the debt is left untouched.
func (d *Debt) RecordPayment(amount decimal.Decimal, method string, note string, now time.Time) (*Payment, error) {
	if err := guard.RequirePositiveAmount("payment amount", amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(d.AmountOwed) {
		return nil, dErrors.Newf(dErrors.CodeOverpayment,
			"cannot pay %s against a remaining balance of %s", amount.String(), d.AmountOwed.String())
	}

	p, err := NewPayment(amount, method, note, now)
	if err != nil {
		return nil, err
	}
	p.DebtID = d.ID
	d.Payments = append(d.Payments, p)
	d.Recalculate(now)
	return p, nil
}

// RemovePayment deletes a ledger entry and re-derives the balance from the
// remaining history.
func (d *Debt) RemovePayment(paymentID string, now time.Time) (*Payment, error) {
	for i, p := range d.Payments {
		if p.ID == paymentID {
			d.Payments = append(d.Payments[:i], d.Payments[i+1:]...)
			d.Recalculate(now)
			return p, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
}

// ExtendDueDate shifts the due date forward by a positive number of days.
// The shift can clear an Overdue status, so the status is re-derived.
func (d *Debt) ExtendDueDate(days int, now time.Time) error {
	if err := guard.RequirePositive("extension days", days); err != nil {
		return err
	}
	d.DueDate = d.DueDate.AddDate(0, 0, days)
	d.Recalculate(now)
	return nil
}

// Recalculate re-derives AmountOwed from the full payment history and updates
// the status. This is the invariant of record: after any mutation,
// AmountOwed == TotalDebt − Σ(payment amounts).
func (d *Debt) Recalculate(now time.Time) {
	paid := decimal.Zero
	for _, p := range d.Payments {
		paid = paid.Add(p.Amount)
	}
	d.AmountOwed = d.TotalDebt.Sub(paid)
	d.updateStatus(now)
}

// IsOverdue reports whether the due date has passed with a balance remaining.
func (d *Debt) IsOverdue(now time.Time) bool {
	return now.After(d.DueDate) && d.AmountOwed.IsPositive()
}

func (d *Debt) updateStatus(now time.Time) {
	switch {
	case d.IsOverdue(now):
		d.Status = StatusOverdue
	case d.AmountOwed.Equal(d.TotalDebt):
		d.Status = StatusPendingPayment
	case d.AmountOwed.IsZero():
		d.Status = StatusPaid
	default:
		d.Status = StatusPartiallyPaid
	}
}
