package models

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/pkg/guard"

	dErrors "tally/pkg/domain-errors"
)

// Address is an immutable value object. Changing a debtor's address replaces
// the whole value; individual fields are never edited.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code,omitempty"`
}

// NewAddress validates the required address parts. ZipCode is optional.
func NewAddress(street, city, state, zipCode string) (Address, error) {
	if err := guard.RequireNotBlank("street", street); err != nil {
		return Address{}, err
	}
	if err := guard.RequireNotBlank("city", city); err != nil {
		return Address{}, err
	}
	if err := guard.RequireNotBlank("state", state); err != nil {
		return Address{}, err
	}
	return Address{Street: street, City: city, State: state, ZipCode: zipCode}, nil
}

// Debtor is the aggregate root for one person's debts, owned by exactly one
// user account.
//
// Invariants:
//   - OutstandingDebt == Σ(AmountOwed of owned debts), re-derived after every
//     child mutation
//   - Debts are exclusively owned: a debt cannot outlive its debtor or be
//     shared across debtors
//   - LastPaymentDate never lies in the future
type Debtor struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"-"`
	FullName        string          `json:"full_name"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
	Address         Address         `json:"address"`
	OutstandingDebt decimal.Decimal `json:"outstanding_debt"`
	LastPaymentDate *time.Time      `json:"last_payment_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Version         int64           `json:"-"`

	Debts []*Debt `json:"-"`
}

// NewDebtor constructs a debtor owned by the given user.
func NewDebtor(ownerID, fullName, phone, email string, address Address, now time.Time) (*Debtor, error) {
	if err := guard.RequireNotBlank("full name", fullName); err != nil {
		return nil, err
	}
	d := &Debtor{
		ID:              debtorID(fullName),
		OwnerID:         ownerID,
		FullName:        fullName,
		CreatedAt:       now,
		OutstandingDebt: decimal.Zero,
	}
	if err := d.UpdateContactInfo(phone, email); err != nil {
		return nil, err
	}
	d.Address = address
	return d, nil
}

// debtorID builds a human-scannable id from the name prefix plus a UUID, the
// prefix padded to four characters for short names.
func debtorID(fullName string) string {
	runes := []rune(fullName)
	if len(runes) >= 4 {
		runes = runes[:4]
	}
	prefix := string(runes) + strings.Repeat("X", 4-len(runes))
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(prefix + "_" + raw)
}

// UpdateContactInfo replaces both contact fields after shape validation.
func (d *Debtor) UpdateContactInfo(phone, email string) error {
	if strings.TrimSpace(phone) == "" || !isPhone(phone) {
		return dErrors.New(dErrors.CodeInvariantViolation, "a valid phone number is required")
	}
	if !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeInvariantViolation, "a valid email address is required")
	}
	d.Phone = phone
	d.Email = email
	return nil
}

// isPhone accepts digits with optional leading +, spaces, dashes and
// parentheses, requiring at least seven digits.
func isPhone(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7
}

// UpdateAddress replaces the address value wholesale.
func (d *Debtor) UpdateAddress(address Address) {
	d.Address = address
}

// AddDebt takes ownership of the debt and re-derives the outstanding total.
func (d *Debtor) AddDebt(debt *Debt) {
	debt.DebtorID = d.ID
	d.Debts = append(d.Debts, debt)
	d.RecalculateOutstanding()
}

// RemoveDebt releases a debt from the aggregate and re-derives the
// outstanding total. The removed debt is returned so the caller can persist
// the deletion.
func (d *Debtor) RemoveDebt(debtID string) (*Debt, error) {
	for i, debt := range d.Debts {
		if debt.ID == debtID {
			d.Debts = append(d.Debts[:i], d.Debts[i+1:]...)
			d.RecalculateOutstanding()
			return debt, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "debt not found")
}

// RecalculateOutstanding re-derives OutstandingDebt from the owned debts.
func (d *Debtor) RecalculateOutstanding() {
	total := decimal.Zero
	for _, debt := range d.Debts {
		total = total.Add(debt.AmountOwed)
	}
	d.OutstandingDebt = total
}

// RecordLastPayment tracks the most recent payment date on the debtor.
func (d *Debtor) RecordLastPayment(paymentDate, now time.Time) error {
	if paymentDate.After(now) {
		return dErrors.New(dErrors.CodeInvariantViolation, "payment date must not be in the future")
	}
	d.LastPaymentDate = &paymentDate
	return nil
}
