package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/pkg/guard"

	dErrors "tally/pkg/domain-errors"
)

// PaymentMethod enumerates the accepted settlement channels.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "Cash"
	MethodCard         PaymentMethod = "Card"
	MethodBankTransfer PaymentMethod = "Bank Transfer"
)

// ParsePaymentMethod validates a raw method string against the allowed set.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch PaymentMethod(raw) {
	case MethodCash, MethodCard, MethodBankTransfer:
		return PaymentMethod(raw), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvariantViolation,
			"invalid payment method %q, allowed methods are: Cash, Card, Bank Transfer", raw)
	}
}

// Payment is a ledger entry owned by exactly one Debt. It is immutable once
// created; corrections are made by deleting the entry and recording a new one,
// never by editing in place.
//
// Invariants:
//   - Amount is strictly positive
//   - Method is one of the allowed payment methods
//   - PaymentDate is the creation time and never changes
type Payment struct {
	ID          string          `json:"id"`
	DebtID      string          `json:"debt_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	Note        string          `json:"note,omitempty"`
	PaymentDate time.Time       `json:"payment_date"`
}

// NewPayment constructs a validated ledger entry. The owning Debt assigns
// DebtID when the payment is recorded against it.
func NewPayment(amount decimal.Decimal, method string, note string, now time.Time) (*Payment, error) {
	if err := guard.RequirePositiveAmount("payment amount", amount); err != nil {
		return nil, err
	}
	parsed, err := ParsePaymentMethod(method)
	if err != nil {
		return nil, err
	}
	return &Payment{
		ID:          uuid.NewString(),
		Amount:      amount,
		Method:      parsed,
		Note:        note,
		PaymentDate: now,
	}, nil
}
