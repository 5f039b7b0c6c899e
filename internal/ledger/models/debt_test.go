package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tally/pkg/domain-errors"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDebt(t *testing.T, total int64) *Debt {
	t.Helper()
	d, err := NewDebt(decimal.NewFromInt(total), testNow.AddDate(0, 1, 0), nil, testNow)
	require.NoError(t, err)
	return d
}

func TestNewDebt(t *testing.T) {
	d := newTestDebt(t, 100)

	assert.NotEmpty(t, d.ID)
	assert.True(t, d.AmountOwed.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, StatusPendingPayment, d.Status)
	assert.Empty(t, d.Payments)
}

func TestNewDebtRejectsNonPositiveTotal(t *testing.T) {
	_, err := NewDebt(decimal.Zero, testNow.AddDate(0, 1, 0), nil, testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewDebt(decimal.NewFromInt(-10), testNow.AddDate(0, 1, 0), nil, testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestNewDebtRejectsPastDueDate(t *testing.T) {
	_, err := NewDebt(decimal.NewFromInt(100), testNow.Add(-time.Hour), nil, testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

// The optional initial balance is accepted but overwritten by the
// recalculation against the empty payment history. Seeding a partially paid
// debt requires recording payments.
func TestNewDebtInitialBalanceIsAdvisory(t *testing.T) {
	seed := decimal.NewFromInt(40)
	d, err := NewDebt(decimal.NewFromInt(100), testNow.AddDate(0, 1, 0), &seed, testNow)
	require.NoError(t, err)

	assert.True(t, d.AmountOwed.Equal(decimal.NewFromInt(100)))

	negative := decimal.NewFromInt(-1)
	_, err = NewDebt(decimal.NewFromInt(100), testNow.AddDate(0, 1, 0), &negative, testNow)
	assert.Error(t, err)
}

func TestRecordPaymentDerivesBalanceAndStatus(t *testing.T) {
	d := newTestDebt(t, 100)

	_, err := d.RecordPayment(decimal.NewFromInt(40), "Cash", "first instalment", testNow)
	require.NoError(t, err)

	assert.True(t, d.AmountOwed.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, StatusPartiallyPaid, d.Status)

	_, err = d.RecordPayment(decimal.NewFromInt(60), "Card", "", testNow)
	require.NoError(t, err)

	assert.True(t, d.AmountOwed.IsZero())
	assert.Equal(t, StatusPaid, d.Status)
}

// Invariant 1: after any sequence of valid payments the balance equals
// TotalDebt minus the sum of the payment history and never goes negative.
func TestBalanceEqualsHistoryNet(t *testing.T) {
	d := newTestDebt(t, 500)
	amounts := []int64{120, 35, 200, 1, 144}

	for _, a := range amounts {
		_, err := d.RecordPayment(decimal.NewFromInt(a), "Bank Transfer", "", testNow)
		require.NoError(t, err)

		paid := decimal.Zero
		for _, p := range d.Payments {
			paid = paid.Add(p.Amount)
		}
		assert.True(t, d.AmountOwed.Equal(d.TotalDebt.Sub(paid)))
		assert.False(t, d.AmountOwed.IsNegative())
	}

	assert.True(t, d.AmountOwed.IsZero())
	assert.Equal(t, StatusPaid, d.Status)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	d := newTestDebt(t, 100)
	_, err := d.RecordPayment(decimal.NewFromInt(40), "Cash", "", testNow)
	require.NoError(t, err)

	_, err = d.RecordPayment(decimal.NewFromInt(101), "Cash", "", testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeOverpayment))

	// Rejection leaves the aggregate untouched.
	assert.True(t, d.AmountOwed.Equal(decimal.NewFromInt(60)))
	assert.Len(t, d.Payments, 1)
	assert.Equal(t, StatusPartiallyPaid, d.Status)
}

func TestRecordPaymentRejectsBadInput(t *testing.T) {
	d := newTestDebt(t, 100)

	_, err := d.RecordPayment(decimal.Zero, "Cash", "", testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = d.RecordPayment(decimal.NewFromInt(10), "Cheque", "", testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	assert.Empty(t, d.Payments)
	assert.True(t, d.AmountOwed.Equal(d.TotalDebt))
}

// Overdue wins over every other status while a balance remains.
func TestOverdueStatus(t *testing.T) {
	d := newTestDebt(t, 100)
	_, err := d.RecordPayment(decimal.NewFromInt(40), "Cash", "", testNow)
	require.NoError(t, err)

	afterDue := d.DueDate.Add(time.Hour)
	d.Recalculate(afterDue)
	assert.Equal(t, StatusOverdue, d.Status)

	// A fully paid debt is never overdue.
	_, err = d.RecordPayment(decimal.NewFromInt(60), "Cash", "", afterDue)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, d.Status)
}

func TestExtendDueDateClearsOverdue(t *testing.T) {
	d := newTestDebt(t, 100)
	afterDue := d.DueDate.Add(24 * time.Hour)
	d.Recalculate(afterDue)
	require.Equal(t, StatusOverdue, d.Status)

	require.NoError(t, d.ExtendDueDate(30, afterDue))
	assert.Equal(t, StatusPendingPayment, d.Status)

	err := d.ExtendDueDate(0, afterDue)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestRemovePaymentRestoresBalance(t *testing.T) {
	d := newTestDebt(t, 100)
	p, err := d.RecordPayment(decimal.NewFromInt(40), "Cash", "", testNow)
	require.NoError(t, err)

	removed, err := d.RemovePayment(p.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, p.ID, removed.ID)
	assert.True(t, d.AmountOwed.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, StatusPendingPayment, d.Status)

	_, err = d.RemovePayment("missing", testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestParsePaymentMethod(t *testing.T) {
	for _, valid := range []string{"Cash", "Card", "Bank Transfer"} {
		m, err := ParsePaymentMethod(valid)
		require.NoError(t, err)
		assert.Equal(t, PaymentMethod(valid), m)
	}

	_, err := ParsePaymentMethod("cash")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
