package models

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tally/pkg/domain-errors"
)

func newTestDebtor(t *testing.T) *Debtor {
	t.Helper()
	addr, err := NewAddress("1 Main St", "Springfield", "IL", "62704")
	require.NoError(t, err)
	d, err := NewDebtor("owner@example.com", "Ada Lovelace", "+1 555 010 7788", "ada@example.com", addr, testNow)
	require.NoError(t, err)
	return d
}

func TestNewDebtorIDShape(t *testing.T) {
	d := newTestDebtor(t)
	assert.True(t, strings.HasPrefix(d.ID, "ADA _"), "id starts with the uppercased name prefix: %s", d.ID)
	assert.Equal(t, "owner@example.com", d.OwnerID)
	assert.True(t, d.OutstandingDebt.IsZero())

	// Short names are padded rather than truncated.
	addr := d.Address
	short, err := NewDebtor("owner@example.com", "Bo", "+1 555 010 7788", "bo@example.com", addr, testNow)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(short.ID, "BOXX_"))
}

func TestNewDebtorIDMultibyteName(t *testing.T) {
	addr, err := NewAddress("1 Main St", "Springfield", "IL", "")
	require.NoError(t, err)

	d, err := NewDebtor("owner@example.com", "Øyvind Åse", "+1 555 010 7788", "oyvind@example.com", addr, testNow)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(d.ID), "id must not split a rune: %q", d.ID)
	assert.True(t, strings.HasPrefix(d.ID, "ØYVI_"), "id prefix takes the first four runes: %s", d.ID)

	short, err := NewDebtor("owner@example.com", "Åsa", "+1 555 010 7788", "asa@example.com", addr, testNow)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(short.ID))
	assert.True(t, strings.HasPrefix(short.ID, "ÅSAX_"), "short names pad by rune count: %s", short.ID)
}

func TestNewDebtorValidatesContactInfo(t *testing.T) {
	addr, err := NewAddress("1 Main St", "Springfield", "IL", "")
	require.NoError(t, err)

	_, err = NewDebtor("owner@example.com", "Ada", "not-a-phone", "ada@example.com", addr, testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewDebtor("owner@example.com", "Ada", "+1 555 010 7788", "not-an-email", addr, testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewDebtor("owner@example.com", "  ", "+1 555 010 7788", "ada@example.com", addr, testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestNewAddressRequiredParts(t *testing.T) {
	_, err := NewAddress("", "Springfield", "IL", "")
	assert.Error(t, err)
	_, err = NewAddress("1 Main St", "", "IL", "")
	assert.Error(t, err)
	_, err = NewAddress("1 Main St", "Springfield", "", "")
	assert.Error(t, err)

	// Zip code is optional.
	_, err = NewAddress("1 Main St", "Springfield", "IL", "")
	assert.NoError(t, err)
}

// Invariant 3: the outstanding total always equals the sum of the owned
// debts' balances.
func TestOutstandingDebtDerivation(t *testing.T) {
	d := newTestDebtor(t)

	first, err := NewDebt(decimal.NewFromInt(100), testNow.AddDate(0, 1, 0), nil, testNow)
	require.NoError(t, err)
	second, err := NewDebt(decimal.NewFromInt(50), testNow.AddDate(0, 2, 0), nil, testNow)
	require.NoError(t, err)

	d.AddDebt(first)
	d.AddDebt(second)
	assert.Equal(t, d.ID, first.DebtorID)
	assert.True(t, d.OutstandingDebt.Equal(decimal.NewFromInt(150)))

	_, err = first.RecordPayment(decimal.NewFromInt(30), "Cash", "", testNow)
	require.NoError(t, err)
	d.RecalculateOutstanding()
	assert.True(t, d.OutstandingDebt.Equal(decimal.NewFromInt(120)))

	removed, err := d.RemoveDebt(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, removed.ID)
	assert.True(t, d.OutstandingDebt.Equal(decimal.NewFromInt(50)))

	_, err = d.RemoveDebt("missing")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRecordLastPayment(t *testing.T) {
	d := newTestDebtor(t)

	require.NoError(t, d.RecordLastPayment(testNow.Add(-time.Hour), testNow))
	require.NotNil(t, d.LastPaymentDate)
	assert.Equal(t, testNow.Add(-time.Hour), *d.LastPaymentDate)

	err := d.RecordLastPayment(testNow.Add(time.Hour), testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestUpdateAddressReplacesValue(t *testing.T) {
	d := newTestDebtor(t)
	next, err := NewAddress("9 Elm St", "Shelbyville", "IL", "")
	require.NoError(t, err)

	d.UpdateAddress(next)
	assert.Equal(t, "9 Elm St", d.Address.Street)
	assert.Empty(t, d.Address.ZipCode)
}
