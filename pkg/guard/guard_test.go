package guard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	dErrors "tally/pkg/domain-errors"
)

func TestRequirePositiveAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr bool
	}{
		{"positive", decimal.NewFromInt(1), false},
		{"fractional", decimal.RequireFromString("0.01"), false},
		{"zero", decimal.Zero, true},
		{"negative", decimal.NewFromInt(-5), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequirePositiveAmount("amount", tt.amount)
			if tt.wantErr {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequireNonNegativeAmount(t *testing.T) {
	assert.NoError(t, RequireNonNegativeAmount("balance", decimal.Zero))
	assert.Error(t, RequireNonNegativeAmount("balance", decimal.NewFromInt(-1)))
}

func TestRequirePositive(t *testing.T) {
	assert.NoError(t, RequirePositive("quantity", 1))
	assert.Error(t, RequirePositive("quantity", 0))
	assert.Error(t, RequirePositive("quantity", -3))
}

func TestRequireFutureOrEqual(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, RequireFutureOrEqual("due date", now, now))
	assert.NoError(t, RequireFutureOrEqual("due date", now.Add(time.Hour), now))

	err := RequireFutureOrEqual("due date", now.Add(-time.Second), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	assert.Contains(t, err.Error(), "due date")
}

func TestRequireNotBlank(t *testing.T) {
	assert.NoError(t, RequireNotBlank("name", "Ada"))
	assert.Error(t, RequireNotBlank("name", ""))
	assert.Error(t, RequireNotBlank("name", "   \t"))
}
