// Package guard holds the invariant primitives shared by every aggregate
// boundary. All guards are pure: they inspect their arguments and either
// return nil or a coded invariant error. No guard retries, logs, or mutates.
package guard

import (
	"time"

	"github.com/shopspring/decimal"

	dErrors "tally/pkg/domain-errors"
)

// RequirePositiveAmount fails when a money amount is zero or negative.
func RequirePositiveAmount(name string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%s must be greater than zero", name)
	}
	return nil
}

// RequireNonNegativeAmount fails when a money amount is negative.
func RequireNonNegativeAmount(name string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%s must not be negative", name)
	}
	return nil
}

// RequirePositive fails when an integer quantity is zero or negative.
func RequirePositive(name string, n int) error {
	if n <= 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%s must be greater than zero", name)
	}
	return nil
}

// RequireNonNegative fails when an integer quantity is negative.
func RequireNonNegative(name string, n int) error {
	if n < 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%s must not be negative", name)
	}
	return nil
}

// RequireFutureOrEqual fails when date is strictly before reference.
func RequireFutureOrEqual(name string, date, reference time.Time) error {
	if date.Before(reference) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%s must not be in the past", name)
	}
	return nil
}

// RequireNotBlank fails on empty or whitespace-only strings.
func RequireNotBlank(name, value string) error {
	if isBlank(value) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%s must not be empty", name)
	}
	return nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
