package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored aggregates, not validation
// failures:
// - ErrNotFound: aggregate does not exist in the store for the given owner
// - ErrConflict: uniqueness violation or lost optimistic-concurrency race
// - ErrRestricted: delete blocked because child records still reference the row
//
// For business-rule violations use pkg/domain-errors directly.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrRestricted = errors.New("restricted")
)
