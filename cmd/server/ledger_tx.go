package main

import (
	"context"
	"database/sql"
	"time"

	ledgerservice "tally/internal/ledger/service"
	ledgerstore "tally/internal/ledger/store"

	dErrors "tally/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// ledgerPostgresTx runs a unit of work against the ledger tables inside one
// database transaction. Rollback after a successful commit is a no-op, so the
// deferred call is safe on every path.
type ledgerPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLedgerPostgresTx(db *sql.DB) *ledgerPostgresTx {
	return &ledgerPostgresTx{db: db}
}

func (t *ledgerPostgresTx) RunInTx(ctx context.Context, fn func(store ledgerservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ledgerstore.NewPostgresTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}
