package main

import (
	"context"
	"database/sql"
	"time"

	inventoryservice "tally/internal/inventory/service"
	inventorystore "tally/internal/inventory/store"

	dErrors "tally/pkg/domain-errors"
)

// inventoryPostgresTx mirrors ledgerPostgresTx for the inventory tables.
type inventoryPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newInventoryPostgresTx(db *sql.DB) *inventoryPostgresTx {
	return &inventoryPostgresTx{db: db}
}

func (t *inventoryPostgresTx) RunInTx(ctx context.Context, fn func(store inventoryservice.Store) error) error {
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

	if err := fn(inventorystore.NewPostgresTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}
