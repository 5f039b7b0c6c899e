package service

import "context"

// StoreTx provides a transactional boundary for ledger mutations.
// Implementations wrap a database transaction or, in-memory, a lock with
// snapshot rollback. Either every write inside the callback becomes durable
// or none does; a half-applied payment or a stale derived balance must never
// be observable by a subsequent read.
//
// Concurrent mutations of the same aggregate root are serialized by the
// implementation; a losing writer surfaces sentinel.ErrConflict and should
// reload before retrying.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}
