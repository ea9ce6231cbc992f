package database

import (
	"context"
	"fmt"
)

// TxRunner runs a function inside a database transaction. Services depend on
// this interface so intake's persist-and-reconcile step can be tested without
// a live pool.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(q Querier) error) error
}

// WithinTx begins a transaction, runs fn with a tx-scoped Querier and commits.
// Any error from fn rolls the transaction back and is returned unchanged so
// sentinel checks still work.
func (db *DB) WithinTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after a successful commit.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ TxRunner = (*DB)(nil)
