package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Beginner starts a transaction. *pgxpool.Pool, *pgxpool.Conn and pgx.Tx
// (savepoint) all satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxFromContext retrieves the active transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// RunInTx runs fn inside a transaction. An outer transaction already in ctx
// is reused as-is; otherwise one is started on the request-scoped connection,
// or on fallback when the context carries none. fn's error rolls back.
func RunInTx(ctx context.Context, fallback Beginner, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var (
		txCtx context.Context
		tx    pgx.Tx
		err   error
	)
	if conn := ConnFromContext(ctx); conn != nil {
		txCtx, tx, err = beginOn(ctx, conn)
	} else if fallback != nil {
		txCtx, tx, err = beginOn(ctx, fallback)
	} else {
		return errors.New("no database connection in context")
	}
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func beginOn(ctx context.Context, b Beginner) (context.Context, pgx.Tx, error) {
	tx, err := b.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}
