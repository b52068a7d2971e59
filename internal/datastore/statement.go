package datastore

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Statement is parameterized SQL with positional ($n) arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Query runs stmt and collects every row with scan. Rows from failed attempts are discarded.
func Query[T any](ctx context.Context, exec *Executor, mode Mode, op string, stmt Statement, scan pgx.RowToFunc[T]) ([]T, Outcome, error) {
	var out []T
	outcome, err := exec.Execute(ctx, mode, op, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		collected, err := pgx.CollectRows(rows, scan)
		if err != nil {
			return err
		}
		out = collected
		return nil
	})
	if err != nil || outcome.Skipped {
		return nil, outcome, err
	}
	return out, outcome, nil
}

// Exec runs stmt and returns the affected row count of the successful attempt.
func Exec(ctx context.Context, exec *Executor, mode Mode, op string, stmt Statement) (int64, Outcome, error) {
	var affected int64
	outcome, err := exec.Execute(ctx, mode, op, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil || outcome.Skipped {
		return 0, outcome, err
	}
	return affected, outcome, nil
}
