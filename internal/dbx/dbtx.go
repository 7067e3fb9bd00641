// Package dbx holds the database/sql plumbing shared by the SQL record
// repositories: a handle type satisfied by both *sql.DB and *sql.Tx,
// transactional batches and row collection.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn in a transaction. It commits when fn returns nil and rolls
// back otherwise; a panic in fn rolls back and is re-raised.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(ctx, tx)
}

// Each applies fn to every item inside one transaction, so the batch is
// written entirely or not at all.
func Each[T any](ctx context.Context, db *sql.DB, items []T, fn func(ctx context.Context, q DBTX, item T) error) error {
	if len(items) == 0 {
		return nil
	}
	return WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		for _, it := range items {
			if err := fn(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
}

// Collect scans every row of rows and closes it.
func Collect[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
