package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/dbx"
)

// PostgresRepository implements Repository on PostgreSQL. Values are kept as
// JSONB and ordered by a serial column.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func postgresUpsert(ctx context.Context, q dbx.DBTX, key string, value []byte) error {
	query := `INSERT INTO profile_records (key, value) VALUES ($1, $2::jsonb)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = now()`
	if _, err := q.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM profile_records WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

func (r *PostgresRepository) Set(ctx context.Context, key string, value []byte) error {
	return postgresUpsert(ctx, r.db, key, value)
}

func (r *PostgresRepository) SetMany(ctx context.Context, recs []Record) error {
	return dbx.Each(ctx, r.db, recs, func(ctx context.Context, q dbx.DBTX, rec Record) error {
		return postgresUpsert(ctx, q, rec.Key, rec.Value)
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM profile_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM profile_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return dbx.Collect(rows, scanRecord)
}
