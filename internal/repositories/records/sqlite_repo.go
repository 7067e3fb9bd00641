package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/dbx"
)

// SQLiteRepository implements Repository on top of a SQLite database.
// Insertion order is the table rowid, which an upsert does not change.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a SQLiteRepository bound to db. The schema is
// expected to be migrated already (see RunMigrations).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func sqliteUpsert(ctx context.Context, q dbx.DBTX, key string, value []byte) error {
	query := `INSERT INTO profile_records (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := q.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// Get returns the stored value for key.
func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM profile_records WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return value, nil
}

// Set upserts a single record.
func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	return sqliteUpsert(ctx, r.db, key, value)
}

// SetMany upserts all records inside one transaction.
func (r *SQLiteRepository) SetMany(ctx context.Context, recs []Record) error {
	return dbx.Each(ctx, r.db, recs, func(ctx context.Context, q dbx.DBTX, rec Record) error {
		return sqliteUpsert(ctx, q, rec.Key, rec.Value)
	})
}

// Delete removes the record for key if present.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM profile_records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// List returns all records ordered by rowid.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM profile_records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	return dbx.Collect(rows, scanRecord)
}
