package records

import (
	"context"
	"database/sql"
)

// Record is a single key/value pair as stored by a backend.
type Record struct {
	Key   string
	Value []byte
}

// Repository describes the durable operations required by the profile store.
type Repository interface {
	// Get returns the value stored under key or common.ErrorNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or overwrites a single record.
	Set(ctx context.Context, key string, value []byte) error

	// SetMany writes all records as one batch. Either every record is
	// written or none is.
	SetMany(ctx context.Context, recs []Record) error

	// Delete removes a record. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every record in insertion order.
	List(ctx context.Context) ([]Record, error)
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	err := rows.Scan(&rec.Key, &rec.Value)
	return rec, err
}
