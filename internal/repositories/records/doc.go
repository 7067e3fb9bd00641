// Package records provides the durable key/value layer behind the profile
// store.
//
// # Overview
//
// Each profile is persisted as one record: the key is the user id in decimal
// text and the value is the JSON encoding of the profile. Repository hides the
// backend; implementations exist for SQLite, PostgreSQL, Redis and a plain
// JSON document on disk.
//
// # Ordering
//
// List returns records in first-insertion order. Overwriting a key keeps its
// position; deleting and re-adding it moves it to the end.
//
// Typical Usage
//
//	repo, closeFn, err := records.Open(ctx, records.Options{Backend: records.BackendSQLite, DSN: "bot.db"})
//	_ = repo.Set(ctx, "1001", raw)
//	all, _ := repo.List(ctx)
//	_ = closeFn()
package records
