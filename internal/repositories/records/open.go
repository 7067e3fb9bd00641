package records

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/symbiobot/internal/migrations"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
	BackendJSON     Backend = "json"
)

// Options selects and configures a backend.
type Options struct {
	Backend Backend

	// DSN is the SQLite file or the PostgreSQL connection string.
	DSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// JSONPath is the document used by the json backend.
	JSONPath string
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for dialect ("sqlite3" or
// "pgx") to db.
func RunMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	var (
		fsys fs.FS
		dir  string
	)
	switch dialect {
	case "sqlite3":
		fsys, dir = migrations.SQLite, "sqlite"
	case "pgx":
		fsys, dir = migrations.Postgres, "postgres"
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, dir)
}

// Open builds the Repository described by opts. The returned function
// releases the underlying connection.
func Open(ctx context.Context, opts Options) (Repository, func() error, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		dsn := opts.DSN
		if dsn == "" {
			dsn = "symbiobot.db"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := RunMigrations(ctx, db, "sqlite3"); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return NewSQLiteRepository(db), db.Close, nil

	case BackendPostgres:
		db, err := sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := RunMigrations(ctx, db, "pgx"); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return NewPostgresRepository(db), db.Close, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisRepository(client, opts.RedisPrefix), client.Close, nil

	case BackendJSON:
		path := opts.JSONPath
		if path == "" {
			path = "profiles.json"
		}
		return NewJSONFileRepository(path), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
}
