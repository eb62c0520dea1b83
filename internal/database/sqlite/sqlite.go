// Package sqlite opens the embedded single-file store used for local runs and
// tests.
package sqlite

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var schemaSQL string

// DriverName is the database/sql name registered by modernc.org/sqlite.
const DriverName = "sqlite"

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Open opens (creating if needed) the database at path and applies pragmas
// and the schema. The pool is capped at one connection: SQLite has a single
// writer and the foreign_keys pragma is per connection.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		// RFC 3339-like text keeps UTC timestamps lexically ordered.
		dsn += "?_time_format=sqlite"
	}

	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database %s: %w", path, err)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := executeSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("sqlite database ready", "path", path)
	return db, nil
}

func executeSchema(ctx context.Context, db *sqlx.DB) error {
	for i, statement := range strings.Split(schemaSQL, ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to execute schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
