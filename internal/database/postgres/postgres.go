package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pricing-service/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema_postgres.sql
var schemaSQL string

func connString(cfg config.PostgresConfig, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, dbname)
}

// ConnectAndCreateDB connects to the configured database, creating it first
// through the maintenance database when it does not exist, and applies the
// schema.
func ConnectAndCreateDB(cfg config.PostgresConfig) (*sqlx.DB, error) {
	slog.Info("connecting to PostgreSQL",
		"host", cfg.Host, "port", cfg.Port, "user", cfg.Username, "dbname", cfg.DBname)

	defaultDB, err := sql.Open("postgres", connString(cfg, "postgres"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres db: %w", err)
	}
	defer defaultDB.Close()

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	if err := defaultDB.QueryRow(checkQuery, cfg.DBname).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		createQuery := fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.DBname)
		if _, err := defaultDB.Exec(createQuery); err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", cfg.DBname, err)
		}
		slog.Info("database created", "dbname", cfg.DBname)
	}

	db, err := sqlx.Connect("postgres", connString(cfg, cfg.DBname))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}

	if err := ExecuteSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// ExecuteSchema applies the embedded schema statement by statement. Every
// statement is idempotent, so this runs on each start.
func ExecuteSchema(ctx context.Context, db *sqlx.DB) error {
	successCount := 0
	for i, statement := range strings.Split(schemaSQL, ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to execute schema statement %d: %w", i+1, err)
		}
		successCount++
	}

	slog.Info("schema applied", "statements", successCount)
	return nil
}

// RetryConnectOnFailed blocks until a healthy connection is available,
// reconnecting every waitAmount.
func RetryConnectOnFailed(waitAmount time.Duration, db **sqlx.DB, cfg config.PostgresConfig) {
	for {
		if *db != nil {
			err := (*db).Ping()
			if err == nil {
				slog.Info("database connection is healthy, no retry needed")
				return
			}
			slog.Warn("failed to ping database, retrying connection", "error", err)
		}

		newDB, err := ConnectAndCreateDB(cfg)
		if err == nil {
			*db = newDB
			slog.Info("database retry connection succeeded")
			return
		}
		slog.Error("failed to retry database connection", "error", err, "next_retry", waitAmount)
		time.Sleep(waitAmount)
	}
}
