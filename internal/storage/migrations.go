package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Schema migrations, applied in order. The PRAGMA user_version tracks which
// have run.
var migrations = []string{
	// v1: initial schema.
	`CREATE TABLE IF NOT EXISTS ledgers (
		kind TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		date_label TEXT NOT NULL DEFAULT '',
		total_cases INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		summary TEXT NOT NULL DEFAULT '',
		prompt_used TEXT NOT NULL DEFAULT '',
		model_used TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		order_number TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		priority_icon TEXT NOT NULL DEFAULT '',
		priority_label TEXT NOT NULL DEFAULT '',
		group_name TEXT NOT NULL DEFAULT '',
		commercial_index TEXT NOT NULL DEFAULT '',
		source_line TEXT NOT NULL DEFAULT '',
		header_line TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'free',
		assigned_to TEXT NOT NULL DEFAULT '',
		assigned_at TIMESTAMP,
		completed_at TIMESTAMP,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (batch_id) REFERENCES batches(id)
	);

	CREATE INDEX IF NOT EXISTS idx_cases_order_number ON cases(order_number);
	CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
	CREATE INDEX IF NOT EXISTS idx_cases_batch ON cases(batch_id);

	CREATE TABLE IF NOT EXISTS autopilot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state TEXT NOT NULL DEFAULT 'idle',
		batch_id TEXT NOT NULL DEFAULT '',
		queue TEXT NOT NULL DEFAULT '[]',
		failed_orders TEXT NOT NULL DEFAULT '[]',
		processed INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP,
		updated_at TIMESTAMP
	);`,
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		slog.Info("Applying migration", "version", i+1)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", i+1, err)
		}

		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}

		// PRAGMA cannot be parameterized.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to bump schema version to %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
