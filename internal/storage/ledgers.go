package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

// LoadLedger returns the persisted text of a ledger pool, or "" when the
// pool has never been loaded.
func (s *SQLiteStorage) LoadLedger(ctx context.Context, kind model.LedgerKind) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM ledgers WHERE kind = ?", string(kind)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load ledger %s: %w", kind, err)
	}
	return data, nil
}

// SaveLedger overwrites a ledger pool's text. Merge semantics for the
// incremental pool live in the ledger package; the store only sees the
// final text.
func (s *SQLiteStorage) SaveLedger(ctx context.Context, kind model.LedgerKind, data string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledgers (kind, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(kind), data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save ledger %s: %w", kind, err)
	}
	return nil
}

// ClearLedgers wipes all three ledger pools.
func (s *SQLiteStorage) ClearLedgers(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ledgers"); err != nil {
		return fmt.Errorf("failed to clear ledgers: %w", err)
	}
	return nil
}
