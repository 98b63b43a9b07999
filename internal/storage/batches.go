package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/common"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

const batchColumns = "id, created_at, date_label, total_cases, status, summary, prompt_used, model_used"

// CreateBatch inserts a new batch record.
func (s *SQLiteStorage) CreateBatch(ctx context.Context, b *model.Batch) error {
	if b.ID == "" {
		return fmt.Errorf("batch ID cannot be empty")
	}
	if b.Status == "" {
		b.Status = model.BatchActive
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (`+batchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CreatedAt, b.DateLabel, b.TotalCases, string(b.Status),
		b.Summary, b.PromptUsed, b.ModelUsed)
	if err != nil {
		return fmt.Errorf("failed to create batch %s: %w", b.ID, err)
	}
	return nil
}

// UpdateBatch rewrites the mutable fields of an existing batch.
func (s *SQLiteStorage) UpdateBatch(ctx context.Context, b *model.Batch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET
			date_label = ?, total_cases = ?, status = ?,
			summary = ?, prompt_used = ?, model_used = ?
		WHERE id = ?`,
		b.DateLabel, b.TotalCases, string(b.Status),
		b.Summary, b.PromptUsed, b.ModelUsed, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update batch %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("batch %s: %w", b.ID, common.ErrNotFound)
	}
	return nil
}

// GetBatch fetches a batch by ID.
func (s *SQLiteStorage) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+batchColumns+" FROM batches WHERE id = ?", id)

	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %s: %w", id, err)
	}
	return b, nil
}

// GetBatches returns batches newest first, optionally limited.
func (s *SQLiteStorage) GetBatches(ctx context.Context, limit int) ([]model.Batch, error) {
	query := "SELECT " + batchColumns + " FROM batches ORDER BY created_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch iteration failed: %w", err)
	}
	return batches, nil
}

// ArchiveBatch marks one batch as archived.
func (s *SQLiteStorage) ArchiveBatch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE batches SET status = ? WHERE id = ?", string(model.BatchArchived), id)
	if err != nil {
		return fmt.Errorf("failed to archive batch %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// ArchiveActiveBatches archives every active batch except the given one.
// Commit calls this so exactly one batch stays active.
func (s *SQLiteStorage) ArchiveActiveBatches(ctx context.Context, exceptID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE batches SET status = ? WHERE status = ? AND id != ?",
		string(model.BatchArchived), string(model.BatchActive), exceptID)
	if err != nil {
		return fmt.Errorf("failed to archive active batches: %w", err)
	}
	return nil
}

// PurgeBatches deletes every batch record, returning how many were removed.
func (s *SQLiteStorage) PurgeBatches(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM batches")
	if err != nil {
		return 0, fmt.Errorf("failed to purge batches: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanBatch(row rowScanner) (*model.Batch, error) {
	var b model.Batch
	var status string

	err := row.Scan(&b.ID, &b.CreatedAt, &b.DateLabel, &b.TotalCases,
		&status, &b.Summary, &b.PromptUsed, &b.ModelUsed)
	if err != nil {
		return nil, err
	}

	b.Status = model.BatchStatus(status)
	return &b, nil
}
