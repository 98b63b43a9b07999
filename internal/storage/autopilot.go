package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

// SaveAutopilotJob upserts the singleton job record. The queue and failure
// list are stored as JSON so resuming a half-finished run survives restarts.
func (s *SQLiteStorage) SaveAutopilotJob(ctx context.Context, job *model.AutopilotJob) error {
	queue, err := json.Marshal(job.Queue)
	if err != nil {
		return fmt.Errorf("failed to encode autopilot queue: %w", err)
	}
	failed, err := json.Marshal(job.FailedOrders)
	if err != nil {
		return fmt.Errorf("failed to encode failed orders: %w", err)
	}

	job.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO autopilot (id, state, batch_id, queue, failed_orders, processed, total, started_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			batch_id = excluded.batch_id,
			queue = excluded.queue,
			failed_orders = excluded.failed_orders,
			processed = excluded.processed,
			total = excluded.total,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at`,
		string(job.State), job.BatchID, string(queue), string(failed),
		job.Processed, job.Total, job.StartedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save autopilot job: %w", err)
	}
	return nil
}

// GetAutopilotJob returns the persisted job, or an idle zero job when none
// has ever been saved.
func (s *SQLiteStorage) GetAutopilotJob(ctx context.Context) (*model.AutopilotJob, error) {
	var job model.AutopilotJob
	var state, queue, failed string
	var startedAt, updatedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT state, batch_id, queue, failed_orders, processed, total, started_at, updated_at
		FROM autopilot WHERE id = 1`).Scan(
		&state, &job.BatchID, &queue, &failed,
		&job.Processed, &job.Total, &startedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.AutopilotJob{State: model.JobIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load autopilot job: %w", err)
	}

	job.State = model.JobState(state)
	if err := json.Unmarshal([]byte(queue), &job.Queue); err != nil {
		return nil, fmt.Errorf("failed to decode autopilot queue: %w", err)
	}
	if err := json.Unmarshal([]byte(failed), &job.FailedOrders); err != nil {
		return nil, fmt.Errorf("failed to decode failed orders: %w", err)
	}
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if updatedAt.Valid {
		job.UpdatedAt = updatedAt.Time
	}
	return &job, nil
}

// ClearAutopilotJob deletes the job record, returning the store to the
// idle state.
func (s *SQLiteStorage) ClearAutopilotJob(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM autopilot WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to clear autopilot job: %w", err)
	}
	return nil
}
