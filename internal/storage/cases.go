package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/common"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
)

const caseColumns = `id, batch_id, order_number, score, priority_icon, priority_label,
	group_name, commercial_index, source_line, header_line, status,
	assigned_to, assigned_at, completed_at, sort_order, created_at`

// SaveCase inserts or replaces a case record.
func (s *SQLiteStorage) SaveCase(ctx context.Context, c *model.CaseRecord) error {
	if c.ID == "" {
		return fmt.Errorf("case ID cannot be empty")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("invalid case status: %s", c.Status)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cases (`+caseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BatchID, c.OrderNumber, c.Score, c.PriorityIcon, c.PriorityLabel,
		string(c.Group), c.CommercialIndex, c.SourceLine, c.HeaderLine, string(c.Status),
		c.AssignedTo, c.AssignedAt, c.CompletedAt, c.SortOrder, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save case %s: %w", c.ID, err)
	}
	return nil
}

// GetCase fetches a case by its document key.
func (s *SQLiteStorage) GetCase(ctx context.Context, id string) (*model.CaseRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+caseColumns+" FROM cases WHERE id = ?", id)

	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	return c, nil
}

// GetCases returns cases matching the filter, highest score first.
func (s *SQLiteStorage) GetCases(ctx context.Context, filter service.CaseFilter) ([]model.CaseRecord, error) {
	query := "SELECT " + caseColumns + " FROM cases"
	var clauses []string
	var args []any

	if filter.Group != "" {
		clauses = append(clauses, "group_name = ?")
		args = append(args, string(filter.Group))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		clauses = append(clauses, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.BatchID != "" {
		clauses = append(clauses, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY score DESC, sort_order ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCases(rows)
}

// GetAllCases returns every persisted case. Reconciliation works on this
// full snapshot.
func (s *SQLiteStorage) GetAllCases(ctx context.Context) ([]model.CaseRecord, error) {
	return s.GetCases(ctx, service.CaseFilter{})
}

// DeleteCase removes a case by key.
func (s *SQLiteStorage) DeleteCase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete case %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("case %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// UpdateCaseStatus records an operator-driven lifecycle change. Status
// values come from the UI collaborator and are preserved verbatim; assignee
// and timestamps follow the status.
func (s *SQLiteStorage) UpdateCaseStatus(ctx context.Context, id string, status model.CaseStatus, assignee string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid case status: %s", status)
	}

	now := time.Now().UTC()
	var assignedAt, completedAt *time.Time
	switch status {
	case model.StatusAssigned:
		assignedAt = &now
	case model.StatusCompleted:
		completedAt = &now
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE cases SET
			status = ?,
			assigned_to = ?,
			assigned_at = COALESCE(?, assigned_at),
			completed_at = COALESCE(?, completed_at)
		WHERE id = ?`,
		string(status), assignee, assignedAt, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update case %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("case %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// PurgeCases deletes every case record, returning how many were removed.
func (s *SQLiteStorage) PurgeCases(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cases")
	if err != nil {
		return 0, fmt.Errorf("failed to purge cases: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*model.CaseRecord, error) {
	var c model.CaseRecord
	var group, status string
	var assignedAt, completedAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.BatchID, &c.OrderNumber, &c.Score, &c.PriorityIcon, &c.PriorityLabel,
		&group, &c.CommercialIndex, &c.SourceLine, &c.HeaderLine, &status,
		&c.AssignedTo, &assignedAt, &completedAt, &c.SortOrder, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.Group = model.Group(group)
	c.Status = model.CaseStatus(status)
	if assignedAt.Valid {
		c.AssignedAt = &assignedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}

func scanCases(rows *sql.Rows) ([]model.CaseRecord, error) {
	var cases []model.CaseRecord
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("case iteration failed: %w", err)
	}
	return cases, nil
}
