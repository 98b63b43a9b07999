// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

// CaseFilter defines filtering options for case queries. Zero values mean
// "no filter". Results are ordered by score, highest first.
type CaseFilter struct {
	Group      model.Group
	Status     model.CaseStatus
	AssignedTo string
	BatchID    string
	Limit      int
}

// Storage defines the contract for our persistence layer. The store is a
// plain document collection: point reads and writes by key, equality-filtered
// scans, deletes. No locking beyond per-document atomicity is assumed.
type Storage interface {
	// Ledger pool operations
	LoadLedger(ctx context.Context, kind model.LedgerKind) (string, error)
	SaveLedger(ctx context.Context, kind model.LedgerKind, data string) error
	ClearLedgers(ctx context.Context) error

	// Case operations
	SaveCase(ctx context.Context, c *model.CaseRecord) error
	GetCase(ctx context.Context, id string) (*model.CaseRecord, error)
	GetCases(ctx context.Context, filter CaseFilter) ([]model.CaseRecord, error)
	GetAllCases(ctx context.Context) ([]model.CaseRecord, error)
	DeleteCase(ctx context.Context, id string) error
	UpdateCaseStatus(ctx context.Context, id string, status model.CaseStatus, assignee string) error
	PurgeCases(ctx context.Context) (int, error)

	// Batch operations
	CreateBatch(ctx context.Context, b *model.Batch) error
	UpdateBatch(ctx context.Context, b *model.Batch) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	GetBatches(ctx context.Context, limit int) ([]model.Batch, error)
	ArchiveBatch(ctx context.Context, id string) error
	ArchiveActiveBatches(ctx context.Context, exceptID string) error
	PurgeBatches(ctx context.Context) (int, error)

	// Autopilot job state
	SaveAutopilotJob(ctx context.Context, job *model.AutopilotJob) error
	GetAutopilotJob(ctx context.Context) (*model.AutopilotJob, error)
	ClearAutopilotJob(ctx context.Context) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
