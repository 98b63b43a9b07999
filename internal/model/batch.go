package model

import (
	"fmt"
	"time"
)

// BatchStatus marks whether a batch is the live working set.
type BatchStatus string

// Batch states. Exactly one batch is active at a time; committing a new one
// archives the rest.
const (
	BatchActive   BatchStatus = "active"
	BatchArchived BatchStatus = "archived"
)

// Batch is a committed, timestamped set of case records superseding the
// previous active set.
type Batch struct {
	CreatedAt  time.Time
	ID         string
	DateLabel  string
	Summary    string
	PromptUsed string
	ModelUsed  string
	Status     BatchStatus
	TotalCases int
}

// NewBatchID derives a batch identifier from its creation time.
func NewBatchID(t time.Time) string {
	return fmt.Sprintf("batch_%s", t.Format("20060102_150405"))
}
