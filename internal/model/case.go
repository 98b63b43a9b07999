// Package model defines the core domain models used throughout the application.
package model

import "time"

// CaseStatus tracks a case through the manual fulfillment lifecycle.
type CaseStatus string

// Case lifecycle states. A case is created free, an operator picks it up
// (assigned), works it (in_progress) and closes it (completed). The skipped
// state is a terminal used by some ledgers for orders that never ship.
const (
	StatusFree       CaseStatus = "free"
	StatusAssigned   CaseStatus = "assigned"
	StatusInProgress CaseStatus = "in_progress"
	StatusCompleted  CaseStatus = "completed"
	StatusSkipped    CaseStatus = "skipped"
)

// Priority returns the tie-break weight used when the same order number
// appears in multiple persisted cases: the most operator-active record wins.
func (s CaseStatus) Priority() int {
	switch s {
	case StatusInProgress:
		return 4
	case StatusAssigned:
		return 3
	case StatusCompleted:
		return 2
	case StatusFree:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is a known lifecycle state.
func (s CaseStatus) Valid() bool {
	switch s {
	case StatusFree, StatusAssigned, StatusInProgress, StatusCompleted, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the operator-driven move from s to next is
// legal. The engine itself never transitions a case; it only replaces free
// and completed records wholesale during reconciliation.
func (s CaseStatus) CanTransition(next CaseStatus) bool {
	switch s {
	case StatusFree:
		return next == StatusAssigned || next == StatusSkipped
	case StatusAssigned:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusCompleted
	default:
		return false
	}
}

// Group identifies the operator pool a case is routed to.
type Group string

// Operator groups, fixed by the report format.
const (
	GroupDE   Group = "DE"
	GroupFR   Group = "FR"
	GroupUKPL Group = "UKPL"
)

// Groups lists all operator groups in report order.
func Groups() []Group {
	return []Group{GroupDE, GroupFR, GroupUKPL}
}

// ParseGroup converts a string to a Group, reporting whether it is known.
func ParseGroup(s string) (Group, bool) {
	switch Group(s) {
	case GroupDE, GroupFR, GroupUKPL:
		return Group(s), true
	default:
		return "", false
	}
}

// CaseRecord is a scored, grouped unit of prioritized work derived from a
// ledger block. SourceLine holds the verbatim ledger text the score was
// computed from and is the authoritative audit trail for the record.
type CaseRecord struct {
	AssignedAt      *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	ID              string
	OrderNumber     string
	PriorityIcon    string
	PriorityLabel   string
	CommercialIndex string
	SourceLine      string
	HeaderLine      string
	AssignedTo      string
	BatchID         string
	Group           Group
	Status          CaseStatus
	Score           int
	SortOrder       int
}

// ReconciliationSummary reports the outcome counts of a commit-merge.
type ReconciliationSummary struct {
	Added       int
	Replaced    int
	Reactivated int
	Skipped     int
}

// Total returns the number of orders the merge considered.
func (s ReconciliationSummary) Total() int {
	return s.Added + s.Replaced + s.Reactivated + s.Skipped
}
