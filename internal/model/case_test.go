package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusPriorityOrdering(t *testing.T) {
	// The most operator-active record must win deduplication.
	assert.Greater(t, StatusInProgress.Priority(), StatusAssigned.Priority())
	assert.Greater(t, StatusAssigned.Priority(), StatusCompleted.Priority())
	assert.Greater(t, StatusCompleted.Priority(), StatusFree.Priority())
	assert.Greater(t, StatusFree.Priority(), CaseStatus("bogus").Priority())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from CaseStatus
		to   CaseStatus
		want bool
	}{
		{name: "free to assigned", from: StatusFree, to: StatusAssigned, want: true},
		{name: "free to skipped", from: StatusFree, to: StatusSkipped, want: true},
		{name: "free straight to in_progress", from: StatusFree, to: StatusInProgress, want: false},
		{name: "assigned to in_progress", from: StatusAssigned, to: StatusInProgress, want: true},
		{name: "assigned to completed", from: StatusAssigned, to: StatusCompleted, want: false},
		{name: "in_progress to completed", from: StatusInProgress, to: StatusCompleted, want: true},
		{name: "completed is terminal", from: StatusCompleted, to: StatusFree, want: false},
		{name: "skipped is terminal", from: StatusSkipped, to: StatusAssigned, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []CaseStatus{StatusFree, StatusAssigned, StatusInProgress, StatusCompleted, StatusSkipped} {
		assert.True(t, s.Valid(), "%s should be valid", s)
	}
	assert.False(t, CaseStatus("wolny").Valid())
	assert.False(t, CaseStatus("").Valid())
}

func TestParseGroup(t *testing.T) {
	g, ok := ParseGroup("DE")
	assert.True(t, ok)
	assert.Equal(t, GroupDE, g)

	_, ok = ParseGroup("PL")
	assert.False(t, ok)
}

func TestNewBatchID(t *testing.T) {
	ts := time.Date(2026, 3, 12, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "batch_20260312_090507", NewBatchID(ts))
}

func TestReconciliationSummaryTotal(t *testing.T) {
	s := ReconciliationSummary{Added: 2, Replaced: 3, Reactivated: 1, Skipped: 4}
	assert.Equal(t, 10, s.Total())
}

func TestAutopilotRemaining(t *testing.T) {
	j := AutopilotJob{Queue: [][]string{{"1", "2"}, {"3"}}}
	assert.Equal(t, 3, j.Remaining())
	assert.Equal(t, 0, (&AutopilotJob{}).Remaining())
}
