// Package reconcile classifies ledger orders for recomputation and merges a
// freshly scored case batch against persisted state without destroying
// operator-in-progress work or duplicating records.
//
// The merge itself is a pure function over a snapshot; applying it to the
// store is a separate, thin adapter (see Apply).
package reconcile

import (
	"sort"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

// OpKind is the disposition of one incoming case during a commit-merge.
type OpKind string

// Commit-merge outcomes per order number.
const (
	OpAdd        OpKind = "add"        // no persisted record
	OpReplace    OpKind = "replace"    // persisted record was free
	OpReactivate OpKind = "reactivate" // persisted record was completed
	OpSkip       OpKind = "skip"       // operator is actively working it
)

// Operation is one step of a reconciliation plan.
type Operation struct {
	Existing *model.CaseRecord
	Kind     OpKind
	Incoming model.CaseRecord
}

// Result is a reconciliation plan plus its outcome counts.
type Result struct {
	Ops     []Operation
	Summary model.ReconciliationSummary
}

// Selection partitions ledger orders by whether their score must be
// recomputed or can be carried forward from persisted state.
type Selection struct {
	Reuse     map[string]model.CaseRecord
	Recompute []string
}

// DeduplicateByPriority indexes persisted cases by order number. When the
// same order appears in several historical records, the one with the highest
// status priority wins (in_progress > assigned > completed > free).
func DeduplicateByPriority(cases []model.CaseRecord) map[string]model.CaseRecord {
	byOrder := make(map[string]model.CaseRecord)
	for _, c := range cases {
		if c.OrderNumber == "" {
			continue
		}
		prev, ok := byOrder[c.OrderNumber]
		if !ok || c.Status.Priority() > prev.Status.Priority() {
			byOrder[c.OrderNumber] = c
		}
	}
	return byOrder
}

// SelectForRecompute classifies every ledger order into recompute or reuse.
// Orders absent from persisted state, and persisted completed orders, are
// recomputed; free, assigned and in_progress orders keep their previous
// score and must not be resubmitted to the scoring service. Completed orders
// that dropped out of the ledger are recomputed too, so finished work stays
// visible in the unified report.
func SelectForRecompute(poolOrders []string, persisted map[string]model.CaseRecord) Selection {
	sel := Selection{Reuse: make(map[string]model.CaseRecord)}
	inPool := make(map[string]struct{}, len(poolOrders))

	for _, nr := range poolOrders {
		inPool[nr] = struct{}{}
		existing, ok := persisted[nr]
		if !ok || existing.Status == model.StatusCompleted {
			sel.Recompute = append(sel.Recompute, nr)
			continue
		}
		sel.Reuse[nr] = existing
	}

	for nr, existing := range persisted {
		if _, ok := inPool[nr]; ok {
			continue
		}
		if existing.Status == model.StatusCompleted {
			sel.Recompute = append(sel.Recompute, nr)
		}
	}

	sort.Strings(sel.Recompute)
	return sel
}

// Reconcile plans the commit-merge of incoming cases against a snapshot of
// persisted state. It never plans a write for an order an operator is
// actively working (assigned / in_progress); free records are replaced and
// completed ones reactivated, both as fresh free records.
func Reconcile(persisted map[string]model.CaseRecord, incoming []model.CaseRecord) Result {
	var res Result

	for _, c := range incoming {
		existing, ok := persisted[c.OrderNumber]
		if !ok {
			res.Ops = append(res.Ops, Operation{Kind: OpAdd, Incoming: c})
			res.Summary.Added++
			continue
		}

		prev := existing
		switch existing.Status {
		case model.StatusAssigned, model.StatusInProgress:
			res.Ops = append(res.Ops, Operation{Kind: OpSkip, Incoming: c, Existing: &prev})
			res.Summary.Skipped++
		case model.StatusCompleted:
			res.Ops = append(res.Ops, Operation{Kind: OpReactivate, Incoming: c, Existing: &prev})
			res.Summary.Reactivated++
		default:
			res.Ops = append(res.Ops, Operation{Kind: OpReplace, Incoming: c, Existing: &prev})
			res.Summary.Replaced++
		}
	}

	return res
}
