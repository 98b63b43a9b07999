package reconcile

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

func persistedCase(order string, status model.CaseStatus) model.CaseRecord {
	return model.CaseRecord{
		ID:          "old_" + order,
		OrderNumber: order,
		Status:      status,
		Score:       10,
	}
}

func TestDeduplicateByPriority(t *testing.T) {
	cases := []model.CaseRecord{
		{ID: "a", OrderNumber: "100", Status: model.StatusFree},
		{ID: "b", OrderNumber: "100", Status: model.StatusInProgress},
		{ID: "c", OrderNumber: "100", Status: model.StatusCompleted},
		{ID: "d", OrderNumber: "200", Status: model.StatusAssigned},
		{OrderNumber: "", Status: model.StatusFree},
	}

	byOrder := DeduplicateByPriority(cases)

	require.Len(t, byOrder, 2)
	assert.Equal(t, "b", byOrder["100"].ID, "in_progress outranks completed and free")
	assert.Equal(t, "d", byOrder["200"].ID)
}

func TestSelectForRecompute(t *testing.T) {
	persisted := map[string]model.CaseRecord{
		"100": persistedCase("100", model.StatusFree),
		"200": persistedCase("200", model.StatusAssigned),
		"300": persistedCase("300", model.StatusInProgress),
		"400": persistedCase("400", model.StatusCompleted),
		"500": persistedCase("500", model.StatusCompleted), // not in pool
		"600": persistedCase("600", model.StatusFree),      // not in pool
	}
	pool := []string{"100", "200", "300", "400", "700"}

	sel := SelectForRecompute(pool, persisted)

	// New and completed orders are rescored; completed orders that left the
	// pool still need to show up in the report.
	assert.Equal(t, []string{"400", "500", "700"}, sel.Recompute)

	reuse := make([]string, 0, len(sel.Reuse))
	for nr := range sel.Reuse {
		reuse = append(reuse, nr)
	}
	sort.Strings(reuse)
	assert.Equal(t, []string{"100", "200", "300"}, reuse)
}

func TestSelectForRecomputeUnionCoversPool(t *testing.T) {
	persisted := map[string]model.CaseRecord{
		"100": persistedCase("100", model.StatusFree),
		"400": persistedCase("400", model.StatusCompleted),
		"900": persistedCase("900", model.StatusCompleted), // absent from pool
	}
	pool := []string{"100", "200", "400"}

	sel := SelectForRecompute(pool, persisted)

	union := make(map[string]struct{})
	for _, nr := range sel.Recompute {
		union[nr] = struct{}{}
	}
	for nr := range sel.Reuse {
		union[nr] = struct{}{}
	}

	// Union must equal all pool orders plus persisted completed orders
	// missing from the pool.
	want := map[string]struct{}{"100": {}, "200": {}, "400": {}, "900": {}}
	assert.Equal(t, want, union)
}

func TestSelectForRecomputeEmptyState(t *testing.T) {
	sel := SelectForRecompute([]string{"100", "200"}, nil)
	assert.Equal(t, []string{"100", "200"}, sel.Recompute)
	assert.Empty(t, sel.Reuse)
}

func TestReconcile(t *testing.T) {
	persisted := map[string]model.CaseRecord{
		"100": persistedCase("100", model.StatusFree),
		"200": persistedCase("200", model.StatusInProgress),
		"300": persistedCase("300", model.StatusCompleted),
		"400": persistedCase("400", model.StatusAssigned),
	}
	incoming := []model.CaseRecord{
		{OrderNumber: "100", Score: 50},
		{OrderNumber: "200", Score: 60},
		{OrderNumber: "300", Score: 70},
		{OrderNumber: "400", Score: 80},
		{OrderNumber: "500", Score: 90},
	}

	res := Reconcile(persisted, incoming)

	require.Len(t, res.Ops, 5)
	kinds := make(map[string]OpKind)
	for _, op := range res.Ops {
		kinds[op.Incoming.OrderNumber] = op.Kind
	}
	assert.Equal(t, OpReplace, kinds["100"])
	assert.Equal(t, OpSkip, kinds["200"])
	assert.Equal(t, OpReactivate, kinds["300"])
	assert.Equal(t, OpSkip, kinds["400"])
	assert.Equal(t, OpAdd, kinds["500"])

	assert.Equal(t, model.ReconciliationSummary{
		Added:       1,
		Replaced:    1,
		Reactivated: 1,
		Skipped:     2,
	}, res.Summary)
}

func TestReconcileNeverWritesOverActiveWork(t *testing.T) {
	// Property: the skip count equals the number of incoming orders whose
	// persisted record is assigned or in_progress.
	persisted := map[string]model.CaseRecord{
		"1": persistedCase("1", model.StatusAssigned),
		"2": persistedCase("2", model.StatusInProgress),
		"3": persistedCase("3", model.StatusFree),
	}
	incoming := []model.CaseRecord{
		{OrderNumber: "1"}, {OrderNumber: "2"}, {OrderNumber: "3"}, {OrderNumber: "4"},
	}

	res := Reconcile(persisted, incoming)

	assert.Equal(t, 2, res.Summary.Skipped)
	for _, op := range res.Ops {
		if op.Kind == OpSkip {
			continue
		}
		require.NotNil(t, op.Incoming)
		if op.Existing != nil {
			assert.NotContains(t,
				[]model.CaseStatus{model.StatusAssigned, model.StatusInProgress},
				op.Existing.Status)
		}
	}
}

func TestReconcileEmptyInputs(t *testing.T) {
	res := Reconcile(nil, nil)
	assert.Empty(t, res.Ops)
	assert.Equal(t, model.ReconciliationSummary{}, res.Summary)
}
