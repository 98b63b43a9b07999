package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/common"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func testCase(id, order string) *model.CaseRecord {
	return &model.CaseRecord{
		ID:            id,
		BatchID:       "batch_20260312_100000",
		OrderNumber:   order,
		Score:         70,
		PriorityIcon:  "🟡",
		PriorityLabel: "wazne",
		Group:         model.GroupDE,
		SourceLine:    "NrZam: " + order + "\ndetails",
		HeaderLine:    "[SCORE=70] 🟡 | wazne",
		Status:        model.StatusFree,
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Missing pools read as empty, not as an error.
	data, err := store.LoadLedger(ctx, model.LedgerPrimary)
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, store.SaveLedger(ctx, model.LedgerPrimary, "NrZam: 100\nfoo"))
	require.NoError(t, store.SaveLedger(ctx, model.LedgerPrimary, "NrZam: 100\nbar"))

	data, err = store.LoadLedger(ctx, model.LedgerPrimary)
	require.NoError(t, err)
	assert.Equal(t, "NrZam: 100\nbar", data)

	require.NoError(t, store.ClearLedgers(ctx))
	data, err = store.LoadLedger(ctx, model.LedgerPrimary)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCaseCRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	c := testCase("case_1", "100")
	require.NoError(t, store.SaveCase(ctx, c))

	got, err := store.GetCase(ctx, "case_1")
	require.NoError(t, err)
	assert.Equal(t, "100", got.OrderNumber)
	assert.Equal(t, model.StatusFree, got.Status)
	assert.Equal(t, model.GroupDE, got.Group)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Nil(t, got.AssignedAt)

	_, err = store.GetCase(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.DeleteCase(ctx, "case_1"))
	assert.ErrorIs(t, store.DeleteCase(ctx, "case_1"), common.ErrNotFound)
}

func TestSaveCaseValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	c := testCase("", "100")
	assert.Error(t, store.SaveCase(ctx, c))

	c = testCase("case_1", "100")
	c.Status = "bogus"
	assert.Error(t, store.SaveCase(ctx, c))
}

func TestGetCasesFilterAndOrder(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	low := testCase("case_low", "100")
	low.Score = 20
	high := testCase("case_high", "200")
	high.Score = 95
	other := testCase("case_fr", "300")
	other.Score = 60
	other.Group = model.GroupFR

	for _, c := range []*model.CaseRecord{low, high, other} {
		require.NoError(t, store.SaveCase(ctx, c))
	}

	all, err := store.GetAllCases(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "case_high", all[0].ID)
	assert.Equal(t, "case_fr", all[1].ID)
	assert.Equal(t, "case_low", all[2].ID)

	de, err := store.GetCases(ctx, service.CaseFilter{Group: model.GroupDE})
	require.NoError(t, err)
	require.Len(t, de, 2)
	assert.Equal(t, "case_high", de[0].ID)

	limited, err := store.GetCases(ctx, service.CaseFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "case_high", limited[0].ID)
}

func TestUpdateCaseStatusTimestamps(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCase(ctx, testCase("case_1", "100")))

	require.NoError(t, store.UpdateCaseStatus(ctx, "case_1", model.StatusAssigned, "anna"))
	got, err := store.GetCase(ctx, "case_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, got.Status)
	assert.Equal(t, "anna", got.AssignedTo)
	require.NotNil(t, got.AssignedAt)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, store.UpdateCaseStatus(ctx, "case_1", model.StatusCompleted, "anna"))
	got, err = store.GetCase(ctx, "case_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.AssignedAt)
	require.NotNil(t, got.CompletedAt)

	err = store.UpdateCaseStatus(ctx, "missing", model.StatusAssigned, "anna")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBatchLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	old := &model.Batch{
		ID:        "batch_20260311_090000",
		CreatedAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
		Status:    model.BatchActive,
	}
	current := &model.Batch{
		ID:         "batch_20260312_100000",
		CreatedAt:  time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC),
		Status:     model.BatchActive,
		TotalCases: 12,
	}
	require.NoError(t, store.CreateBatch(ctx, old))
	require.NoError(t, store.CreateBatch(ctx, current))

	// Only the latest batch survives an archive sweep.
	require.NoError(t, store.ArchiveActiveBatches(ctx, current.ID))

	got, err := store.GetBatch(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchArchived, got.Status)

	got, err = store.GetBatch(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchActive, got.Status)

	batches, err := store.GetBatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, current.ID, batches[0].ID)

	current.Summary = "dodane: 5, pominiete: 7"
	require.NoError(t, store.UpdateBatch(ctx, current))
	got, err = store.GetBatch(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, "dodane: 5, pominiete: 7", got.Summary)

	n, err := store.PurgeBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAutopilotJobRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// No record means idle, not an error.
	job, err := store.GetAutopilotJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.JobIdle, job.State)
	assert.Empty(t, job.Queue)

	job = &model.AutopilotJob{
		State:        model.JobRunning,
		BatchID:      "batch_20260312_100000",
		Queue:        [][]string{{"100", "200"}, {"300"}},
		FailedOrders: []string{"999"},
		Processed:    2,
		Total:        5,
		StartedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.SaveAutopilotJob(ctx, job))

	got, err := store.GetAutopilotJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, got.State)
	assert.Equal(t, [][]string{{"100", "200"}, {"300"}}, got.Queue)
	assert.Equal(t, []string{"999"}, got.FailedOrders)
	assert.Equal(t, 3, got.Remaining())
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, store.ClearAutopilotJob(ctx))
	got, err = store.GetAutopilotJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.JobIdle, got.State)
}
