package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/scorer"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/storage"
)

type funcScorer func(ctx context.Context, systemPrompt, userMessage string) (string, error)

func (f funcScorer) ScoreChunk(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return f(ctx, systemPrompt, userMessage)
}

func newTestStore(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEngine(t *testing.T, store service.Storage, sc ChunkScorer, chunkSize int) *Engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, sc, scorer.StaticPrompt("system prompt"), logger, chunkSize)
}

// reportText renders a minimal parseable priority report for the given
// orders, all in the DE section with descending scores.
func reportText(orders ...string) string {
	var b strings.Builder
	b.WriteString("▬▬▬▬▬▬ OPERATORZY DE ▬▬▬▬▬▬\n")
	for i, nr := range orders {
		fmt.Fprintf(&b, "[SCORE=%d] 🔴 | pilne | Index: X%d\n", 90-i, i+1)
		fmt.Fprintf(&b, "NrZam: %s\nszczegóły pozycji\n---\n", nr)
	}
	return b.String()
}

var nrZamRe = regexp.MustCompile(`NrZam:\s*(\d+)`)

// echoScorer returns a valid report covering exactly the orders mentioned in
// the request's chunk section.
func echoScorer() funcScorer {
	return func(_ context.Context, _, userMessage string) (string, error) {
		var orders []string
		seen := map[string]struct{}{}
		for _, m := range nrZamRe.FindAllStringSubmatch(userMessage, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			orders = append(orders, m[1])
		}
		return reportText(orders...), nil
	}
}

func seedLedgers(t *testing.T, store service.Storage, incremental string) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, store.SaveLedger(ctx, model.LedgerPrimary, "dane główne bez numerów"))
	require.NoError(t, store.SaveLedger(ctx, model.LedgerAuxiliary, "dane pomocnicze"))
	require.NoError(t, store.SaveLedger(ctx, model.LedgerIncremental, incremental))
}

func TestLoadLedgerReplaceAndMerge(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, echoScorer(), 0)
	ctx := context.Background()

	res, err := eng.LoadLedger(ctx, model.LedgerPrimary, "NrZam: 100\nfoo")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	// Primary replaces wholesale.
	res, err = eng.LoadLedger(ctx, model.LedgerPrimary, "NrZam: 200\nbar")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	// Incremental merges across submissions.
	_, err = eng.LoadLedger(ctx, model.LedgerIncremental, "NrZam: 100\nfoo")
	require.NoError(t, err)
	res, err = eng.LoadLedger(ctx, model.LedgerIncremental, "NrZam: 200\nbar")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 2, res.Total)

	text, err := store.LoadLedger(ctx, model.LedgerIncremental)
	require.NoError(t, err)
	assert.Contains(t, text, "NrZam: 100")
	assert.Contains(t, text, "NrZam: 200")
}

func TestGenerateReportFirstRun(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, echoScorer(), 0)
	seedLedgers(t, store, "NrZam: 100100\nfoo\n\nNrZam: 200200\nbar")

	rep, err := eng.GenerateReport(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Recomputed)
	assert.Equal(t, 0, rep.Reused)
	assert.Empty(t, rep.FailedOrders)
	require.Len(t, rep.Cases, 2)
	assert.Equal(t, "100100", rep.Cases[0].OrderNumber)
	assert.Equal(t, model.GroupDE, rep.Cases[0].Group)
	assert.Equal(t, "system prompt", rep.SystemPrompt)
}

func TestGenerateReportEmptyIncremental(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, echoScorer(), 0)

	_, err := eng.GenerateReport(context.Background(), GenerateOptions{})
	assert.Error(t, err)
}

func TestGenerateReportReusesActiveOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Order 100100 was scored before and an operator has it.
	require.NoError(t, store.SaveCase(ctx, &model.CaseRecord{
		ID:          "old_1",
		BatchID:     "batch_old",
		OrderNumber: "100100",
		Score:       55,
		Group:       model.GroupDE,
		Status:      model.StatusAssigned,
		AssignedTo:  "anna",
		SourceLine:  "NrZam: 100100\nfoo",
	}))

	var sawIncremental bool
	sc := funcScorer(func(ctx context.Context, sys, msg string) (string, error) {
		if strings.Contains(msg, "TRYB INKREMENTALNY") {
			sawIncremental = true
		}
		// The model returns a unified list, including a rescored copy of
		// the carried-forward order.
		return reportText("100100", "200200"), nil
	})
	eng := newTestEngine(t, store, sc, 0)
	seedLedgers(t, store, "NrZam: 100100\nfoo\n\nNrZam: 200200\nbar")

	rep, err := eng.GenerateReport(ctx, GenerateOptions{})
	require.NoError(t, err)

	assert.True(t, sawIncremental)
	assert.Equal(t, 1, rep.Recomputed)
	assert.Equal(t, 1, rep.Reused)
	require.Len(t, rep.Cases, 2)

	// The persisted record wins over whatever the model echoed back.
	var reused *model.CaseRecord
	for i := range rep.Cases {
		if rep.Cases[i].OrderNumber == "100100" {
			reused = &rep.Cases[i]
		}
	}
	require.NotNil(t, reused)
	assert.Equal(t, 55, reused.Score)
	assert.Empty(t, reused.AssignedTo)
}

func TestGenerateReportForceRescoresEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCase(ctx, &model.CaseRecord{
		ID:          "old_1",
		BatchID:     "batch_old",
		OrderNumber: "100100",
		Score:       55,
		Group:       model.GroupDE,
		Status:      model.StatusAssigned,
		SourceLine:  "NrZam: 100100\nfoo",
	}))

	eng := newTestEngine(t, store, echoScorer(), 0)
	seedLedgers(t, store, "NrZam: 100100\nfoo\n\nNrZam: 200200\nbar")

	rep, err := eng.GenerateReport(ctx, GenerateOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Recomputed)
	assert.Equal(t, 0, rep.Reused)
}

func TestGenerateReportChunkFailureIsolation(t *testing.T) {
	store := newTestStore(t)
	sc := funcScorer(func(ctx context.Context, sys, msg string) (string, error) {
		if strings.Contains(msg, "NrZam: 100100") {
			return "", fmt.Errorf("upstream exploded")
		}
		return echoScorer()(ctx, sys, msg)
	})
	eng := newTestEngine(t, store, sc, 1)
	seedLedgers(t, store, "NrZam: 100100\nfoo\n\nNrZam: 200200\nbar")

	var chunksDone int
	rep, err := eng.GenerateReport(context.Background(), GenerateOptions{
		OnChunk: func(done, total int) {
			chunksDone = done
			assert.Equal(t, 2, total)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, chunksDone)
	assert.Equal(t, []string{"100100"}, rep.FailedOrders)
	require.Len(t, rep.Cases, 1)
	assert.Equal(t, "200200", rep.Cases[0].OrderNumber)
}

func TestCommitBatchPreservesOperatorWork(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateBatch(ctx, &model.Batch{ID: "batch_old", Status: model.BatchActive}))
	require.NoError(t, store.SaveCase(ctx, &model.CaseRecord{
		ID:          "old_1",
		BatchID:     "batch_old",
		OrderNumber: "100100",
		Group:       model.GroupDE,
		Status:      model.StatusInProgress,
		AssignedTo:  "anna",
	}))

	eng := newTestEngine(t, store, echoScorer(), 0)
	rep := &Report{
		Cases: []model.CaseRecord{
			{OrderNumber: "100100", Score: 90, Group: model.GroupDE, SourceLine: "NrZam: 100100"},
			{OrderNumber: "200200", Score: 80, Group: model.GroupDE, SourceLine: "NrZam: 200200"},
		},
		SystemPrompt: "system prompt",
	}

	batch, summary, err := eng.CommitBatch(ctx, rep, "gemini-2.5-pro")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Replaced)

	// The in-progress record is untouched.
	got, err := store.GetCase(ctx, "old_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, "anna", got.AssignedTo)

	// The new order landed free in the new batch.
	fresh, err := store.GetCases(ctx, service.CaseFilter{BatchID: batch.ID})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "200200", fresh[0].OrderNumber)
	assert.Equal(t, model.StatusFree, fresh[0].Status)

	// The old batch is archived, the new one active.
	old, err := store.GetBatch(ctx, "batch_old")
	require.NoError(t, err)
	assert.Equal(t, model.BatchArchived, old.Status)

	gotBatch, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchActive, gotBatch.Status)
	assert.Equal(t, "gemini-2.5-pro", gotBatch.ModelUsed)
}

func TestAutopilotRunsToCompletion(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, echoScorer(), 2)
	seedLedgers(t, store, "NrZam: 100100\na\n\nNrZam: 200200\nb\n\nNrZam: 300300\nc")

	job, err := eng.StartAutopilot(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.JobDone, job.State)
	assert.Equal(t, 3, job.Processed)
	assert.Empty(t, job.Queue)
	assert.Empty(t, job.FailedOrders)

	cases, err := store.GetAllCases(context.Background())
	require.NoError(t, err)
	assert.Len(t, cases, 3)

	batch, err := store.GetBatch(context.Background(), job.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.TotalCases)
	assert.Equal(t, model.BatchActive, batch.Status)
}

func TestAutopilotPauseBetweenChunks(t *testing.T) {
	store := newTestStore(t)

	var eng *Engine
	calls := 0
	sc := funcScorer(func(ctx context.Context, sys, msg string) (string, error) {
		calls++
		if calls == 1 {
			// Operator hits pause while the first chunk is in flight.
			require.NoError(t, eng.PauseAutopilot(ctx))
		}
		return echoScorer()(ctx, sys, msg)
	})
	eng = newTestEngine(t, store, sc, 1)
	seedLedgers(t, store, "NrZam: 100100\na\n\nNrZam: 200200\nb")

	job, err := eng.StartAutopilot(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	// First chunk committed, second still queued.
	assert.Equal(t, model.JobIdle, job.State)
	assert.Equal(t, 1, job.Processed)
	assert.Equal(t, 1, job.Remaining())

	// Resume drains the rest.
	job, err = eng.ResumeAutopilot(context.Background(), GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.JobDone, job.State)
	assert.Equal(t, 2, job.Processed)
}

func TestAutopilotRejectsConcurrentStart(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, echoScorer(), 0)
	ctx := context.Background()

	require.NoError(t, store.SaveAutopilotJob(ctx, &model.AutopilotJob{
		State: model.JobRunning,
		Queue: [][]string{{"100100"}},
	}))

	_, err := eng.StartAutopilot(ctx, GenerateOptions{})
	assert.Error(t, err)
}

func TestAutopilotFailedChunkQuarantined(t *testing.T) {
	store := newTestStore(t)
	sc := funcScorer(func(ctx context.Context, sys, msg string) (string, error) {
		if strings.Contains(msg, "NrZam: 100100") {
			return "", fmt.Errorf("upstream exploded")
		}
		return echoScorer()(ctx, sys, msg)
	})
	eng := newTestEngine(t, store, sc, 1)
	seedLedgers(t, store, "NrZam: 100100\na\n\nNrZam: 200200\nb")

	job, err := eng.StartAutopilot(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.JobDone, job.State)
	assert.Equal(t, []string{"100100"}, job.FailedOrders)

	cases, err := store.GetAllCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "200200", cases[0].OrderNumber)
}
