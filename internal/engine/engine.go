// Package engine orchestrates the full scoring pipeline: ledger intake,
// recompute selection, chunked scoring calls, report parsing and the
// commit-merge that turns a report into the active case batch.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/ledger"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/reconcile"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/report"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/scorer"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
)

// ChunkScorer scores one chunk's prompt. Satisfied by scorer.Scorer.
type ChunkScorer interface {
	ScoreChunk(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Engine wires storage, the scoring client and the prompt source into the
// operations the CLI exposes.
type Engine struct {
	store     service.Storage
	scorer    ChunkScorer
	prompts   scorer.PromptSource
	logger    *slog.Logger
	chunkSize int
}

// New creates an engine. A chunkSize of zero means the default.
func New(store service.Storage, sc ChunkScorer, prompts scorer.PromptSource, logger *slog.Logger, chunkSize int) *Engine {
	if chunkSize <= 0 {
		chunkSize = scorer.DefaultChunkSize
	}
	return &Engine{
		store:     store,
		scorer:    sc,
		prompts:   prompts,
		logger:    logger,
		chunkSize: chunkSize,
	}
}

// LoadLedger stores ledger text under the given pool. The primary and
// auxiliary pools are replaced wholesale; the incremental pool is merged
// block-by-block so earlier submissions survive.
func (e *Engine) LoadLedger(ctx context.Context, kind model.LedgerKind, text string) (ledger.MergeResult, error) {
	if kind != model.LedgerIncremental {
		if err := e.store.SaveLedger(ctx, kind, text); err != nil {
			return ledger.MergeResult{}, err
		}
		n := ledger.CountOrders(text)
		e.logger.Info("ledger replaced", "kind", kind, "orders", n)
		return ledger.MergeResult{Text: text, Added: n, Total: n}, nil
	}

	existing, err := e.store.LoadLedger(ctx, kind)
	if err != nil {
		return ledger.MergeResult{}, err
	}

	merged := ledger.Merge(existing, text)
	if err := e.store.SaveLedger(ctx, kind, merged.Text); err != nil {
		return ledger.MergeResult{}, err
	}
	e.logger.Info("ledger merged",
		"kind", kind,
		"added", merged.Added,
		"updated", merged.Updated,
		"total", merged.Total)
	return merged, nil
}

// GenerateOptions tunes a report generation run.
type GenerateOptions struct {
	// Date stamps the prompt; zero means now.
	Date time.Time
	// Force rescoring of every pool order, ignoring reusable records.
	Force bool
	// OnChunk, when set, is called after each chunk completes or fails.
	OnChunk func(done, total int)
}

// Report is the outcome of a generation run, ready to commit.
type Report struct {
	// Cases in final report order: model output order for recomputed
	// records, then carried-forward records the model dropped.
	Cases []model.CaseRecord
	// RawOutputs holds each chunk's verbatim report text.
	RawOutputs []string
	// FailedOrders could not be scored in this run; their chunks failed
	// after exhausting the model chain.
	FailedOrders []string
	// Reused counts records carried forward without rescoring.
	Reused int
	// Recomputed counts orders actually submitted for scoring.
	Recomputed int
	// SystemPrompt is the prompt text used, recorded on commit for audit.
	SystemPrompt string
}

// GenerateReport runs the scoring pipeline: select which pool orders need
// rescoring, score them in chunks, parse the outputs and assemble the
// unified case list. A chunk failure quarantines that chunk's orders and
// the run continues; only a fully empty result is an error.
func (e *Engine) GenerateReport(ctx context.Context, opts GenerateOptions) (*Report, error) {
	primary, err := e.store.LoadLedger(ctx, model.LedgerPrimary)
	if err != nil {
		return nil, err
	}
	auxiliary, err := e.store.LoadLedger(ctx, model.LedgerAuxiliary)
	if err != nil {
		return nil, err
	}
	incremental, err := e.store.LoadLedger(ctx, model.LedgerIncremental)
	if err != nil {
		return nil, err
	}
	if incremental == "" {
		return nil, fmt.Errorf("incremental ledger is empty, nothing to score")
	}

	blocks := ledger.Segment(incremental)

	persistedList, err := e.store.GetAllCases(ctx)
	if err != nil {
		return nil, err
	}
	persisted := reconcile.DeduplicateByPriority(persistedList)

	sel := reconcile.SelectForRecompute(blocks.OrderNumbers(), persisted)
	if opts.Force {
		sel = forceAll(blocks.OrderNumbers(), persisted)
	}

	e.logger.Info("recompute selection",
		"pool", blocks.Count(),
		"recompute", len(sel.Recompute),
		"reuse", len(sel.Reuse))

	systemPrompt, err := e.prompts.SystemPrompt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve system prompt: %w", err)
	}

	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}

	chunks := e.buildChunks(blocks, sel, persisted)
	rep := &Report{
		Recomputed:   len(sel.Recompute),
		Reused:       len(sel.Reuse),
		SystemPrompt: systemPrompt,
	}

	var parsed []model.CaseRecord
	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg := scorer.BuildUserMessage(scorer.PromptInput{
			Date:       date,
			Primary:    primary,
			Auxiliary:  auxiliary,
			ChunkText:  ch.text,
			ChunkCount: len(ch.orders),
			Reused:     sel.Reuse,
		})

		out, err := e.scorer.ScoreChunk(ctx, systemPrompt, msg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			e.logger.Error("chunk failed, quarantining its orders",
				"chunk", i+1,
				"orders", len(ch.orders),
				"error", err)
			rep.FailedOrders = append(rep.FailedOrders, ch.orders...)
			if opts.OnChunk != nil {
				opts.OnChunk(i+1, len(chunks))
			}
			continue
		}

		rep.RawOutputs = append(rep.RawOutputs, out)
		parsed = append(parsed, report.Parse(out)...)
		if opts.OnChunk != nil {
			opts.OnChunk(i+1, len(chunks))
		}
	}

	rep.Cases = mergeReused(parsed, sel.Reuse, rep.FailedOrders)
	if len(rep.Cases) == 0 {
		return nil, fmt.Errorf("scoring produced no cases (%d orders failed)", len(rep.FailedOrders))
	}
	return rep, nil
}

// CommitBatch reconciles a generated report against persisted state and
// writes the result as the new active batch.
func (e *Engine) CommitBatch(ctx context.Context, rep *Report, modelUsed string) (*model.Batch, model.ReconciliationSummary, error) {
	persistedList, err := e.store.GetAllCases(ctx)
	if err != nil {
		return nil, model.ReconciliationSummary{}, err
	}
	persisted := reconcile.DeduplicateByPriority(persistedList)

	plan := reconcile.Reconcile(persisted, rep.Cases)

	now := time.Now()
	batch := &model.Batch{
		ID:         model.NewBatchID(now),
		CreatedAt:  now,
		DateLabel:  now.Format("02.01.2006"),
		PromptUsed: rep.SystemPrompt,
		ModelUsed:  modelUsed,
	}

	summary, err := reconcile.Apply(ctx, e.store, batch, plan)
	if err != nil {
		return batch, summary, fmt.Errorf("commit failed: %w", err)
	}

	e.logger.Info("batch committed",
		"batch_id", batch.ID,
		"added", summary.Added,
		"replaced", summary.Replaced,
		"reactivated", summary.Reactivated,
		"skipped", summary.Skipped)
	return batch, summary, nil
}

type chunk struct {
	text   string
	orders []string
}

// buildChunks assembles per-chunk ledger text for the recompute set. Orders
// still in the pool use their live block; completed orders that dropped out
// of the pool fall back to the source line persisted with their last score.
// A boundary-less ledger degrades to a single raw chunk.
func (e *Engine) buildChunks(blocks *ledger.BlockMap, sel reconcile.Selection, persisted map[string]model.CaseRecord) []chunk {
	if len(sel.Recompute) == 0 {
		if raw, ok := blocks.Get(ledger.SentinelKey); ok && blocks.Count() == 0 {
			return []chunk{{text: raw, orders: []string{ledger.SentinelKey}}}
		}
		return nil
	}

	var chunks []chunk
	for _, orders := range scorer.SplitChunks(sel.Recompute, e.chunkSize) {
		var parts []string
		for _, nr := range orders {
			if text, ok := blocks.Get(nr); ok {
				parts = append(parts, text)
				continue
			}
			if c, ok := persisted[nr]; ok && c.SourceLine != "" {
				parts = append(parts, c.SourceLine)
			}
		}
		chunks = append(chunks, chunk{
			text:   joinBlocks(parts),
			orders: orders,
		})
	}
	return chunks
}

func joinBlocks(parts []string) string {
	return strings.Join(parts, "\n\n")
}

// mergeReused builds the final case list. Parsed output wins for recomputed
// orders; for carried-forward orders the persisted record is authoritative
// and the parsed copy only contributes position. Carried-forward records the
// model dropped are appended, highest score first, so the reuse guarantee
// holds even against a lossy model.
func mergeReused(parsed []model.CaseRecord, reuse map[string]model.CaseRecord, failed []string) []model.CaseRecord {
	failedSet := make(map[string]struct{}, len(failed))
	for _, nr := range failed {
		failedSet[nr] = struct{}{}
	}

	seen := make(map[string]struct{}, len(parsed))
	var out []model.CaseRecord
	for _, c := range parsed {
		if _, dup := seen[c.OrderNumber]; dup {
			continue
		}
		if _, bad := failedSet[c.OrderNumber]; bad {
			continue
		}
		seen[c.OrderNumber] = struct{}{}

		if prev, ok := reuse[c.OrderNumber]; ok {
			out = append(out, carryForward(prev))
			continue
		}
		out = append(out, c)
	}

	var missing []model.CaseRecord
	for nr, prev := range reuse {
		if _, ok := seen[nr]; ok {
			continue
		}
		missing = append(missing, carryForward(prev))
	}
	sort.Slice(missing, func(i, j int) bool {
		if missing[i].Score != missing[j].Score {
			return missing[i].Score > missing[j].Score
		}
		return missing[i].OrderNumber < missing[j].OrderNumber
	})

	return append(out, missing...)
}

// carryForward strips identity and assignment from a persisted record so it
// re-enters the pipeline as plain scoring output. The commit step skips
// orders an operator is working anyway; this keeps the data flowing through
// one path.
func carryForward(prev model.CaseRecord) model.CaseRecord {
	return model.CaseRecord{
		OrderNumber:     prev.OrderNumber,
		Score:           prev.Score,
		PriorityIcon:    prev.PriorityIcon,
		PriorityLabel:   prev.PriorityLabel,
		Group:           prev.Group,
		CommercialIndex: prev.CommercialIndex,
		SourceLine:      prev.SourceLine,
		HeaderLine:      prev.HeaderLine,
	}
}

// forceAll puts every pool order into the recompute set.
func forceAll(poolOrders []string, persisted map[string]model.CaseRecord) reconcile.Selection {
	sel := reconcile.Selection{Reuse: make(map[string]model.CaseRecord)}
	sel.Recompute = append(sel.Recompute, poolOrders...)
	inPool := make(map[string]struct{}, len(poolOrders))
	for _, nr := range poolOrders {
		inPool[nr] = struct{}{}
	}
	for nr, c := range persisted {
		if _, ok := inPool[nr]; ok {
			continue
		}
		if c.Status == model.StatusCompleted {
			sel.Recompute = append(sel.Recompute, nr)
		}
	}
	sort.Strings(sel.Recompute)
	return sel
}
