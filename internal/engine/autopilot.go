package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/ledger"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/reconcile"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/report"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/scorer"
)

// StartAutopilot begins a resumable chunked scoring run. The chunk queue and
// progress counters are persisted after every chunk, so a crash or pause
// loses at most one chunk of work. Commits happen per chunk into a single
// batch created up front.
func (e *Engine) StartAutopilot(ctx context.Context, opts GenerateOptions) (*model.AutopilotJob, error) {
	job, err := e.store.GetAutopilotJob(ctx)
	if err != nil {
		return nil, err
	}
	if job.State == model.JobRunning || job.State == model.JobStopping {
		return nil, fmt.Errorf("autopilot job already in state %s", job.State)
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
	if len(sel.Recompute) == 0 {
		return nil, fmt.Errorf("nothing to recompute; all %d pool orders reuse previous scores", len(sel.Reuse))
	}

	now := time.Now()
	batch := &model.Batch{
		ID:        model.NewBatchID(now),
		CreatedAt: now,
		DateLabel: now.Format("02.01.2006"),
		Status:    model.BatchActive,
	}
	if err := e.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	job = &model.AutopilotJob{
		State:     model.JobRunning,
		BatchID:   batch.ID,
		Queue:     scorer.SplitChunks(sel.Recompute, e.chunkSize),
		Total:     len(sel.Recompute),
		StartedAt: now,
	}
	if err := e.store.SaveAutopilotJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist autopilot job: %w", err)
	}

	e.logger.Info("autopilot started",
		"batch_id", batch.ID,
		"chunks", len(job.Queue),
		"orders", job.Total)

	return job, e.runAutopilot(ctx, job, opts)
}

// ResumeAutopilot continues a paused or interrupted job from its persisted
// queue.
func (e *Engine) ResumeAutopilot(ctx context.Context, opts GenerateOptions) (*model.AutopilotJob, error) {
	job, err := e.store.GetAutopilotJob(ctx)
	if err != nil {
		return nil, err
	}
	if job.State == model.JobDone {
		return nil, fmt.Errorf("autopilot job is done; clear it before starting a new run")
	}
	if len(job.Queue) == 0 {
		return nil, fmt.Errorf("no queued work to resume")
	}

	job.State = model.JobRunning
	if err := e.store.SaveAutopilotJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist autopilot job: %w", err)
	}

	e.logger.Info("autopilot resumed",
		"batch_id", job.BatchID,
		"chunks_left", len(job.Queue),
		"processed", job.Processed)

	return job, e.runAutopilot(ctx, job, opts)
}

// PauseAutopilot requests a cooperative stop. The runner notices between
// chunks and parks the job at idle with the queue intact.
func (e *Engine) PauseAutopilot(ctx context.Context) error {
	job, err := e.store.GetAutopilotJob(ctx)
	if err != nil {
		return err
	}
	if job.State != model.JobRunning {
		return fmt.Errorf("autopilot job is %s, nothing to pause", job.State)
	}
	job.State = model.JobStopping
	return e.store.SaveAutopilotJob(ctx, job)
}

// AutopilotStatus returns the persisted job record.
func (e *Engine) AutopilotStatus(ctx context.Context) (*model.AutopilotJob, error) {
	return e.store.GetAutopilotJob(ctx)
}

// runAutopilot drains the chunk queue. Between chunks it re-reads the
// persisted job to honor a pause request, and re-snapshots persisted cases
// so each chunk reconciles against the latest operator activity.
func (e *Engine) runAutopilot(ctx context.Context, job *model.AutopilotJob, opts GenerateOptions) error {
	primary, err := e.store.LoadLedger(ctx, model.LedgerPrimary)
	if err != nil {
		return err
	}
	auxiliary, err := e.store.LoadLedger(ctx, model.LedgerAuxiliary)
	if err != nil {
		return err
	}
	incremental, err := e.store.LoadLedger(ctx, model.LedgerIncremental)
	if err != nil {
		return err
	}
	blocks := ledger.Segment(incremental)

	systemPrompt, err := e.prompts.SystemPrompt(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve system prompt: %w", err)
	}

	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}

	totalChunks := len(job.Queue)
	done := 0
	for len(job.Queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		current, err := e.store.GetAutopilotJob(ctx)
		if err != nil {
			return err
		}
		if current.State == model.JobStopping {
			job.State = model.JobIdle
			if err := e.store.SaveAutopilotJob(ctx, job); err != nil {
				return err
			}
			e.logger.Info("autopilot paused",
				"processed", job.Processed,
				"remaining", job.Remaining())
			return nil
		}

		persistedList, err := e.store.GetAllCases(ctx)
		if err != nil {
			return err
		}
		persisted := reconcile.DeduplicateByPriority(persistedList)

		orders := job.Queue[0]
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

		msg := scorer.BuildUserMessage(scorer.PromptInput{
			Date:       date,
			Primary:    primary,
			Auxiliary:  auxiliary,
			ChunkText:  joinBlocks(parts),
			ChunkCount: len(orders),
		})

		out, err := e.scorer.ScoreChunk(ctx, systemPrompt, msg)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			e.logger.Error("autopilot chunk failed, quarantining its orders",
				"orders", len(orders),
				"error", err)
			job.FailedOrders = append(job.FailedOrders, orders...)
		} else {
			incoming := filterToOrders(report.Parse(out), orders)
			plan := reconcile.Reconcile(persisted, incoming)

			batch, err := e.store.GetBatch(ctx, job.BatchID)
			if err != nil {
				return err
			}
			_, written, err := reconcile.ApplyToBatch(ctx, e.store, batch, plan, job.Processed)
			if err != nil {
				return fmt.Errorf("failed to commit chunk: %w", err)
			}
			batch.TotalCases += written
			if err := e.store.UpdateBatch(ctx, batch); err != nil {
				return err
			}
		}

		job.Queue = job.Queue[1:]
		job.Processed += len(orders)

		// A pause may have been requested while the chunk was in flight;
		// saving progress must not clobber it.
		current, err = e.store.GetAutopilotJob(ctx)
		if err != nil {
			return err
		}
		if current.State == model.JobStopping {
			job.State = model.JobStopping
		}
		if err := e.store.SaveAutopilotJob(ctx, job); err != nil {
			return err
		}

		done++
		if opts.OnChunk != nil {
			opts.OnChunk(done, totalChunks)
		}
	}

	if err := e.store.ArchiveActiveBatches(ctx, job.BatchID); err != nil {
		return fmt.Errorf("failed to archive previous batches: %w", err)
	}

	job.State = model.JobDone
	if err := e.store.SaveAutopilotJob(ctx, job); err != nil {
		return err
	}
	e.logger.Info("autopilot finished",
		"batch_id", job.BatchID,
		"processed", job.Processed,
		"failed", len(job.FailedOrders))
	return nil
}

// filterToOrders keeps only parsed records for the given order numbers.
// Autopilot prompts carry no ready-results section, but a model can still
// hallucinate extra entries; anything outside the chunk is discarded.
func filterToOrders(cases []model.CaseRecord, orders []string) []model.CaseRecord {
	want := make(map[string]struct{}, len(orders))
	for _, nr := range orders {
		want[nr] = struct{}{}
	}
	var out []model.CaseRecord
	seen := make(map[string]struct{}, len(cases))
	for _, c := range cases {
		if _, ok := want[c.OrderNumber]; !ok {
			continue
		}
		if _, dup := seen[c.OrderNumber]; dup {
			continue
		}
		seen[c.OrderNumber] = struct{}{}
		out = append(out, c)
	}
	return out
}
