package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/common"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
)

// Apply executes a reconciliation plan against the store. All new writes
// join batch, which becomes the sole active batch; previously active batches
// are archived as part of the same commit.
func Apply(ctx context.Context, store service.Storage, batch *model.Batch, res Result) (model.ReconciliationSummary, error) {
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}
	if batch.ID == "" {
		batch.ID = model.NewBatchID(batch.CreatedAt)
	}
	batch.Status = model.BatchActive

	if err := store.CreateBatch(ctx, batch); err != nil {
		return model.ReconciliationSummary{}, fmt.Errorf("failed to create batch: %w", err)
	}

	summary, written, err := ApplyToBatch(ctx, store, batch, res, 0)
	if err != nil {
		return summary, err
	}

	if err := store.ArchiveActiveBatches(ctx, batch.ID); err != nil {
		return summary, fmt.Errorf("failed to archive previous batches: %w", err)
	}

	batch.TotalCases = written
	batch.Summary = fmt.Sprintf("added: %d | replaced: %d | reactivated: %d | skipped: %d",
		summary.Added, summary.Replaced, summary.Reactivated, summary.Skipped)
	if err := store.UpdateBatch(ctx, batch); err != nil {
		return summary, fmt.Errorf("failed to update batch summary: %w", err)
	}

	return summary, nil
}

// ApplyToBatch executes a plan's case writes into an existing batch without
// creating the batch or touching other batches. sortOffset positions the
// writes after cases committed by earlier plans for the same batch.
//
// The plan was computed from a snapshot, so each existing record's status is
// re-checked immediately before it is deleted; a record that is no longer
// free/completed is skipped instead of overwritten. The returned summary
// reflects what actually happened, not what was planned.
func ApplyToBatch(ctx context.Context, store service.Storage, batch *model.Batch, res Result, sortOffset int) (model.ReconciliationSummary, int, error) {
	var summary model.ReconciliationSummary

	written := 0
	for _, op := range res.Ops {
		if op.Kind == OpSkip {
			summary.Skipped++
			continue
		}

		kind := op.Kind
		if op.Existing != nil {
			current, err := store.GetCase(ctx, op.Existing.ID)
			switch {
			case errors.Is(err, common.ErrNotFound):
				// Deleted out from under us; treat as a plain add.
				kind = OpAdd
			case err != nil:
				return summary, written, fmt.Errorf("failed to re-check case %s: %w", op.Existing.ID, err)
			case current.Status != model.StatusFree && current.Status != model.StatusCompleted:
				// Status changed between selection and commit; an operator
				// picked it up, so leave it alone.
				slog.Info("case no longer eligible at commit time, skipping",
					"order_number", op.Incoming.OrderNumber,
					"planned", op.Kind,
					"status", current.Status)
				summary.Skipped++
				continue
			default:
				if err := store.DeleteCase(ctx, op.Existing.ID); err != nil {
					return summary, written, fmt.Errorf("failed to delete case %s: %w", op.Existing.ID, err)
				}
			}
		}

		pos := sortOffset + written
		c := op.Incoming
		c.ID = fmt.Sprintf("%s_%s_%04d", batch.ID, c.Group, pos+1)
		c.BatchID = batch.ID
		c.Status = model.StatusFree
		c.AssignedTo = ""
		c.AssignedAt = nil
		c.CompletedAt = nil
		c.SortOrder = pos
		c.CreatedAt = batch.CreatedAt

		if err := store.SaveCase(ctx, &c); err != nil {
			return summary, written, fmt.Errorf("failed to save case %s: %w", c.ID, err)
		}
		written++

		switch kind {
		case OpReplace:
			summary.Replaced++
		case OpReactivate:
			summary.Reactivated++
		default:
			summary.Added++
		}
	}

	return summary, written, nil
}
