// Package worker mirrors recorded expenses to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/events"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/sheets"
)

// Store is the slice of the ledger store the worker reads and marks.
type Store interface {
	GetExpense(ctx context.Context, id int64) (core.ExpenseRecord, error)
	ListUnmirrored(ctx context.Context, limit int) ([]core.ExpenseRecord, error)
	MarkMirrored(ctx context.Context, id int64, rowRef string) error
}

// SyncWorker copies expenses from the store to a LedgerMirror, driven by
// expense.recorded events with a periodic backfill for missed ones.
type SyncWorker struct {
	store     Store
	mirror    sheets.LedgerMirror
	batchSize int
	logger    *slog.Logger
}

// BatchResult counts one backfill pass.
type BatchResult struct {
	Total    int
	Mirrored int
	Errors   int
}

func NewSyncWorker(store Store, mirror sheets.LedgerMirror, batchSize int, logger *slog.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    logger.With("component", "worker"),
	}
}

// HandleExpenseRecorded mirrors the record named by msg. A record missing
// from the store is logged and dropped so the delivery is not requeued
// forever.
func (w *SyncWorker) HandleExpenseRecorded(ctx context.Context, msg *events.ExpenseRecorded) error {
	w.logger.InfoContext(ctx, "Processing expense event", "id", msg.ID, "version", msg.Version)

	rec, err := w.store.GetExpense(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Expense event for unknown record, dropping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if err := w.mirrorExpense(ctx, rec); err != nil {
		return fmt.Errorf("mirror expense: %w", err)
	}
	return nil
}

// ProcessPending mirrors one batch of records that have no mirror entry.
// This is the backup path for lost or unpublished events.
func (w *SyncWorker) ProcessPending(ctx context.Context) (BatchResult, error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger backfill pass once at start.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) (BatchResult, error) {
	res, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return res, fmt.Errorf("startup sync check: %w", err)
	}
	if res.Total == 0 {
		w.logger.InfoContext(ctx, "No unmirrored expenses found on startup")
		return res, nil
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", res.Total,
		"mirrored", res.Mirrored,
		"errors", res.Errors)
	return res, nil
}

// RunBackfill calls ProcessPending every interval until ctx ends.
func (w *SyncWorker) RunBackfill(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Backfill loop stopped")
			return nil
		case <-ticker.C:
			res, err := w.ProcessPending(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "Backfill pass failed", "error", err)
				continue
			}
			if res.Total > 0 {
				w.logger.InfoContext(ctx, "Backfill pass completed",
					"total", res.Total,
					"mirrored", res.Mirrored,
					"errors", res.Errors)
			}
		}
	}
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (BatchResult, error) {
	pending, err := w.store.ListUnmirrored(ctx, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list unmirrored expenses: %w", err)
	}

	res := BatchResult{Total: len(pending)}
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.mirrorExpense(ctx, rec); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror expense", "id", rec.ID, "error", err)
			res.Errors++
			continue
		}
		res.Mirrored++
	}
	return res, nil
}

func (w *SyncWorker) mirrorExpense(ctx context.Context, rec core.ExpenseRecord) error {
	ref, err := w.mirror.AppendExpense(ctx, rec)
	if err != nil {
		return fmt.Errorf("append to sheet: %w", err)
	}

	// The row exists now; a failed mark only means the backfill sees it
	// again and the mirror returns the same row.
	if err := w.store.MarkMirrored(ctx, rec.ID, ref); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as mirrored", "id", rec.ID, "error", err)
	}

	w.logger.InfoContext(ctx, "Mirrored expense",
		"id", rec.ID,
		"sheets_ref", ref,
		"project_id", rec.ProjectID,
		"amount", rec.Amount.String())
	return nil
}
