package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
)

// ActionCreateExpense is the audit-log action under which expenses were recorded.
const ActionCreateExpense = "CREATE_EXPENSE"

// Row is one CREATE_EXPENSE entry of the historical audit log.
type Row struct {
	LogID     int64
	UserID    int64
	Details   string
	Timestamp time.Time
}

// Source yields audit rows that have been neither imported nor rejected,
// ordered by LogID ascending and strictly after afterLogID.
type Source interface {
	ListLegacyRows(ctx context.Context, afterLogID int64, limit int) ([]Row, error)
}

// Sink receives the outcome of each row. ImportLegacyExpense must be a no-op
// for a logID that was already imported.
type Sink interface {
	ImportLegacyExpense(ctx context.Context, logID int64, rec core.ExpenseRecord) error
	RejectLegacyRow(ctx context.Context, logID int64, reason, details string) error
}

// Report summarizes an import run.
type Report struct {
	Scanned  int
	Imported int
	Rejected int
}

// Importer migrates legacy audit rows into the typed ledger, once.
type Importer struct {
	source    Source
	sink      Sink
	batchSize int
	dryRun    bool
	logger    *slog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithBatchSize sets how many rows are read per query (default 100).
func WithBatchSize(n int) ImporterOption {
	return func(i *Importer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithDryRun decodes and reports without writing anything.
func WithDryRun(dryRun bool) ImporterOption {
	return func(i *Importer) { i.dryRun = dryRun }
}

// WithLogger sets the logger used for per-row diagnostics.
func WithLogger(logger *slog.Logger) ImporterOption {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func NewImporter(source Source, sink Sink, opts ...ImporterOption) *Importer {
	imp := &Importer{
		source:    source,
		sink:      sink,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Run walks all pending audit rows. A row that cannot be decoded is logged
// and flagged and never stops the run; storage failures do.
func (imp *Importer) Run(ctx context.Context) (Report, error) {
	var (
		report Report
		after  int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rows, err := imp.source.ListLegacyRows(ctx, after, imp.batchSize)
		if err != nil {
			return report, fmt.Errorf("list legacy rows: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			report.Scanned++
			after = row.LogID

			rec, err := DecodeRow(row)
			if err != nil {
				report.Rejected++
				imp.logger.WarnContext(ctx, "Skipping malformed legacy expense",
					"log_id", row.LogID,
					"user_id", row.UserID,
					"details", row.Details,
					"error", err)
				if imp.dryRun {
					continue
				}
				if err := imp.sink.RejectLegacyRow(ctx, row.LogID, err.Error(), row.Details); err != nil {
					return report, fmt.Errorf("reject legacy row %d: %w", row.LogID, err)
				}
				continue
			}

			report.Imported++
			if imp.dryRun {
				continue
			}
			if err := imp.sink.ImportLegacyExpense(ctx, row.LogID, rec); err != nil {
				return report, fmt.Errorf("import legacy row %d: %w", row.LogID, err)
			}
		}
		if len(rows) < imp.batchSize {
			break
		}
	}

	imp.logger.InfoContext(ctx, "Legacy import finished",
		"scanned", report.Scanned,
		"imported", report.Imported,
		"rejected", report.Rejected,
		"dry_run", imp.dryRun)
	return report, nil
}

// DecodeRow decodes the row's Details and fills in author and timestamp.
// The result is validated like any new record.
func DecodeRow(row Row) (core.ExpenseRecord, error) {
	rec, err := Decode(row.Details)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	if row.UserID <= 0 {
		return core.ExpenseRecord{}, malformed("audit row has no user id")
	}
	if row.Timestamp.IsZero() {
		return core.ExpenseRecord{}, malformed("audit row has no usable timestamp")
	}
	rec.AuthorID = row.UserID
	rec.RecordedAt = row.Timestamp.UTC()
	if err := rec.Validate(); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return core.ExpenseRecord{}, malformed("%s %s", ve.Field, ve.Reason)
		}
		return core.ExpenseRecord{}, malformed("%v", err)
	}
	return rec, nil
}
