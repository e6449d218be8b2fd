package legacy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
)

// fakeAudit is both Source and Sink. Settled rows disappear from later
// listings the way the SQL stores filter them.
type fakeAudit struct {
	rows     []Row
	imported map[int64]core.ExpenseRecord
	rejected map[int64]string
	failOn   int64
	queries  int
}

func newFakeAudit(rows ...Row) *fakeAudit {
	return &fakeAudit{rows: rows, imported: map[int64]core.ExpenseRecord{}, rejected: map[int64]string{}}
}

func (f *fakeAudit) ListLegacyRows(_ context.Context, after int64, limit int) ([]Row, error) {
	f.queries++
	var out []Row
	for _, r := range f.rows {
		if r.LogID <= after {
			continue
		}
		if _, ok := f.imported[r.LogID]; ok {
			continue
		}
		if _, ok := f.rejected[r.LogID]; ok {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeAudit) ImportLegacyExpense(_ context.Context, logID int64, rec core.ExpenseRecord) error {
	if logID == f.failOn {
		return core.Persistence("import", errors.New("disk full"))
	}
	f.imported[logID] = rec
	return nil
}

func (f *fakeAudit) RejectLegacyRow(_ context.Context, logID int64, reason, _ string) error {
	f.rejected[logID] = reason
	return nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func auditRows() []Row {
	ts := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	return []Row{
		{LogID: 1, UserID: 5, Details: "ProjectID:3 | Travel | $42.00", Timestamp: ts},
		{LogID: 2, UserID: 5, Details: "no amount here", Timestamp: ts},
		{LogID: 3, UserID: 0, Details: "ProjectID:3 | Paint | $1.00", Timestamp: ts},
		{LogID: 4, UserID: 6, Details: "ProjectID:4 | Fuel | $19.99 | van", Timestamp: ts.Add(time.Hour)},
	}
}

func TestImporter_Run(t *testing.T) {
	audit := newFakeAudit(auditRows()...)
	report, err := NewImporter(audit, audit, WithBatchSize(2), WithLogger(quiet)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (Report{Scanned: 4, Imported: 2, Rejected: 2}) {
		t.Errorf("report = %+v", report)
	}

	rec, ok := audit.imported[4]
	if !ok {
		t.Fatal("row 4 not imported")
	}
	if rec.AuthorID != 6 || rec.ProjectID != 4 || rec.Amount.Cents != 1999 || rec.Notes != "van" {
		t.Errorf("imported record = %+v", rec)
	}
	if !rec.RecordedAt.Equal(time.Date(2023, 6, 1, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp not carried over: %v", rec.RecordedAt)
	}
	if _, ok := audit.rejected[3]; !ok {
		t.Error("row without a user id should be rejected")
	}

	again, err := NewImporter(audit, audit, WithLogger(quiet)).Run(context.Background())
	if err != nil || again != (Report{}) {
		t.Errorf("second run = %+v, %v", again, err)
	}
}

func TestDecodeRow_RequiresTimestamp(t *testing.T) {
	_, err := DecodeRow(Row{LogID: 9, UserID: 5, Details: "ProjectID:3 | Travel | $42.00"})
	if !errors.Is(err, core.ErrMalformedLegacyRecord) {
		t.Fatalf("DecodeRow without timestamp = %v, want ErrMalformedLegacyRecord", err)
	}

	audit := newFakeAudit(Row{LogID: 9, UserID: 5, Details: "ProjectID:3 | Travel | $42.00"})
	report, err := NewImporter(audit, audit, WithLogger(quiet)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (Report{Scanned: 1, Rejected: 1}) || len(audit.imported) != 0 {
		t.Errorf("report = %+v, imported = %v", report, audit.imported)
	}
	if _, ok := audit.rejected[9]; !ok {
		t.Error("row without a timestamp should be rejected")
	}
}

func TestImporter_DryRunWritesNothing(t *testing.T) {
	audit := newFakeAudit(auditRows()...)
	report, err := NewImporter(audit, audit, WithBatchSize(1), WithDryRun(true), WithLogger(quiet)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Scanned != 4 || report.Imported != 2 || report.Rejected != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(audit.imported) != 0 || len(audit.rejected) != 0 {
		t.Errorf("dry run wrote imported=%d rejected=%d", len(audit.imported), len(audit.rejected))
	}
}

func TestImporter_StopsOnStorageFailure(t *testing.T) {
	audit := newFakeAudit(auditRows()...)
	audit.failOn = 1
	_, err := NewImporter(audit, audit, WithLogger(quiet)).Run(context.Background())
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if len(audit.imported) != 0 {
		t.Error("rows after the failure should not be imported")
	}
}

func TestImporter_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	audit := newFakeAudit(auditRows()...)
	if _, err := NewImporter(audit, audit, WithLogger(quiet)).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if audit.queries != 0 {
		t.Errorf("cancelled run issued %d queries", audit.queries)
	}
}
