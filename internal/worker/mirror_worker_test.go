package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/events"
	sheetsmem "github.com/coderwalt570/WaltonsCreativeStudio/internal/sheets/memory"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/storage/memory"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type flakyMirror struct {
	failID int64
	inner  *sheetsmem.Mirror
}

func (f *flakyMirror) AppendExpense(ctx context.Context, rec core.ExpenseRecord) (string, error) {
	if rec.ID == f.failID {
		return "", errors.New("quota exceeded")
	}
	return f.inner.AppendExpense(ctx, rec)
}

func seed(t *testing.T, store *memory.Store, n int) []int64 {
	t.Helper()
	var ids []int64
	for i := 0; i < n; i++ {
		id, err := store.Create(context.Background(), core.ExpenseRecord{
			AuthorID: 7, ProjectID: 3, Amount: core.Cents(int64(100 + i)), Description: "item",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestHandleExpenseRecorded(t *testing.T) {
	store := memory.NewStore()
	mirror := sheetsmem.New()
	w := NewSyncWorker(store, mirror, 10, quiet)
	ids := seed(t, store, 2)
	ctx := context.Background()

	if err := w.HandleExpenseRecorded(ctx, events.NewExpenseRecorded(ids[1], 1)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	// A redelivered event is harmless.
	if err := w.HandleExpenseRecorded(ctx, events.NewExpenseRecorded(ids[1], 1)); err != nil {
		t.Fatalf("handle again: %v", err)
	}
	if rows := mirror.Rows(); len(rows) != 1 || rows[0].ID != ids[1] {
		t.Fatalf("unexpected mirror rows: %+v", rows)
	}

	pending, _ := store.ListUnmirrored(ctx, 0)
	if len(pending) != 1 || pending[0].ID != ids[0] {
		t.Fatalf("expected only the first record pending, got %+v", pending)
	}

	if err := w.HandleExpenseRecorded(ctx, events.NewExpenseRecorded(999, 1)); err != nil {
		t.Fatalf("unknown ids must be dropped, got %v", err)
	}
}

func TestHandleExpenseRecorded_MirrorFailure(t *testing.T) {
	store := memory.NewStore()
	ids := seed(t, store, 1)
	w := NewSyncWorker(store, &flakyMirror{failID: ids[0], inner: sheetsmem.New()}, 10, quiet)

	if err := w.HandleExpenseRecorded(context.Background(), events.NewExpenseRecorded(ids[0], 1)); err == nil {
		t.Fatalf("mirror failure must be returned so the delivery is requeued")
	}
	pending, _ := store.ListUnmirrored(context.Background(), 0)
	if len(pending) != 1 {
		t.Fatalf("failed record must stay pending, got %+v", pending)
	}
}

func TestProcessPending(t *testing.T) {
	store := memory.NewStore()
	ids := seed(t, store, 4)
	mirror := &flakyMirror{failID: ids[1], inner: sheetsmem.New()}
	w := NewSyncWorker(store, mirror, 2, quiet)
	ctx := context.Background()

	res, err := w.ProcessPending(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res != (BatchResult{Total: 2, Mirrored: 1, Errors: 1}) {
		t.Fatalf("unexpected first batch: %+v", res)
	}

	res, err = w.StartupSyncCheck(ctx)
	if err != nil {
		t.Fatalf("startup: %v", err)
	}
	if res != (BatchResult{Total: 3, Mirrored: 2, Errors: 1}) {
		t.Fatalf("unexpected startup pass: %+v", res)
	}

	if rows := mirror.inner.Rows(); len(rows) != 3 {
		t.Fatalf("expected 3 mirrored rows, got %+v", rows)
	}
}

func TestRunBackfill_StopsOnCancel(t *testing.T) {
	w := NewSyncWorker(memory.NewStore(), sheetsmem.New(), 10, quiet)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.RunBackfill(ctx, 0); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}
