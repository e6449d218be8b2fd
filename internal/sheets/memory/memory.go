// Package memory is an in-process LedgerMirror for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	ports "github.com/coderwalt570/WaltonsCreativeStudio/internal/sheets"
)

type Mirror struct {
	mu    sync.Mutex
	rows  []core.ExpenseRecord
	index map[int64]int
}

var _ ports.LedgerMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{index: make(map[int64]int)}
}

// AppendExpense stores rec once per id and returns a synthetic row reference.
func (m *Mirror) AppendExpense(_ context.Context, rec core.ExpenseRecord) (string, error) {
	if rec.ID <= 0 {
		return "", fmt.Errorf("append expense: invalid id %d", rec.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[rec.ID]; ok {
		return rowRef(i), nil
	}
	m.rows = append(m.rows, rec)
	m.index[rec.ID] = len(m.rows) - 1
	return rowRef(len(m.rows) - 1), nil
}

// Rows returns a copy of the mirrored records in append order.
func (m *Mirror) Rows() []core.ExpenseRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ExpenseRecord(nil), m.rows...)
}

func rowRef(i int) string {
	return fmt.Sprintf("mem:%d", i+1)
}
