// Package sheets defines the outbound port for mirroring ledger records to a
// spreadsheet.
package sheets

import (
	"context"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
)

// LedgerMirror appends one row per expense. Appending a record that is
// already present returns the existing row reference instead of a duplicate.
type LedgerMirror interface {
	AppendExpense(ctx context.Context, rec core.ExpenseRecord) (rowRef string, err error)
}

// Header is the column layout shared by every mirror implementation.
var Header = []string{"id", "dateRecorded", "userID", "projectID", "description", "notes", "amount", "details"}
