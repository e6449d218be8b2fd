package google

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/legacy"
	ports "github.com/coderwalt570/WaltonsCreativeStudio/internal/sheets"
)

// scanIDColumn reads column A as returned by the Sheets API. It reports the
// 1-based row holding id (0 when absent), the next free row and whether a
// header row is present.
func scanIDColumn(values [][]interface{}, id int64) (row, next int, hasHeader bool) {
	next = len(values) + 1
	for i, cells := range values {
		v := strings.TrimSpace(safeGet(toStrings(cells), 0))
		if i == 0 && strings.EqualFold(v, ports.Header[0]) {
			hasHeader = true
			continue
		}
		if n, err := parseSheetInt(v); err == nil && n == id && row == 0 {
			row = i + 1
		}
	}
	return row, next, hasHeader
}

// rowValues renders rec in Header order. The amount goes out as a JSON
// number so the sheet can sum it without float rounding on our side.
func rowValues(rec core.ExpenseRecord) []interface{} {
	return []interface{}{
		rec.ID,
		rec.RecordedAt.UTC().Format(time.RFC3339),
		rec.AuthorID,
		rec.ProjectID,
		rec.Description,
		rec.Notes,
		json.Number(rec.Amount.String()),
		legacy.Encode(rec),
	}
}

func headerValues() []interface{} {
	out := make([]interface{}, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

// quoteSheet renders a sheet name for A1 notation. The name is always
// quoted so spaces and punctuation survive; embedded quotes are doubled.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// rowRange builds an A1 range covering columns A:H of one row.
func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:H%d", quoteSheet(sheet), row, row)
}

// parseSheetInt accepts ids rendered as "12" or "12.0" by the Sheets API.
func parseSheetInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
