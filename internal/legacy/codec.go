// Package legacy reads and writes the audit-log expense encoding.
//
// Historical expenses were stored as a single free-text Details column:
//
//	ProjectID:3 | Travel | $42.00
//
// The format is lossy. A '$', '|' or "ProjectID:" inside the description or
// notes makes the fields ambiguous, and a row with two segments that are
// each just a $ amount is rejected. Segments are trimmed on decode, so
// leading or trailing spaces in a description or notes do not survive a
// round trip. It is only used to read old rows and to produce compatibility
// exports. New records are never written this way.
package legacy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
)

const separator = "|"

var (
	projectMarker = regexp.MustCompile(`ProjectID:\s*(\d+)`)
	amountMarker  = regexp.MustCompile(`\$\s*(\d+(?:\.\d+)?)`)
	amountOnly    = regexp.MustCompile(`^\$\s*(\d+(?:\.\d+)?)$`)
)

// Encode renders rec in the canonical legacy form. Notes, when present, are
// appended as a fourth segment.
func Encode(rec core.ExpenseRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ProjectID:%d | %s | $%s", rec.ProjectID, rec.Description, rec.Amount.String())
	if rec.Notes != "" {
		b.WriteString(" | ")
		b.WriteString(rec.Notes)
	}
	return b.String()
}

// Decode parses a legacy Details string. Only ProjectID, Description, Notes
// and Amount are populated; the caller supplies author and timestamp from the
// surrounding audit row. Every failure wraps core.ErrMalformedLegacyRecord.
func Decode(text string) (core.ExpenseRecord, error) {
	pm := projectMarker.FindStringSubmatchIndex(text)
	if pm == nil {
		return core.ExpenseRecord{}, malformed("missing ProjectID marker")
	}
	projectID, err := strconv.ParseInt(text[pm[2]:pm[3]], 10, 64)
	if err != nil || projectID <= 0 {
		return core.ExpenseRecord{}, malformed("invalid project id %q", text[pm[2]:pm[3]])
	}

	if !strings.Contains(text, separator) {
		return core.ExpenseRecord{}, malformed("expected at least two '|' separated segments")
	}

	am, ambiguous := locateAmount(text)
	if ambiguous {
		return core.ExpenseRecord{}, malformed("more than one $ amount segment")
	}
	if am == nil {
		return core.ExpenseRecord{}, malformed("missing $ amount marker")
	}
	amount, err := core.ParseAmount(text[am[2]:am[3]])
	if err != nil {
		return core.ExpenseRecord{}, malformed("invalid amount %q", text[am[2]:am[3]])
	}
	if overlaps(pm, am) {
		return core.ExpenseRecord{}, malformed("overlapping markers")
	}

	rest := cut(text, pm, am)
	var fields []string
	for _, seg := range strings.Split(rest, separator) {
		if seg = strings.TrimSpace(seg); seg != "" {
			fields = append(fields, seg)
		}
	}
	switch {
	case len(fields) == 0:
		return core.ExpenseRecord{}, malformed("missing description")
	case len(fields) > 2:
		return core.ExpenseRecord{}, malformed("ambiguous segments: got %d free-text fields", len(fields))
	}

	rec := core.ExpenseRecord{
		ProjectID:   projectID,
		Description: fields[0],
		Amount:      amount,
	}
	if len(fields) == 2 {
		rec.Notes = fields[1]
	}
	return rec, nil
}

// locateAmount prefers a segment that holds nothing but the amount; free text
// such as "cost $5 each" is only used as a last resort. More than one
// amount-only segment cannot be resolved and reports ambiguous.
func locateAmount(text string) (loc []int, ambiguous bool) {
	offset := 0
	for _, seg := range strings.Split(text, separator) {
		trimmed := strings.TrimSpace(seg)
		if m := amountOnly.FindStringSubmatchIndex(trimmed); m != nil {
			if loc != nil {
				return nil, true
			}
			base := offset + strings.Index(seg, trimmed)
			loc = []int{base + m[0], base + m[1], base + m[2], base + m[3]}
		}
		offset += len(seg) + len(separator)
	}
	if loc != nil {
		return loc, false
	}
	return amountMarker.FindStringSubmatchIndex(text), false
}

func overlaps(a, b []int) bool {
	return a[0] < b[1] && b[0] < a[1]
}

// cut removes the two marker spans from text.
func cut(text string, a, b []int) string {
	if a[0] > b[0] {
		a, b = b, a
	}
	return text[:a[0]] + text[a[1]:b[0]] + text[b[1]:]
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrMalformedLegacyRecord, fmt.Sprintf(format, args...))
}
