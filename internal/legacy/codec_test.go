package legacy

import (
	"errors"
	"testing"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  core.ExpenseRecord
		cents int64
	}{
		{
			name:  "canonical",
			in:    "ProjectID:3 | Travel | $42.00",
			want:  core.ExpenseRecord{ProjectID: 3, Description: "Travel"},
			cents: 4200,
		},
		{
			name:  "notes segment",
			in:    "ProjectID:12 | Fuel | $10.5 | client visit",
			want:  core.ExpenseRecord{ProjectID: 12, Description: "Fuel", Notes: "client visit"},
			cents: 1050,
		},
		{
			name:  "space after marker and rounding",
			in:    "ProjectID: 4 |Software| $9.999",
			want:  core.ExpenseRecord{ProjectID: 4, Description: "Software"},
			cents: 1000,
		},
		{
			name:  "front-end category and notes folded into description",
			in:    "ProjectID:7 | Materials - paint | $120",
			want:  core.ExpenseRecord{ProjectID: 7, Description: "Materials - paint"},
			cents: 12000,
		},
		{
			name:  "dollar inside description prefers standalone amount segment",
			in:    "ProjectID:1 | 3 items at $5 | $15.00",
			want:  core.ExpenseRecord{ProjectID: 1, Description: "3 items at $5"},
			cents: 1500,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.in)
			if err != nil {
				t.Fatalf("Decode(%q) error: %v", tc.in, err)
			}
			if got.ProjectID != tc.want.ProjectID || got.Description != tc.want.Description || got.Notes != tc.want.Notes {
				t.Fatalf("Decode(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
			if got.Amount.Cents != tc.cents {
				t.Fatalf("Decode(%q) amount = %d, want %d", tc.in, got.Amount.Cents, tc.cents)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	inputs := []string{
		"garbage",
		"",
		"Travel | $42.00",
		"ProjectID:abc | Travel | $42.00",
		"ProjectID:0 | Travel | $42.00",
		"ProjectID:3 Travel $42.00",
		"ProjectID:3 | Travel | 42.00",
		"ProjectID:3 | Travel | $0.00",
		"ProjectID:3 | | $42.00",
		"ProjectID:3 | a | b | $1.00 | c",
		"ProjectID:3 | $5 | $6",
		"ProjectID:3 | Travel | $5.00 | $6",
	}
	for _, in := range inputs {
		_, err := Decode(in)
		if err == nil {
			t.Fatalf("Decode(%q) expected error", in)
		}
		if !errors.Is(err, core.ErrMalformedLegacyRecord) {
			t.Fatalf("Decode(%q) expected ErrMalformedLegacyRecord, got %v", in, err)
		}
	}
}

func TestEncode(t *testing.T) {
	rec := core.ExpenseRecord{ProjectID: 3, Description: "Travel", Amount: core.Cents(4200)}
	if got := Encode(rec); got != "ProjectID:3 | Travel | $42.00" {
		t.Fatalf("Encode = %q", got)
	}
	rec.Notes = "airport taxi"
	if got := Encode(rec); got != "ProjectID:3 | Travel | $42.00 | airport taxi" {
		t.Fatalf("Encode with notes = %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	records := []core.ExpenseRecord{
		{ProjectID: 1, Description: "Travel", Amount: core.Cents(1)},
		{ProjectID: 2, Description: "Office supplies", Amount: core.Cents(123456), Notes: "Q3 restock"},
		{ProjectID: 99, Description: "Lunch - team", Amount: core.Cents(1010)},
		{ProjectID: 5, Description: "A", Amount: core.Cents(5), Notes: "n"},
	}
	for _, rec := range records {
		got, err := Decode(Encode(rec))
		if err != nil {
			t.Fatalf("round trip %+v: %v", rec, err)
		}
		if got != rec {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, rec)
		}
	}
}

func TestDecodeIdempotentUnderReencoding(t *testing.T) {
	inputs := []string{
		"ProjectID:3 | Travel | $42.00",
		"ProjectID: 8 |  Hotel  | $199.999 | two nights",
		"ProjectID:1 | 3 items at $5 | $15.00",
		"ProjectID:2 | Fuel | $7 | paid $7 cash",
	}
	for _, in := range inputs {
		first, err := Decode(in)
		if err != nil {
			t.Fatalf("Decode(%q): %v", in, err)
		}
		second, err := Decode(Encode(first))
		if err != nil {
			t.Fatalf("Decode(Encode(%+v)): %v", first, err)
		}
		if first != second {
			t.Fatalf("not idempotent for %q: %+v vs %+v", in, first, second)
		}
	}
}

func TestDecodeRejectsCompetingAmounts(t *testing.T) {
	// Either value could be the amount, and re-encoding would swap them.
	for _, in := range []string{"ProjectID:3 | $5 | $6", "ProjectID:3 | $6 | $5.00"} {
		if _, err := Decode(in); !errors.Is(err, core.ErrMalformedLegacyRecord) {
			t.Fatalf("Decode(%q) expected ErrMalformedLegacyRecord, got %v", in, err)
		}
	}
}

func TestDecodeTrimsSegments(t *testing.T) {
	rec := core.ExpenseRecord{ProjectID: 1, Description: "Travel ", Notes: " taxi", Amount: core.Cents(100)}
	got, err := Decode(Encode(rec))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Description != "Travel" || got.Notes != "taxi" {
		t.Fatalf("expected trimmed fields, got %+v", got)
	}
}
