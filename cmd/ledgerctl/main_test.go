package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/auth"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/legacy"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/storage"
)

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), nil, &stdout, &stderr); err != errUsage {
		t.Fatalf("expected errUsage, got %v", err)
	}
	if !strings.Contains(stderr.String(), "import-legacy") {
		t.Errorf("usage not printed: %q", stderr.String())
	}

	stderr.Reset()
	if err := run(context.Background(), []string{"frobnicate"}, &stdout, &stderr); err != errUsage {
		t.Fatalf("expected errUsage, got %v", err)
	}
	if !strings.Contains(stderr.String(), `unknown command "frobnicate"`) {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}

func TestRunToken(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef")
	t.Setenv("AUTH_JWT_ISSUER", "ledger-test")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"token", "--user-id", "7", "--role", "Manager", "--ttl", "1h"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	actor, err := auth.NewJWTGate("0123456789abcdef", "ledger-test").Verify(strings.TrimSpace(stdout.String()))
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if actor.ID != 7 || actor.Role != core.RoleManager {
		t.Errorf("unexpected actor %+v", actor)
	}
}

func TestRunToken_Rejects(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing user", []string{"--role", "owner"}, "--user-id must be positive"},
		{"unknown role", []string{"--user-id", "1", "--role", "intern"}, `unknown role "intern"`},
		{"bad ttl", []string{"--user-id", "1", "--role", "owner", "--ttl=-1h"}, "--ttl must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := runToken(tt.args, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRunImport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", dbPath)
	t.Setenv("EVENTS_BACKEND", "none")

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, details := range []string{
		"ProjectID:4 | Fuel | $19.99 | van",
		"garbage",
	} {
		if _, err := repo.AppendAuditRow(ctx, legacy.Row{UserID: 3, Details: details, Timestamp: ts}, legacy.ActionCreateExpense); err != nil {
			t.Fatalf("seed audit row: %v", err)
		}
	}
	repo.Close()

	var stdout, stderr bytes.Buffer
	if err := run(ctx, []string{"import-legacy", "--dry-run"}, &stdout, &stderr); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "scanned=2 imported=1 rejected=1 dry_run=true" {
		t.Errorf("dry run report = %q", got)
	}

	stdout.Reset()
	if err := run(ctx, []string{"import-legacy", "--batch-size", "1"}, &stdout, &stderr); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "scanned=2 imported=1 rejected=1 dry_run=false" {
		t.Errorf("import report = %q", got)
	}

	// Both rows are now settled, so a second run finds nothing.
	stdout.Reset()
	if err := run(ctx, []string{"import-legacy"}, &stdout, &stderr); err != nil {
		t.Fatalf("second import: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "scanned=0 imported=0 rejected=0 dry_run=false" {
		t.Errorf("second report = %q", got)
	}

	repo, err = storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("reopen repo: %v", err)
	}
	defer repo.Close()
	records, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].AuthorID != 3 || records[0].ProjectID != 4 || records[0].Amount != core.Cents(1999) {
		t.Errorf("unexpected imported records %+v", records)
	}
}
