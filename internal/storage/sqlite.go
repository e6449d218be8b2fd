package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/legacy"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that lexical order of the stored text equals
// chronological order.
const timeLayout = "2006-01-02 15:04:05.000000000"

const sqliteExpenseColumns = `id, author_id, project_id, amount_cents, description, notes, recorded_at`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Create(ctx context.Context, rec core.ExpenseRecord) (int64, error) {
	return r.insertExpense(ctx, rec, sql.NullInt64{})
}

func (r *SQLiteRepository) insertExpense(ctx context.Context, rec core.ExpenseRecord, legacyLogID sql.NullInt64) (int64, error) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (author_id, project_id, amount_cents, description, notes, recorded_at, legacy_log_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(legacy_log_id) DO NOTHING`,
		rec.AuthorID, rec.ProjectID, rec.Amount.Cents, rec.Description, rec.Notes,
		formatTime(rec.RecordedAt), legacyLogID)
	if err != nil {
		return 0, core.Persistence("create expense", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 && legacyLogID.Valid {
		slog.DebugContext(ctx, "Legacy expense already imported", "legacy_log_id", legacyLogID.Int64)
		return 0, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, core.Persistence("create expense", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"project_id", rec.ProjectID,
		"amount_cents", rec.Amount.Cents)
	return id, nil
}

func (r *SQLiteRepository) ListByAuthor(ctx context.Context, authorID int64) ([]core.ExpenseRecord, error) {
	return r.queryExpenses(ctx, "list expenses by author",
		`SELECT `+sqliteExpenseColumns+` FROM expenses WHERE author_id = ? ORDER BY recorded_at DESC, id DESC`, authorID)
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.ExpenseRecord, error) {
	return r.queryExpenses(ctx, "list expenses",
		`SELECT `+sqliteExpenseColumns+` FROM expenses ORDER BY recorded_at DESC, id DESC`)
}

func (r *SQLiteRepository) ListByProject(ctx context.Context, projectID int64) ([]core.ExpenseRecord, error) {
	return r.queryExpenses(ctx, "list expenses by project",
		`SELECT `+sqliteExpenseColumns+` FROM expenses WHERE project_id = ? ORDER BY recorded_at DESC, id DESC`, projectID)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.ExpenseRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteExpenseColumns+` FROM expenses WHERE id = ?`, id)
	rec, err := scanSQLiteExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.ExpenseRecord{}, core.Persistence("get expense", err)
	}
	return rec, nil
}

// ListUnmirrored returns records that have no spreadsheet row yet, oldest first.
func (r *SQLiteRepository) ListUnmirrored(ctx context.Context, limit int) ([]core.ExpenseRecord, error) {
	return r.queryExpenses(ctx, "list unmirrored expenses",
		`SELECT e.id, e.author_id, e.project_id, e.amount_cents, e.description, e.notes, e.recorded_at
		 FROM expenses e LEFT JOIN expense_mirror m ON m.expense_id = e.id
		 WHERE m.expense_id IS NULL
		 ORDER BY e.id ASC LIMIT ?`, limit)
}

func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id int64, rowRef string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expense_mirror (expense_id, row_ref, mirrored_at) VALUES (?, ?, ?)
		 ON CONFLICT(expense_id) DO UPDATE SET row_ref = excluded.row_ref, mirrored_at = excluded.mirrored_at`,
		id, rowRef, formatTime(time.Now()))
	if err != nil {
		return core.Persistence("mark expense mirrored", err)
	}
	return nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT project_id, client_id, description, due_date, status FROM projects ORDER BY project_id`)
	if err != nil {
		return nil, core.Persistence("list projects", err)
	}
	defer rows.Close()

	projects := []core.Project{}
	for rows.Next() {
		var (
			p   core.Project
			due sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Description, &due, &p.Status); err != nil {
			return nil, core.Persistence("scan project", err)
		}
		if due.Valid && due.String != "" {
			if p.DueDate, err = parseTime(due.String); err != nil {
				return nil, core.Persistence("scan project", err)
			}
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list projects", err)
	}
	return projects, nil
}

// CreateProject inserts a row into the projects projection and returns its id.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) (int64, error) {
	var due any
	if !p.DueDate.IsZero() {
		due = p.DueDate.UTC().Format("2006-01-02")
	}
	status := p.Status
	if status == "" {
		status = "active"
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (client_id, description, due_date, status) VALUES (?, ?, ?, ?)`,
		p.ClientID, p.Description, due, status)
	if err != nil {
		return 0, core.Persistence("create project", err)
	}
	return res.LastInsertId()
}

// AppendAuditRow writes a row to the historical audit_log table.
func (r *SQLiteRepository) AppendAuditRow(ctx context.Context, row legacy.Row, action string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action, details, timestamp) VALUES (?, ?, ?, ?)`,
		row.UserID, action, row.Details, formatTime(row.Timestamp))
	if err != nil {
		return 0, core.Persistence("append audit row", err)
	}
	return res.LastInsertId()
}

// ListLegacyRows returns CREATE_EXPENSE audit rows after afterLogID that were
// neither imported nor rejected.
func (r *SQLiteRepository) ListLegacyRows(ctx context.Context, afterLogID int64, limit int) ([]legacy.Row, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.log_id, a.user_id, a.details, a.timestamp
		 FROM audit_log a
		 WHERE a.action = ? AND a.log_id > ?
		   AND NOT EXISTS (SELECT 1 FROM expenses e WHERE e.legacy_log_id = a.log_id)
		   AND NOT EXISTS (SELECT 1 FROM legacy_rejects x WHERE x.log_id = a.log_id)
		 ORDER BY a.log_id ASC LIMIT ?`,
		legacy.ActionCreateExpense, afterLogID, limit)
	if err != nil {
		return nil, core.Persistence("list legacy rows", err)
	}
	defer rows.Close()

	var out []legacy.Row
	for rows.Next() {
		var (
			lr legacy.Row
			ts string
		)
		if err := rows.Scan(&lr.LogID, &lr.UserID, &lr.Details, &ts); err != nil {
			return nil, core.Persistence("scan legacy row", err)
		}
		// An unparseable timestamp stays zero and the importer rejects the row.
		if lr.Timestamp, err = parseTime(ts); err != nil {
			slog.WarnContext(ctx, "Unparseable audit timestamp", "log_id", lr.LogID, "timestamp", ts)
		}
		out = append(out, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list legacy rows", err)
	}
	return out, nil
}

// ImportLegacyExpense is a no-op when logID was imported before.
func (r *SQLiteRepository) ImportLegacyExpense(ctx context.Context, logID int64, rec core.ExpenseRecord) error {
	_, err := r.insertExpense(ctx, rec, sql.NullInt64{Int64: logID, Valid: true})
	return err
}

func (r *SQLiteRepository) RejectLegacyRow(ctx context.Context, logID int64, reason, details string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO legacy_rejects (log_id, reason, details, rejected_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(log_id) DO UPDATE SET reason = excluded.reason, rejected_at = excluded.rejected_at`,
		logID, reason, details, formatTime(time.Now()))
	if err != nil {
		return core.Persistence("reject legacy row", err)
	}
	return nil
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, op, query string, args ...any) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.Persistence(op, err)
	}
	defer rows.Close()

	records := []core.ExpenseRecord{}
	for rows.Next() {
		rec, err := scanSQLiteExpense(rows)
		if err != nil {
			return nil, core.Persistence(op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence(op, err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteExpense(s rowScanner) (core.ExpenseRecord, error) {
	var (
		rec   core.ExpenseRecord
		cents int64
		ts    string
	)
	if err := s.Scan(&rec.ID, &rec.AuthorID, &rec.ProjectID, &cents, &rec.Description, &rec.Notes, &ts); err != nil {
		return core.ExpenseRecord{}, err
	}
	rec.Amount = core.Cents(cents)
	t, err := parseTime(ts)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	rec.RecordedAt = t
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

var timeLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts the canonical layout plus the shapes found in imported
// audit rows.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
