package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/legacy"
)

const postgresExpenseColumns = `id, author_id, project_id, amount, description, notes, recorded_at`

// PostgresRepository stores amounts as NUMERIC(12,2) and converts them to
// integer cents on the way out.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Create(ctx context.Context, rec core.ExpenseRecord) (int64, error) {
	return r.insertExpense(ctx, rec, sql.NullInt64{})
}

func (r *PostgresRepository) insertExpense(ctx context.Context, rec core.ExpenseRecord, legacyLogID sql.NullInt64) (int64, error) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO expenses (author_id, project_id, amount, description, notes, recorded_at, legacy_log_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (legacy_log_id) DO NOTHING
		 RETURNING id`,
		rec.AuthorID, rec.ProjectID, rec.Amount.Decimal(), rec.Description, rec.Notes,
		rec.RecordedAt.UTC(), legacyLogID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) && legacyLogID.Valid {
		slog.DebugContext(ctx, "Legacy expense already imported", "legacy_log_id", legacyLogID.Int64)
		return 0, nil
	}
	if err != nil {
		return 0, core.Persistence("create expense", err)
	}

	slog.InfoContext(ctx, "Expense saved to Postgres",
		"id", id,
		"project_id", rec.ProjectID,
		"amount_cents", rec.Amount.Cents)
	return id, nil
}

func (r *PostgresRepository) ListByAuthor(ctx context.Context, authorID int64) ([]core.ExpenseRecord, error) {
	return r.queryExpenses(ctx, "list expenses by author",
		`SELECT `+postgresExpenseColumns+` FROM expenses WHERE author_id = $1 ORDER BY recorded_at DESC, id DESC`, authorID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]core.ExpenseRecord, error) {
	return r.queryExpenses(ctx, "list expenses",
		`SELECT `+postgresExpenseColumns+` FROM expenses ORDER BY recorded_at DESC, id DESC`)
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID int64) ([]core.ExpenseRecord, error) {
	return r.queryExpenses(ctx, "list expenses by project",
		`SELECT `+postgresExpenseColumns+` FROM expenses WHERE project_id = $1 ORDER BY recorded_at DESC, id DESC`, projectID)
}

func (r *PostgresRepository) GetExpense(ctx context.Context, id int64) (core.ExpenseRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postgresExpenseColumns+` FROM expenses WHERE id = $1`, id)
	rec, err := scanPostgresExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.ExpenseRecord{}, core.Persistence("get expense", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListUnmirrored(ctx context.Context, limit int) ([]core.ExpenseRecord, error) {
	return r.queryExpenses(ctx, "list unmirrored expenses",
		`SELECT e.id, e.author_id, e.project_id, e.amount, e.description, e.notes, e.recorded_at
		 FROM expenses e LEFT JOIN expense_mirror m ON m.expense_id = e.id
		 WHERE m.expense_id IS NULL
		 ORDER BY e.id ASC LIMIT $1`, limit)
}

func (r *PostgresRepository) MarkMirrored(ctx context.Context, id int64, rowRef string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expense_mirror (expense_id, row_ref) VALUES ($1, $2)
		 ON CONFLICT (expense_id) DO UPDATE SET row_ref = EXCLUDED.row_ref, mirrored_at = now()`,
		id, rowRef)
	if err != nil {
		return core.Persistence("mark expense mirrored", err)
	}
	return nil
}

func (r *PostgresRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
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
			due sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Description, &due, &p.Status); err != nil {
			return nil, core.Persistence("scan project", err)
		}
		if due.Valid {
			p.DueDate = due.Time.UTC()
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list projects", err)
	}
	return projects, nil
}

func (r *PostgresRepository) ListLegacyRows(ctx context.Context, afterLogID int64, limit int) ([]legacy.Row, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.log_id, a.user_id, a.details, a.timestamp
		 FROM audit_log a
		 WHERE a.action = $1 AND a.log_id > $2
		   AND NOT EXISTS (SELECT 1 FROM expenses e WHERE e.legacy_log_id = a.log_id)
		   AND NOT EXISTS (SELECT 1 FROM legacy_rejects x WHERE x.log_id = a.log_id)
		 ORDER BY a.log_id ASC LIMIT $3`,
		legacy.ActionCreateExpense, afterLogID, limit)
	if err != nil {
		return nil, core.Persistence("list legacy rows", err)
	}
	defer rows.Close()

	var out []legacy.Row
	for rows.Next() {
		var lr legacy.Row
		if err := rows.Scan(&lr.LogID, &lr.UserID, &lr.Details, &lr.Timestamp); err != nil {
			return nil, core.Persistence("scan legacy row", err)
		}
		out = append(out, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list legacy rows", err)
	}
	return out, nil
}

func (r *PostgresRepository) ImportLegacyExpense(ctx context.Context, logID int64, rec core.ExpenseRecord) error {
	_, err := r.insertExpense(ctx, rec, sql.NullInt64{Int64: logID, Valid: true})
	return err
}

func (r *PostgresRepository) RejectLegacyRow(ctx context.Context, logID int64, reason, details string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO legacy_rejects (log_id, reason, details) VALUES ($1, $2, $3)
		 ON CONFLICT (log_id) DO UPDATE SET reason = EXCLUDED.reason, rejected_at = now()`,
		logID, reason, details)
	if err != nil {
		return core.Persistence("reject legacy row", err)
	}
	return nil
}

func (r *PostgresRepository) queryExpenses(ctx context.Context, op, query string, args ...any) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.Persistence(op, err)
	}
	defer rows.Close()

	records := []core.ExpenseRecord{}
	for rows.Next() {
		rec, err := scanPostgresExpense(rows)
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

func scanPostgresExpense(s rowScanner) (core.ExpenseRecord, error) {
	var (
		rec    core.ExpenseRecord
		amount decimal.Decimal
	)
	if err := s.Scan(&rec.ID, &rec.AuthorID, &rec.ProjectID, &amount, &rec.Description, &rec.Notes, &rec.RecordedAt); err != nil {
		return core.ExpenseRecord{}, err
	}
	m, err := core.MoneyFromDecimal(amount)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	rec.Amount = m
	rec.RecordedAt = rec.RecordedAt.UTC()
	return rec, nil
}
