// Package ledger holds the role rules of the expense ledger.
//
// Managers record expenses and see their own; owners see everything;
// accountants and owners read per-project summaries. Every call takes the
// caller explicitly as a core.Actor.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/legacy"
)

// Store persists expense records. No update or delete exists.
type Store interface {
	Create(ctx context.Context, rec core.ExpenseRecord) (int64, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]core.ExpenseRecord, error)
	ListAll(ctx context.Context) ([]core.ExpenseRecord, error)
	ListByProject(ctx context.Context, projectID int64) ([]core.ExpenseRecord, error)
}

// ProjectReader exposes the read-only projects projection.
type ProjectReader interface {
	ListProjects(ctx context.Context) ([]core.Project, error)
}

// EventPublisher announces newly recorded expenses.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, id int64) error
}

// NewExpense is the caller-supplied part of a record.
type NewExpense struct {
	ProjectID   int64
	Description string
	Notes       string
	Amount      core.Money
}

type Service struct {
	store     Store
	projects  ProjectReader
	publisher EventPublisher
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Service)

// WithPublisher enables expense.recorded events.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithProjects enables ListProjects.
func WithProjects(p ProjectReader) Option {
	return func(s *Service) { s.projects = p }
}

// WithClock overrides the clock used to stamp RecordedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordExpense stores a new expense authored by actor. Only managers may
// record, and the role check runs before any input validation.
func (s *Service) RecordExpense(ctx context.Context, actor core.Actor, in NewExpense) (core.ExpenseRecord, error) {
	if err := s.AuthorizeRecord(actor); err != nil {
		return core.ExpenseRecord{}, err
	}

	rec := core.ExpenseRecord{
		AuthorID:    actor.ID,
		ProjectID:   in.ProjectID,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Notes:       strings.TrimSpace(in.Notes),
		RecordedAt:  s.now().UTC(),
	}
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	id, err := s.store.Create(ctx, rec)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	rec.ID = id

	s.logger.InfoContext(ctx, "Expense recorded",
		"id", rec.ID,
		"author_id", rec.AuthorID,
		"project_id", rec.ProjectID,
		"amount", rec.Amount.String())

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseRecorded(ctx, rec.ID); err != nil {
			// The record is already durable; the mirror backfill catches up.
			s.logger.ErrorContext(ctx, "Failed to publish expense event", "id", rec.ID, "error", err)
		}
	}
	return rec, nil
}

// AuthorizeRecord lets transports reject a non-manager before they parse
// the request body.
func (s *Service) AuthorizeRecord(actor core.Actor) error {
	if !actor.Is(core.RoleManager) {
		return forbidden(actor, "record expenses")
	}
	return nil
}

// ListExpenses returns a manager's own records, or every record for an owner.
// Newest first.
func (s *Service) ListExpenses(ctx context.Context, actor core.Actor) ([]core.ExpenseRecord, error) {
	switch {
	case actor.Is(core.RoleManager):
		return s.store.ListByAuthor(ctx, actor.ID)
	case actor.Is(core.RoleOwner):
		return s.store.ListAll(ctx)
	default:
		return nil, forbidden(actor, "list expenses")
	}
}

// SummarizeByProject totals every record per project, ascending by project id.
func (s *Service) SummarizeByProject(ctx context.Context, actor core.Actor) ([]core.ProjectSummary, error) {
	if !canAudit(actor) {
		return nil, forbidden(actor, "view summaries")
	}
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(records), nil
}

// Summarize groups records by project. Totals use integer cents so the
// result does not depend on record order.
func Summarize(records []core.ExpenseRecord) []core.ProjectSummary {
	byProject := make(map[int64]*core.ProjectSummary)
	for _, r := range records {
		sum, ok := byProject[r.ProjectID]
		if !ok {
			sum = &core.ProjectSummary{ProjectID: r.ProjectID}
			byProject[r.ProjectID] = sum
		}
		sum.Count++
		sum.Total = sum.Total.Add(r.Amount)
	}

	out := make([]core.ProjectSummary, 0, len(byProject))
	for _, sum := range byProject {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// ProjectExpenses lists one project's records for owners and accountants.
func (s *Service) ProjectExpenses(ctx context.Context, actor core.Actor, projectID int64) ([]core.ExpenseRecord, error) {
	if !canAudit(actor) {
		return nil, forbidden(actor, "view project expenses")
	}
	if projectID <= 0 {
		return nil, core.InvalidInput("projectId", "is required")
	}
	return s.store.ListByProject(ctx, projectID)
}

// ExportLegacy renders every record in the audit-log Details encoding,
// newest first.
func (s *Service) ExportLegacy(ctx context.Context, actor core.Actor) ([]string, error) {
	if !canAudit(actor) {
		return nil, forbidden(actor, "export expenses")
	}
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = legacy.Encode(r)
	}
	return lines, nil
}

// ListProjects is open to every recognized role.
func (s *Service) ListProjects(ctx context.Context, actor core.Actor) ([]core.Project, error) {
	if _, ok := core.ParseRole(string(actor.Role)); !ok {
		return nil, forbidden(actor, "list projects")
	}
	if s.projects == nil {
		return []core.Project{}, nil
	}
	return s.projects.ListProjects(ctx)
}

func canAudit(actor core.Actor) bool {
	return actor.Is(core.RoleAccountant) || actor.Is(core.RoleOwner)
}

func forbidden(actor core.Actor, what string) error {
	return fmt.Errorf("%w: role %q may not %s", core.ErrForbidden, actor.Role, what)
}
