// Package memory is an in-process ledger store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
)

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	records  []core.ExpenseRecord
	projects []core.Project
	mirrored map[int64]string
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		mirrored: make(map[int64]string),
		now:      time.Now,
	}
}

// SeedProjects replaces the projects projection.
func (s *Store) SeedProjects(projects ...core.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = append([]core.Project(nil), projects...)
}

func (s *Store) Create(_ context.Context, rec core.ExpenseRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.now().UTC()
	}
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *Store) ListByAuthor(_ context.Context, authorID int64) ([]core.ExpenseRecord, error) {
	return s.filter(func(r core.ExpenseRecord) bool { return r.AuthorID == authorID }), nil
}

func (s *Store) ListAll(_ context.Context) ([]core.ExpenseRecord, error) {
	return s.filter(func(core.ExpenseRecord) bool { return true }), nil
}

func (s *Store) ListByProject(_ context.Context, projectID int64) ([]core.ExpenseRecord, error) {
	return s.filter(func(r core.ExpenseRecord) bool { return r.ProjectID == projectID }), nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return core.ExpenseRecord{}, core.ErrNotFound
}

func (s *Store) ListProjects(_ context.Context) ([]core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]core.Project{}, s.projects...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListUnmirrored returns records without a mirror row, oldest first.
func (s *Store) ListUnmirrored(_ context.Context, limit int) ([]core.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ExpenseRecord
	for _, r := range s.records {
		if _, ok := s.mirrored[r.ID]; ok {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkMirrored(_ context.Context, id int64, rowRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrored[id] = rowRef
	return nil
}

// filter copies matching records, newest first. Ties on RecordedAt fall back
// to the higher id.
func (s *Store) filter(keep func(core.ExpenseRecord) bool) []core.ExpenseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.ExpenseRecord{}
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
