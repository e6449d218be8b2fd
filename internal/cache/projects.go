package cache

import (
	"context"
	"time"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/ledger"
)

// Projects serves the projects projection from memory for ttl. The
// projection is written by another system, so staleness is bounded by ttl
// only.
type Projects struct {
	value *Value[[]core.Project]
}

var _ ledger.ProjectReader = (*Projects)(nil)

func NewProjects(src ledger.ProjectReader, ttl time.Duration) *Projects {
	return &Projects{value: NewValue(ttl, src.ListProjects)}
}

// ListProjects returns a copy so callers cannot mutate the cached slice.
func (p *Projects) ListProjects(ctx context.Context) ([]core.Project, error) {
	projects, err := p.value.Get(ctx)
	if err != nil {
		return nil, err
	}
	return append([]core.Project{}, projects...), nil
}
