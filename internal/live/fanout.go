package live

import (
	"context"
	"fmt"

	"github.com/HendryAvila/tracky/internal/project"
)

// Resolver maps a mutation to the resource URIs whose views it affects.
type Resolver struct {
	store project.DataStore
}

// NewResolver creates a resolver that consults store for task parentage.
func NewResolver(store project.DataStore) *Resolver {
	return &Resolver{store: store}
}

// AffectedResources returns the URIs to notify, in emission order and
// without deduplication.
//
//   - prd:  project, events
//   - epic: project, events, metrics of its PRD
//   - task: project, events, metrics of its epic's PRD (when the epic still
//     exists), then the assignee dashboard, then the previous assignee's
//     dashboard when it changed
func (r *Resolver) AffectedResources(ctx context.Context, m project.Mutation) ([]string, error) {
	switch m.EntityType {
	case project.EntityPRD:
		prd, ok := asPRD(m.Entity)
		if !ok {
			return nil, fmt.Errorf("%w: prd mutation carries %T", project.ErrInvariantViolation, m.Entity)
		}
		return []string{ProjectURI(prd.ID), EventsURI(prd.ID)}, nil

	case project.EntityEpic:
		epic, ok := asEpic(m.Entity)
		if !ok {
			return nil, fmt.Errorf("%w: epic mutation carries %T", project.ErrInvariantViolation, m.Entity)
		}
		return []string{ProjectURI(epic.PRDID), EventsURI(epic.PRDID), MetricsURI(epic.PRDID)}, nil

	case project.EntityTask:
		task, ok := asTask(m.Entity)
		if !ok {
			return nil, fmt.Errorf("%w: task mutation carries %T", project.ErrInvariantViolation, m.Entity)
		}
		data, err := r.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading data: %w", err)
		}

		var uris []string
		if epic := data.FindEpic(task.EpicID); epic != nil {
			uris = append(uris, ProjectURI(epic.PRDID), EventsURI(epic.PRDID), MetricsURI(epic.PRDID))
		}
		if task.Assignee != "" {
			uris = append(uris, DashboardURI(task.Assignee))
		}
		if old, ok := asTask(m.OldEntity); ok && old.Assignee != "" && old.Assignee != task.Assignee {
			uris = append(uris, DashboardURI(old.Assignee))
		}
		return uris, nil
	}
	return nil, fmt.Errorf("%w: unknown entity type %q", project.ErrInvariantViolation, m.EntityType)
}

func asPRD(e project.Entity) (project.PRD, bool) {
	switch v := e.(type) {
	case project.PRD:
		return v, true
	case *project.PRD:
		if v != nil {
			return *v, true
		}
	}
	return project.PRD{}, false
}

func asEpic(e project.Entity) (project.Epic, bool) {
	switch v := e.(type) {
	case project.Epic:
		return v, true
	case *project.Epic:
		if v != nil {
			return *v, true
		}
	}
	return project.Epic{}, false
}

func asTask(e project.Entity) (project.Task, bool) {
	switch v := e.(type) {
	case project.Task:
		return v, true
	case *project.Task:
		if v != nil {
			return *v, true
		}
	}
	return project.Task{}, false
}
