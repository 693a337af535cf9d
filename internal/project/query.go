package project

import (
	"context"
	"fmt"
	"strings"
)

// BuildProjects nests epics and tasks under their PRDs. An empty id returns
// every project; otherwise the single matching project, or ErrNotFound.
func BuildProjects(data *Data, prdID string) ([]ProjectWithEpics, error) {
	var prds []PRD
	if prdID == "" {
		prds = data.PRDs
	} else {
		prd := data.FindPRD(prdID)
		if prd == nil {
			return nil, fmt.Errorf("%w: PRD with id %s not found", ErrNotFound, prdID)
		}
		prds = []PRD{*prd}
	}

	projects := make([]ProjectWithEpics, 0, len(prds))
	for _, prd := range prds {
		p := ProjectWithEpics{PRD: prd, Epics: []EpicWithTasks{}}
		for _, epic := range data.Epics {
			if epic.PRDID != prd.ID {
				continue
			}
			ewt := EpicWithTasks{Epic: epic, Tasks: []Task{}}
			for _, task := range data.Tasks {
				if task.EpicID == epic.ID {
					ewt.Tasks = append(ewt.Tasks, task)
				}
			}
			p.Epics = append(p.Epics, ewt)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Search matches query case-insensitively. PRDs match on title, description
// and owner; epics on title and description; tasks on title, description,
// assignee and notes. An empty itemType searches every type.
func Search(data *Data, query string, itemType EntityType) (*SearchResult, error) {
	if itemType != "" {
		if err := ValidateEntityType(itemType); err != nil {
			return nil, err
		}
	}
	q := strings.ToLower(query)
	match := func(fields ...string) bool {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	}

	result := &SearchResult{}
	if itemType == "" || itemType == EntityPRD {
		result.PRDs = []PRD{}
		for _, p := range data.PRDs {
			if match(p.Title, p.Description, p.Owner) {
				result.PRDs = append(result.PRDs, p)
			}
		}
	}
	if itemType == "" || itemType == EntityEpic {
		result.Epics = []Epic{}
		for _, e := range data.Epics {
			if match(e.Title, e.Description) {
				result.Epics = append(result.Epics, e)
			}
		}
	}
	if itemType == "" || itemType == EntityTask {
		result.Tasks = []Task{}
		for _, t := range data.Tasks {
			fields := append([]string{t.Title, t.Description, t.Assignee}, t.Notes...)
			if match(fields...) {
				result.Tasks = append(result.Tasks, t)
			}
		}
	}
	return result, nil
}

// FilterTasksByStatus returns tasks in the given status, optionally narrowed
// to one epic and one assignee.
func FilterTasksByStatus(data *Data, status TaskStatus, epicID, assignee string) []Task {
	tasks := []Task{}
	for _, t := range data.Tasks {
		if t.Status != status {
			continue
		}
		if epicID != "" && t.EpicID != epicID {
			continue
		}
		if assignee != "" && t.Assignee != assignee {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// FilterTasksByAssignee returns every task assigned to the given person.
func FilterTasksByAssignee(data *Data, assignee string) []Task {
	tasks := []Task{}
	for _, t := range data.Tasks {
		if t.Assignee == assignee {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// --- Manager read wrappers ---

// ReadProject loads a fresh snapshot and nests it. See BuildProjects.
func (m *Manager) ReadProject(ctx context.Context, prdID string) ([]ProjectWithEpics, error) {
	data, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading data: %w", err)
	}
	return BuildProjects(data, prdID)
}

// SearchItems loads a fresh snapshot and searches it. See Search.
func (m *Manager) SearchItems(ctx context.Context, query string, itemType EntityType) (*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: 'query' is required", ErrBadInput)
	}
	data, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading data: %w", err)
	}
	return Search(data, query, itemType)
}

// TasksByStatus loads a fresh snapshot and filters tasks by status.
func (m *Manager) TasksByStatus(ctx context.Context, status TaskStatus, epicID, assignee string) ([]Task, error) {
	if err := ValidateTaskStatus(status); err != nil {
		return nil, err
	}
	data, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading data: %w", err)
	}
	return FilterTasksByStatus(data, status, epicID, assignee), nil
}

// TasksByAssignee loads a fresh snapshot and filters tasks by assignee.
func (m *Manager) TasksByAssignee(ctx context.Context, assignee string) ([]Task, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, fmt.Errorf("%w: 'assignee' is required", ErrBadInput)
	}
	data, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading data: %w", err)
	}
	return FilterTasksByAssignee(data, assignee), nil
}
