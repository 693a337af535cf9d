package project

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Manager owns every mutation of the record set. Each mutation loads a fresh
// snapshot, applies the change, saves the whole set and then publishes one
// Mutation per touched entity.
//
// Mutations are serialized by a single writer lock so two overlapping calls
// in the same process cannot lose each other's writes. Reads are lock-free.
type Manager struct {
	store    DataStore
	notifier Notifier
	logger   *slog.Logger
	actor    string

	mu    sync.Mutex
	newID func(prefix string) string
}

// NewManager creates a Manager over the given store.
func NewManager(store DataStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		actor:  "system",
		newID:  generateID,
	}
}

// SetNotifier wires the change-notification subsystem. Nil-safe: without a
// notifier mutations are simply not published.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// SetActor sets the actor recorded on published mutations.
func (m *Manager) SetActor(actor string) {
	if strings.TrimSpace(actor) != "" {
		m.actor = actor
	}
}

// Store returns the underlying data store.
func (m *Manager) Store() DataStore {
	return m.store
}

func generateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// --- Parameter types ---

// PRDUpdate holds partial PRD fields. Nil fields are left unchanged.
type PRDUpdate struct {
	Title       *string
	Description *string
	Status      *PRDStatus
	Owner       *string
}

// NewEpic holds the input for one epic in CreateEpics.
type NewEpic struct {
	PRDID       string   `json:"prd_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// EpicUpdate holds partial epic fields. The parent PRD cannot change.
type EpicUpdate struct {
	Title       *string
	Description *string
	Status      *EpicStatus
	Priority    *Priority
}

// NewTask holds the input for one task in CreateTasks.
type NewTask struct {
	EpicID       string   `json:"epic_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Priority     Priority `json:"priority"`
	Assignee     string   `json:"assignee,omitempty"`
	DueDate      string   `json:"due_date,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// TaskUpdate holds partial task fields. The parent epic cannot change.
// Dependencies replaces the whole list when non-nil.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *Priority
	Assignee     *string
	DueDate      *string
	Dependencies *[]string
}

// --- Mutation plumbing ---

// mutate runs fn against a freshly loaded snapshot under the writer lock,
// saves the result, releases the lock and publishes what fn reported.
func (m *Manager) mutate(ctx context.Context, fn func(data *Data) ([]Mutation, error)) error {
	m.mu.Lock()
	data, err := m.store.Load(ctx)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("loading data: %w", err)
	}

	muts, err := fn(data)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if err := m.store.Save(ctx, data); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("saving data: %w", err)
	}
	m.mu.Unlock()

	m.publish(ctx, muts)
	return nil
}

// publish hands committed mutations to the notifier. The data is already
// saved, so notification failures are logged, not returned.
func (m *Manager) publish(ctx context.Context, muts []Mutation) {
	if m.notifier == nil {
		return
	}
	for _, mut := range muts {
		mut.Actor = m.actor
		if err := m.notifier.Publish(ctx, mut); err != nil {
			m.logger.Warn("publishing mutation",
				"entity", mut.EntityType, "id", mut.Entity.EntityID(),
				"action", mut.Action, "err", err)
		}
	}
}

// --- PRDs ---

// CreatePRD creates a draft PRD.
func (m *Manager) CreatePRD(ctx context.Context, title, description, owner string) (*PRD, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: 'title' is required", ErrBadInput)
	}
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("%w: 'owner' is required", ErrBadInput)
	}

	var created PRD
	err := m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		now := Now()
		created = PRD{
			ID:          m.newID("prd"),
			Title:       title,
			Description: description,
			Status:      PRDDraft,
			Owner:       owner,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		data.PRDs = append(data.PRDs, created)
		return []Mutation{{Action: ActionCreated, EntityType: EntityPRD, Entity: created}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePRD applies a partial update and bumps updated_at.
func (m *Manager) UpdatePRD(ctx context.Context, id string, u PRDUpdate) (*PRD, error) {
	if u.Status != nil {
		if err := ValidatePRDStatus(*u.Status); err != nil {
			return nil, err
		}
	}

	var updated PRD
	err := m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		prd := data.FindPRD(id)
		if prd == nil {
			return nil, fmt.Errorf("%w: PRD with id %s not found", ErrNotFound, id)
		}
		old := *prd

		if u.Title != nil {
			prd.Title = *u.Title
		}
		if u.Description != nil {
			prd.Description = *u.Description
		}
		if u.Status != nil {
			prd.Status = *u.Status
		}
		if u.Owner != nil {
			prd.Owner = *u.Owner
		}
		prd.UpdatedAt = Now()

		updated = *prd
		return []Mutation{{Action: ActionUpdated, EntityType: EntityPRD, Entity: updated, OldEntity: old}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePRD removes a PRD, its epics, and their tasks.
func (m *Manager) DeletePRD(ctx context.Context, id string) error {
	return m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		prd := data.FindPRD(id)
		if prd == nil {
			return nil, fmt.Errorf("%w: PRD with id %s not found", ErrNotFound, id)
		}
		muts := []Mutation{{Action: ActionDeleted, EntityType: EntityPRD, Entity: *prd}}

		var epicIDs []string
		for _, e := range data.Epics {
			if e.PRDID == id {
				epicIDs = append(epicIDs, e.ID)
			}
		}
		muts = append(muts, removeEpics(data, epicIDs)...)

		data.PRDs = slices.DeleteFunc(data.PRDs, func(p PRD) bool { return p.ID == id })
		return muts, nil
	})
}

// --- Epics ---

// CreateEpics creates a batch of not-started epics.
func (m *Manager) CreateEpics(ctx context.Context, epics []NewEpic) ([]Epic, error) {
	if len(epics) == 0 {
		return nil, fmt.Errorf("%w: 'epics' must contain at least one epic", ErrBadInput)
	}
	for i, e := range epics {
		if strings.TrimSpace(e.PRDID) == "" {
			return nil, fmt.Errorf("%w: epics[%d]: 'prd_id' is required", ErrBadInput, i)
		}
		if strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("%w: epics[%d]: 'title' is required", ErrBadInput, i)
		}
		if err := ValidatePriority(e.Priority); err != nil {
			return nil, fmt.Errorf("epics[%d]: %w", i, err)
		}
	}

	var created []Epic
	err := m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		for _, e := range epics {
			if data.FindPRD(e.PRDID) == nil {
				return nil, fmt.Errorf("%w: PRD with id %s not found", ErrNotFound, e.PRDID)
			}
		}

		now := Now()
		muts := make([]Mutation, 0, len(epics))
		for _, e := range epics {
			epic := Epic{
				ID:          m.newID("epic"),
				PRDID:       e.PRDID,
				Title:       e.Title,
				Description: e.Description,
				Status:      EpicNotStarted,
				Priority:    e.Priority,
				CreatedAt:   now,
			}
			created = append(created, epic)
			muts = append(muts, Mutation{Action: ActionCreated, EntityType: EntityEpic, Entity: epic})
		}
		data.Epics = append(data.Epics, created...)
		return muts, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateEpic applies a partial update. Epics carry no updated_at.
func (m *Manager) UpdateEpic(ctx context.Context, id string, u EpicUpdate) (*Epic, error) {
	if u.Status != nil {
		if err := ValidateEpicStatus(*u.Status); err != nil {
			return nil, err
		}
	}
	if u.Priority != nil {
		if err := ValidatePriority(*u.Priority); err != nil {
			return nil, err
		}
	}

	var updated Epic
	err := m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		epic := data.FindEpic(id)
		if epic == nil {
			return nil, fmt.Errorf("%w: Epic with id %s not found", ErrNotFound, id)
		}
		old := *epic

		if u.Title != nil {
			epic.Title = *u.Title
		}
		if u.Description != nil {
			epic.Description = *u.Description
		}
		if u.Status != nil {
			epic.Status = *u.Status
		}
		if u.Priority != nil {
			epic.Priority = *u.Priority
		}

		updated = *epic
		return []Mutation{{Action: ActionUpdated, EntityType: EntityEpic, Entity: updated, OldEntity: old}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEpics removes the given epics and their tasks. Every id must exist.
func (m *Manager) DeleteEpics(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: 'ids' must contain at least one epic id", ErrBadInput)
	}
	return m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		for _, id := range ids {
			if data.FindEpic(id) == nil {
				return nil, fmt.Errorf("%w: Epic with id %s not found", ErrNotFound, id)
			}
		}
		return removeEpics(data, ids), nil
	})
}

// removeEpics drops the epics and their tasks from data and reports a
// deletion for each removed entity, epics first.
func removeEpics(data *Data, ids []string) []Mutation {
	if len(ids) == 0 {
		return nil
	}
	var muts []Mutation
	for _, e := range data.Epics {
		if slices.Contains(ids, e.ID) {
			muts = append(muts, Mutation{Action: ActionDeleted, EntityType: EntityEpic, Entity: e})
		}
	}
	for _, t := range data.Tasks {
		if slices.Contains(ids, t.EpicID) {
			muts = append(muts, Mutation{Action: ActionDeleted, EntityType: EntityTask, Entity: t})
		}
	}
	data.Tasks = slices.DeleteFunc(data.Tasks, func(t Task) bool { return slices.Contains(ids, t.EpicID) })
	data.Epics = slices.DeleteFunc(data.Epics, func(e Epic) bool { return slices.Contains(ids, e.ID) })
	return muts
}

// --- Tasks ---

// CreateTasks creates a batch of todo tasks.
func (m *Manager) CreateTasks(ctx context.Context, tasks []NewTask) ([]Task, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: 'tasks' must contain at least one task", ErrBadInput)
	}
	for i, t := range tasks {
		if strings.TrimSpace(t.EpicID) == "" {
			return nil, fmt.Errorf("%w: tasks[%d]: 'epic_id' is required", ErrBadInput, i)
		}
		if strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("%w: tasks[%d]: 'title' is required", ErrBadInput, i)
		}
		if err := ValidatePriority(t.Priority); err != nil {
			return nil, fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}

	var created []Task
	err := m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		for _, t := range tasks {
			if data.FindEpic(t.EpicID) == nil {
				return nil, fmt.Errorf("%w: Epic with id %s not found", ErrNotFound, t.EpicID)
			}
		}

		now := Now()
		muts := make([]Mutation, 0, len(tasks))
		for _, t := range tasks {
			deps := []string{}
			if t.Dependencies != nil {
				deps = append(deps, t.Dependencies...)
			}
			task := Task{
				ID:           m.newID("task"),
				EpicID:       t.EpicID,
				Title:        t.Title,
				Description:  t.Description,
				Status:       TaskTodo,
				Priority:     t.Priority,
				Assignee:     t.Assignee,
				DueDate:      t.DueDate,
				Dependencies: deps,
				Notes:        []string{},
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			created = append(created, task)
			muts = append(muts, Mutation{Action: ActionCreated, EntityType: EntityTask, Entity: task})
		}
		data.Tasks = append(data.Tasks, created...)
		return muts, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateTask applies a partial update and bumps updated_at.
func (m *Manager) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*Task, error) {
	if u.Status != nil {
		if err := ValidateTaskStatus(*u.Status); err != nil {
			return nil, err
		}
	}
	if u.Priority != nil {
		if err := ValidatePriority(*u.Priority); err != nil {
			return nil, err
		}
	}

	var updated Task
	err := m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		task := data.FindTask(id)
		if task == nil {
			return nil, fmt.Errorf("%w: Task with id %s not found", ErrNotFound, id)
		}
		old := *task

		if u.Title != nil {
			task.Title = *u.Title
		}
		if u.Description != nil {
			task.Description = *u.Description
		}
		if u.Status != nil {
			task.Status = *u.Status
		}
		if u.Priority != nil {
			task.Priority = *u.Priority
		}
		if u.Assignee != nil {
			task.Assignee = *u.Assignee
		}
		if u.DueDate != nil {
			task.DueDate = *u.DueDate
		}
		if u.Dependencies != nil {
			task.Dependencies = append([]string{}, (*u.Dependencies)...)
		}
		task.UpdatedAt = Now()

		updated = *task
		return []Mutation{{Action: ActionUpdated, EntityType: EntityTask, Entity: updated, OldEntity: old}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddTaskNotes appends notes to a task and bumps updated_at.
func (m *Manager) AddTaskNotes(ctx context.Context, id string, notes []string) (*Task, error) {
	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: 'notes' must contain at least one note", ErrBadInput)
	}

	var updated Task
	err := m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		task := data.FindTask(id)
		if task == nil {
			return nil, fmt.Errorf("%w: Task with id %s not found", ErrNotFound, id)
		}
		old := *task

		task.Notes = append(task.Notes, notes...)
		task.UpdatedAt = Now()

		updated = *task
		return []Mutation{{Action: ActionUpdated, EntityType: EntityTask, Entity: updated, OldEntity: old}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTasks removes the given tasks. Every id must exist.
func (m *Manager) DeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: 'ids' must contain at least one task id", ErrBadInput)
	}
	return m.mutate(ctx, func(data *Data) ([]Mutation, error) {
		var muts []Mutation
		for _, id := range ids {
			task := data.FindTask(id)
			if task == nil {
				return nil, fmt.Errorf("%w: Task with id %s not found", ErrNotFound, id)
			}
			muts = append(muts, Mutation{Action: ActionDeleted, EntityType: EntityTask, Entity: *task})
		}
		data.Tasks = slices.DeleteFunc(data.Tasks, func(t Task) bool { return slices.Contains(ids, t.ID) })
		return muts, nil
	})
}
