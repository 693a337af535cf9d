// Package project holds the tracked hierarchy: requirement documents (PRDs),
// the epics grouped under them, and the tasks grouped under epics.
//
// The package is split the same way the rest of the server is:
// - types.go: entities, enums and their validators
// - errors.go: the error taxonomy shared by every layer
// - manager.go: mutations (load, modify, save, notify)
// - query.go: read-side helpers over a loaded Data snapshot
//
// Persistence is abstracted behind DataStore (DIP); change notification is
// abstracted behind Notifier so the live-view subsystem can plug in.
package project

import (
	"context"
	"fmt"
)

// --- Entity type tag ---

// EntityType is the closed set of tracked entity kinds. It doubles as the
// record discriminator in the JSON-lines file.
type EntityType string

const (
	EntityPRD  EntityType = "prd"
	EntityEpic EntityType = "epic"
	EntityTask EntityType = "task"
)

// ValidateEntityType returns an error if the type is not recognized.
func ValidateEntityType(t EntityType) error {
	switch t {
	case EntityPRD, EntityEpic, EntityTask:
		return nil
	}
	return fmt.Errorf("%w: invalid item type %q: must be one of: prd, epic, task", ErrBadInput, t)
}

// --- Status and priority enums ---

// PRDStatus tracks a requirement document's lifecycle.
type PRDStatus string

const (
	PRDDraft      PRDStatus = "draft"
	PRDApproved   PRDStatus = "approved"
	PRDInProgress PRDStatus = "in_progress"
	PRDCompleted  PRDStatus = "completed"
)

var validPRDStatuses = map[PRDStatus]bool{
	PRDDraft:      true,
	PRDApproved:   true,
	PRDInProgress: true,
	PRDCompleted:  true,
}

// ValidatePRDStatus returns an error if the status is not recognized.
func ValidatePRDStatus(s PRDStatus) error {
	if !validPRDStatuses[s] {
		return fmt.Errorf("%w: invalid PRD status %q: must be one of: draft, approved, in_progress, completed", ErrBadInput, s)
	}
	return nil
}

// EpicStatus tracks an epic's lifecycle.
type EpicStatus string

const (
	EpicNotStarted EpicStatus = "not_started"
	EpicInProgress EpicStatus = "in_progress"
	EpicCompleted  EpicStatus = "completed"
)

var validEpicStatuses = map[EpicStatus]bool{
	EpicNotStarted: true,
	EpicInProgress: true,
	EpicCompleted:  true,
}

// ValidateEpicStatus returns an error if the status is not recognized.
func ValidateEpicStatus(s EpicStatus) error {
	if !validEpicStatuses[s] {
		return fmt.Errorf("%w: invalid epic status %q: must be one of: not_started, in_progress, completed", ErrBadInput, s)
	}
	return nil
}

// TaskStatus tracks a task through the board columns.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

var validTaskStatuses = map[TaskStatus]bool{
	TaskTodo:       true,
	TaskInProgress: true,
	TaskReview:     true,
	TaskDone:       true,
}

// ValidateTaskStatus returns an error if the status is not recognized.
func ValidateTaskStatus(s TaskStatus) error {
	if !validTaskStatuses[s] {
		return fmt.Errorf("%w: invalid task status %q: must be one of: todo, in_progress, review, done", ErrBadInput, s)
	}
	return nil
}

// Priority is shared by epics and tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
}

// ValidatePriority returns an error if the priority is not recognized.
func ValidatePriority(p Priority) error {
	if !validPriorities[p] {
		return fmt.Errorf("%w: invalid priority %q: must be one of: low, medium, high", ErrBadInput, p)
	}
	return nil
}

// --- Entities ---

// Entity is implemented by PRD, Epic and Task. Kind is the explicit tag the
// fan-out resolver switches on; nothing is inferred from field shapes.
type Entity interface {
	Kind() EntityType
	EntityID() string
}

// PRD is a product requirements document, the root of the hierarchy.
type PRD struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      PRDStatus `json:"status"`
	Owner       string    `json:"owner"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// Epic groups tasks under a PRD. Epics carry no updated_at.
type Epic struct {
	ID          string     `json:"id"`
	PRDID       string     `json:"prd_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      EpicStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	CreatedAt   string     `json:"created_at"`
}

// Task is the leaf unit of work.
type Task struct {
	ID           string     `json:"id"`
	EpicID       string     `json:"epic_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       TaskStatus `json:"status"`
	Priority     Priority   `json:"priority"`
	Assignee     string     `json:"assignee,omitempty"`
	DueDate      string     `json:"due_date,omitempty"`
	Dependencies []string   `json:"dependencies"`
	Notes        []string   `json:"notes"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}

func (p PRD) Kind() EntityType  { return EntityPRD }
func (p PRD) EntityID() string  { return p.ID }
func (e Epic) Kind() EntityType { return EntityEpic }
func (e Epic) EntityID() string { return e.ID }
func (t Task) Kind() EntityType { return EntityTask }
func (t Task) EntityID() string { return t.ID }

// Data is the full record set. Every operation loads its own copy.
type Data struct {
	PRDs  []PRD  `json:"prds"`
	Epics []Epic `json:"epics"`
	Tasks []Task `json:"tasks"`
}

// FindPRD returns the PRD with the given id, or nil.
func (d *Data) FindPRD(id string) *PRD {
	for i := range d.PRDs {
		if d.PRDs[i].ID == id {
			return &d.PRDs[i]
		}
	}
	return nil
}

// FindEpic returns the epic with the given id, or nil.
func (d *Data) FindEpic(id string) *Epic {
	for i := range d.Epics {
		if d.Epics[i].ID == id {
			return &d.Epics[i]
		}
	}
	return nil
}

// FindTask returns the task with the given id, or nil.
func (d *Data) FindTask(id string) *Task {
	for i := range d.Tasks {
		if d.Tasks[i].ID == id {
			return &d.Tasks[i]
		}
	}
	return nil
}

// --- Aggregates ---

// EpicWithTasks is an epic with its tasks nested.
type EpicWithTasks struct {
	Epic
	Tasks []Task `json:"tasks"`
}

// ProjectWithEpics is a PRD with its epics (and their tasks) nested.
type ProjectWithEpics struct {
	PRD
	Epics []EpicWithTasks `json:"epics"`
}

// SearchResult holds per-type matches. A nil slice means the type was not searched.
type SearchResult struct {
	PRDs  []PRD  `json:"prds,omitempty"`
	Epics []Epic `json:"epics,omitempty"`
	Tasks []Task `json:"tasks,omitempty"`
}

// --- Mutations ---

// Action is what happened to an entity.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Mutation describes one entity change. OldEntity is nil for creations.
type Mutation struct {
	Action     Action
	EntityType EntityType
	Entity     Entity
	OldEntity  Entity
	Actor      string
}

// --- Collaborator interfaces ---

// DataStore loads and saves the full record set.
type DataStore interface {
	Load(ctx context.Context) (*Data, error)
	Save(ctx context.Context, data *Data) error
}

// Notifier receives every committed mutation.
type Notifier interface {
	Publish(ctx context.Context, m Mutation) error
}
