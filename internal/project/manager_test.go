package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// --- Test doubles ---

// memStore round-trips through JSON so every Load returns an independent copy.
type memStore struct {
	mu      sync.Mutex
	payload []byte
	saves   int
}

func (s *memStore) Load(_ context.Context) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := &Data{}
	if s.payload == nil {
		return data, nil
	}
	if err := json.Unmarshal(s.payload, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *memStore) Save(_ context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.payload = b
	s.saves++
	return nil
}

type failingStore struct{}

func (failingStore) Load(_ context.Context) (*Data, error) { return nil, errors.New("disk on fire") }
func (failingStore) Save(_ context.Context, _ *Data) error { return errors.New("disk on fire") }

type recordingNotifier struct {
	mu   sync.Mutex
	muts []Mutation
	err  error
}

func (r *recordingNotifier) Publish(_ context.Context, m Mutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.muts = append(r.muts, m)
	return r.err
}

// newTestManager returns a manager with deterministic ids and a recorder.
func newTestManager(t *testing.T) (*Manager, *memStore, *recordingNotifier) {
	t.Helper()
	store := &memStore{}
	rec := &recordingNotifier{}
	m := NewManager(store, nil)
	m.SetNotifier(rec)
	n := 0
	m.newID = func(prefix string) string {
		n++
		return fmt.Sprintf("%s_%d", prefix, n)
	}

	orig := timeNow
	timeNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = orig })
	return m, store, rec
}

// seed creates one PRD with two epics and three tasks.
func seed(t *testing.T, m *Manager) (PRD, []Epic, []Task) {
	t.Helper()
	ctx := context.Background()
	prd, err := m.CreatePRD(ctx, "Checkout", "New checkout flow", "alice")
	if err != nil {
		t.Fatalf("CreatePRD: %v", err)
	}
	epics, err := m.CreateEpics(ctx, []NewEpic{
		{PRDID: prd.ID, Title: "Payments", Description: "Card payments", Priority: PriorityHigh},
		{PRDID: prd.ID, Title: "Emails", Description: "Receipts", Priority: PriorityLow},
	})
	if err != nil {
		t.Fatalf("CreateEpics: %v", err)
	}
	tasks, err := m.CreateTasks(ctx, []NewTask{
		{EpicID: epics[0].ID, Title: "Stripe client", Description: "wrap the API", Priority: PriorityHigh, Assignee: "bob"},
		{EpicID: epics[0].ID, Title: "Refunds", Description: "partial refunds", Priority: PriorityMedium, Assignee: "carol"},
		{EpicID: epics[1].ID, Title: "Receipt template", Description: "html", Priority: PriorityLow},
	})
	if err != nil {
		t.Fatalf("CreateTasks: %v", err)
	}
	return *prd, epics, tasks
}

// --- Creation defaults ---

func TestCreatePRD_Defaults(t *testing.T) {
	m, _, rec := newTestManager(t)
	prd, err := m.CreatePRD(context.Background(), "Checkout", "desc", "alice")
	if err != nil {
		t.Fatalf("CreatePRD: %v", err)
	}

	want := PRD{
		ID:          "prd_1",
		Title:       "Checkout",
		Description: "desc",
		Status:      PRDDraft,
		Owner:       "alice",
		CreatedAt:   "2026-03-01T12:00:00.000Z",
		UpdatedAt:   "2026-03-01T12:00:00.000Z",
	}
	if diff := cmp.Diff(want, *prd); diff != "" {
		t.Errorf("CreatePRD mismatch (-want +got):\n%s", diff)
	}
	if len(rec.muts) != 1 || rec.muts[0].Action != ActionCreated || rec.muts[0].OldEntity != nil {
		t.Errorf("mutations = %+v, want one created without old entity", rec.muts)
	}
	if rec.muts[0].Actor != "system" {
		t.Errorf("Actor = %q, want %q", rec.muts[0].Actor, "system")
	}
}

func TestCreatePRD_RequiresTitleAndOwner(t *testing.T) {
	m, store, _ := newTestManager(t)
	tests := []struct {
		name, title, owner string
	}{
		{"no title", "", "alice"},
		{"blank title", "   ", "alice"},
		{"no owner", "Checkout", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreatePRD(context.Background(), tt.title, "d", tt.owner)
			if !errors.Is(err, ErrBadInput) {
				t.Errorf("err = %v, want ErrBadInput", err)
			}
		})
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
}

func TestCreateTasks_Defaults(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, _, tasks := seed(t, m)

	task := tasks[0]
	if task.Status != TaskTodo {
		t.Errorf("Status = %q, want %q", task.Status, TaskTodo)
	}
	if task.Dependencies == nil || len(task.Dependencies) != 0 {
		t.Errorf("Dependencies = %#v, want empty non-nil", task.Dependencies)
	}
	if task.Notes == nil || len(task.Notes) != 0 {
		t.Errorf("Notes = %#v, want empty non-nil", task.Notes)
	}
}

func TestCreateEpics_Validation(t *testing.T) {
	m, _, _ := newTestManager(t)
	prd, _, _ := seed(t, m)
	ctx := context.Background()

	tests := []struct {
		name  string
		input []NewEpic
		want  error
	}{
		{"empty batch", nil, ErrBadInput},
		{"bad priority", []NewEpic{{PRDID: prd.ID, Title: "x", Priority: "urgent"}}, ErrBadInput},
		{"missing title", []NewEpic{{PRDID: prd.ID, Priority: PriorityLow}}, ErrBadInput},
		{"unknown prd", []NewEpic{{PRDID: "prd_nope", Title: "x", Priority: PriorityLow}}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateEpics(ctx, tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateTasks_UnknownEpicWritesNothing(t *testing.T) {
	m, store, rec := newTestManager(t)
	epicID := "epic_missing"
	before := store.saves

	_, err := m.CreateTasks(context.Background(), []NewTask{{EpicID: epicID, Title: "t", Priority: PriorityLow}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if store.saves != before {
		t.Errorf("saves = %d, want %d", store.saves, before)
	}
	if len(rec.muts) != 0 {
		t.Errorf("published %d mutations, want 0", len(rec.muts))
	}
}

// --- Updates ---

func TestUpdateTask_PublishesOldEntity(t *testing.T) {
	m, _, rec := newTestManager(t)
	_, _, tasks := seed(t, m)
	rec.muts = nil

	status := TaskInProgress
	assignee := "dave"
	got, err := m.UpdateTask(context.Background(), tasks[0].ID, TaskUpdate{Status: &status, Assignee: &assignee})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got.Status != TaskInProgress || got.Assignee != "dave" {
		t.Errorf("updated = %+v", got)
	}
	if len(rec.muts) != 1 {
		t.Fatalf("published %d mutations, want 1", len(rec.muts))
	}
	old, ok := rec.muts[0].OldEntity.(Task)
	if !ok {
		t.Fatalf("OldEntity = %T, want Task", rec.muts[0].OldEntity)
	}
	if old.Assignee != "bob" || old.Status != TaskTodo {
		t.Errorf("old = %+v, want bob/todo", old)
	}
}

func TestUpdateTask_InvalidStatus(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, _, tasks := seed(t, m)
	bad := TaskStatus("blocked")
	_, err := m.UpdateTask(context.Background(), tasks[0].ID, TaskUpdate{Status: &bad})
	if !errors.Is(err, ErrBadInput) {
		t.Errorf("err = %v, want ErrBadInput", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	title := "x"

	if _, err := m.UpdatePRD(ctx, "prd_x", PRDUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePRD err = %v, want ErrNotFound", err)
	}
	if _, err := m.UpdateEpic(ctx, "epic_x", EpicUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateEpic err = %v, want ErrNotFound", err)
	}
	if _, err := m.UpdateTask(ctx, "task_x", TaskUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTask err = %v, want ErrNotFound", err)
	}
	if _, err := m.AddTaskNotes(ctx, "task_x", []string{"n"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddTaskNotes err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePRD_BumpsUpdatedAt(t *testing.T) {
	m, _, _ := newTestManager(t)
	prd, _, _ := seed(t, m)

	timeNow = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }
	status := PRDApproved
	got, err := m.UpdatePRD(context.Background(), prd.ID, PRDUpdate{Status: &status})
	if err != nil {
		t.Fatalf("UpdatePRD: %v", err)
	}
	if got.UpdatedAt != "2026-03-02T09:30:00.000Z" {
		t.Errorf("UpdatedAt = %q", got.UpdatedAt)
	}
	if got.CreatedAt != prd.CreatedAt {
		t.Errorf("CreatedAt changed: %q -> %q", prd.CreatedAt, got.CreatedAt)
	}
}

func TestAddTaskNotes_Appends(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, _, tasks := seed(t, m)
	ctx := context.Background()

	if _, err := m.AddTaskNotes(ctx, tasks[0].ID, []string{"first"}); err != nil {
		t.Fatalf("AddTaskNotes: %v", err)
	}
	got, err := m.AddTaskNotes(ctx, tasks[0].ID, []string{"second", "third"})
	if err != nil {
		t.Fatalf("AddTaskNotes: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, got.Notes); diff != "" {
		t.Errorf("Notes mismatch (-want +got):\n%s", diff)
	}
	if _, err := m.AddTaskNotes(ctx, tasks[0].ID, nil); !errors.Is(err, ErrBadInput) {
		t.Errorf("empty notes err = %v, want ErrBadInput", err)
	}
}

// --- Deletes ---

func TestDeletePRD_Cascades(t *testing.T) {
	m, store, rec := newTestManager(t)
	prd, _, _ := seed(t, m)
	other, err := m.CreatePRD(context.Background(), "Other", "", "zed")
	if err != nil {
		t.Fatalf("CreatePRD: %v", err)
	}
	rec.muts = nil

	if err := m.DeletePRD(context.Background(), prd.ID); err != nil {
		t.Fatalf("DeletePRD: %v", err)
	}

	data, _ := store.Load(context.Background())
	if len(data.PRDs) != 1 || data.PRDs[0].ID != other.ID {
		t.Errorf("PRDs = %+v, want only %s", data.PRDs, other.ID)
	}
	if len(data.Epics) != 0 || len(data.Tasks) != 0 {
		t.Errorf("cascade left epics=%d tasks=%d", len(data.Epics), len(data.Tasks))
	}

	var kinds []EntityType
	for _, mut := range rec.muts {
		if mut.Action != ActionDeleted {
			t.Errorf("action = %q, want deleted", mut.Action)
		}
		kinds = append(kinds, mut.EntityType)
	}
	want := []EntityType{EntityPRD, EntityEpic, EntityEpic, EntityTask, EntityTask, EntityTask}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("deleted kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestDeletePRD_NotFound(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.DeletePRD(context.Background(), "prd_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteEpics_CascadesOnlyOwnTasks(t *testing.T) {
	m, store, _ := newTestManager(t)
	_, epics, tasks := seed(t, m)

	if err := m.DeleteEpics(context.Background(), []string{epics[0].ID}); err != nil {
		t.Fatalf("DeleteEpics: %v", err)
	}
	data, _ := store.Load(context.Background())
	if len(data.Epics) != 1 || data.Epics[0].ID != epics[1].ID {
		t.Errorf("Epics = %+v", data.Epics)
	}
	if len(data.Tasks) != 1 || data.Tasks[0].ID != tasks[2].ID {
		t.Errorf("Tasks = %+v", data.Tasks)
	}
}

func TestDeleteTasks_MissingIDIsAllOrNothing(t *testing.T) {
	m, store, _ := newTestManager(t)
	_, _, tasks := seed(t, m)

	err := m.DeleteTasks(context.Background(), []string{tasks[0].ID, "task_missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	data, _ := store.Load(context.Background())
	if len(data.Tasks) != 3 {
		t.Errorf("tasks = %d, want 3", len(data.Tasks))
	}
}

// --- Failure propagation ---

func TestMutation_StoreFailurePropagates(t *testing.T) {
	m := NewManager(failingStore{}, nil)
	_, err := m.CreatePRD(context.Background(), "t", "d", "o")
	if err == nil {
		t.Fatal("expected error from failing store")
	}
}

func TestMutation_NotifierErrorDoesNotFailCommittedWrite(t *testing.T) {
	m, store, rec := newTestManager(t)
	rec.err = errors.New("fan-out failed")

	if _, err := m.CreatePRD(context.Background(), "t", "d", "o"); err != nil {
		t.Fatalf("CreatePRD: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}

func TestConcurrentMutations_NoLostUpdates(t *testing.T) {
	m, store, _ := newTestManager(t)
	_, epics, _ := seed(t, m)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateTasks(context.Background(), []NewTask{{
				EpicID: epics[1].ID, Title: fmt.Sprintf("t%d", i), Priority: PriorityLow,
			}})
			if err != nil {
				t.Errorf("CreateTasks: %v", err)
			}
		}()
	}
	wg.Wait()

	data, _ := store.Load(context.Background())
	if len(data.Tasks) != 23 {
		t.Errorf("tasks = %d, want 23", len(data.Tasks))
	}
}
