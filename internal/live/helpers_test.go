package live

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/HendryAvila/tracky/internal/project"
)

// memStore round-trips through JSON so every Load returns an independent copy.
type memStore struct {
	mu      sync.Mutex
	payload []byte
	loads   int
}

func newMemStore(t *testing.T, data *project.Data) *memStore {
	t.Helper()
	s := &memStore{}
	if data != nil {
		if err := s.Save(context.Background(), data); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	return s
}

func (s *memStore) Load(_ context.Context) (*project.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	data := &project.Data{}
	if s.payload == nil {
		return data, nil
	}
	if err := json.Unmarshal(s.payload, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *memStore) Save(_ context.Context, data *project.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.payload = b
	return nil
}

// recorder collects updates delivered to a callback.
type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) callback(u Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *recorder) types() []UpdateType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UpdateType, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, u.Type)
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// fixedClock pins timeNow for the duration of the test.
func fixedClock(t *testing.T, now time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
}

// sampleData returns PRD R1 with epic E1 (two tasks) and empty epic E2,
// plus PRD R2 with no epics.
func sampleData() *project.Data {
	return &project.Data{
		PRDs: []project.PRD{
			{ID: "R1", Title: "Checkout", Description: "Payments revamp", Status: project.PRDDraft, Owner: "alice",
				CreatedAt: "2026-03-01T09:00:00.000Z", UpdatedAt: "2026-03-01T09:00:00.000Z"},
			{ID: "R2", Title: "Search", Status: project.PRDDraft, Owner: "zed",
				CreatedAt: "2026-03-02T09:00:00.000Z", UpdatedAt: "2026-03-02T09:00:00.000Z"},
		},
		Epics: []project.Epic{
			{ID: "E1", PRDID: "R1", Title: "Cards", Status: project.EpicInProgress, Priority: project.PriorityHigh,
				CreatedAt: "2026-03-01T09:00:00.000Z"},
			{ID: "E2", PRDID: "R1", Title: "Wallets", Status: project.EpicNotStarted, Priority: project.PriorityLow,
				CreatedAt: "2026-03-01T09:00:00.000Z"},
		},
		Tasks: []project.Task{
			{ID: "T1", EpicID: "E1", Title: "Stripe", Status: project.TaskTodo, Priority: project.PriorityHigh,
				Assignee: "bob", Dependencies: []string{}, Notes: []string{},
				CreatedAt: "2026-03-01T09:00:00.000Z", UpdatedAt: "2026-03-01T09:00:00.000Z"},
			{ID: "T2", EpicID: "E1", Title: "Refunds", Status: project.TaskDone, Priority: project.PriorityMedium,
				Assignee: "carol", Dependencies: []string{}, Notes: []string{},
				CreatedAt: "2026-03-01T09:00:00.000Z", UpdatedAt: "2026-03-09T10:00:00.000Z"},
		},
	}
}
