package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HendryAvila/tracky/internal/project"
)

func sampleData() *project.Data {
	return &project.Data{
		PRDs: []project.PRD{{
			ID: "prd_1", Title: "Checkout", Description: "Payments", Status: project.PRDDraft, Owner: "alice",
			CreatedAt: "2026-03-01T09:00:00.000Z", UpdatedAt: "2026-03-01T09:00:00.000Z",
		}},
		Epics: []project.Epic{{
			ID: "epic_1", PRDID: "prd_1", Title: "Cards", Status: project.EpicInProgress, Priority: project.PriorityHigh,
			CreatedAt: "2026-03-01T09:00:00.000Z",
		}},
		Tasks: []project.Task{{
			ID: "task_1", EpicID: "epic_1", Title: "Stripe", Status: project.TaskTodo, Priority: project.PriorityMedium,
			Assignee: "bob", DueDate: "2026-03-20", Dependencies: []string{"task_0"}, Notes: []string{"kickoff"},
			CreatedAt: "2026-03-01T09:00:00.000Z", UpdatedAt: "2026-03-01T09:00:00.000Z",
		}},
	}
}

// assertRoundTrip saves sampleData and checks Load returns it unchanged.
func assertRoundTrip(t *testing.T, s project.DataStore) {
	t.Helper()
	ctx := context.Background()
	want := sampleData()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
