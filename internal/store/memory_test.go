package store

import (
	"context"
	"testing"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	assertRoundTrip(t, NewMemoryStore())
}

func TestMemoryStore_EmptyLoad(t *testing.T) {
	data, err := NewMemoryStore().Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(data.PRDs)+len(data.Epics)+len(data.Tasks) != 0 {
		t.Errorf("empty store loaded %+v", data)
	}
}

func TestMemoryStore_LoadIsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Save(ctx, sampleData()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	first, _ := s.Load(ctx)
	first.Tasks[0].Notes[0] = "edited"
	first.PRDs = nil

	second, _ := s.Load(ctx)
	if len(second.PRDs) != 1 || second.Tasks[0].Notes[0] != "kickoff" {
		t.Errorf("mutating a loaded copy leaked into the store: %+v", second)
	}
}
