package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/tracky/internal/project"
)

func TestJSONLStore_RoundTrip(t *testing.T) {
	assertRoundTrip(t, NewJSONLStore(filepath.Join(t.TempDir(), "tasks.jsonl")))
}

func TestJSONLStore_MissingFileLoadsEmpty(t *testing.T) {
	s := NewJSONLStore(filepath.Join(t.TempDir(), "absent", "tasks.jsonl"))
	data, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(data.PRDs)+len(data.Epics)+len(data.Tasks) != 0 {
		t.Errorf("missing file loaded %+v", data)
	}
}

func TestJSONLStore_SaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tasks.jsonl")
	if err := NewJSONLStore(path).Save(context.Background(), sampleData()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("data file not created: %v", err)
	}
}

func TestJSONLStore_LineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	if err := NewJSONLStore(path).Save(context.Background(), sampleData()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(string(raw), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), raw)
	}
	prefixes := []string{`{"type":"prd","id":"prd_1"`, `{"type":"epic","id":"epic_1"`, `{"type":"task","id":"task_1"`}
	for i, p := range prefixes {
		if !strings.HasPrefix(lines[i], p) {
			t.Errorf("line %d = %s, want prefix %s", i+1, lines[i], p)
		}
	}
	if strings.HasSuffix(string(raw), "\n") {
		t.Error("file should not end with a newline")
	}
}

func TestJSONLStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "invalid json", content: "{not json", want: "line 1"},
		{name: "unknown type", content: `{"type":"prd","id":"p"}` + "\n" + `{"type":"milestone"}`, want: `line 2: unknown record type "milestone"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tasks.jsonl")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := NewJSONLStore(path).Load(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestJSONLStore_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	content := "\n" + `{"type":"prd","id":"p1","title":"A"}` + "\n\n  \n" + `{"type":"epic","id":"e1","prd_id":"p1"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := NewJSONLStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(data.PRDs) != 1 || len(data.Epics) != 1 || data.Epics[0].PRDID != "p1" {
		t.Errorf("loaded %+v", data)
	}
}

func TestJSONLStore_ExternallyModified(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	s := NewJSONLStore(path)

	if err := s.Save(ctx, sampleData()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if changed, err := s.ExternallyModified(); err != nil || changed {
		t.Fatalf("after own save: changed=%v err=%v, want false", changed, err)
	}

	data := sampleData()
	data.PRDs[0].Title = "Edited elsewhere"
	other := NewJSONLStore(path)
	if err := other.Save(ctx, data); err != nil {
		t.Fatalf("external Save: %v", err)
	}

	// Reading through the store must not hide the edit.
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if changed, err := s.ExternallyModified(); err != nil || !changed {
		t.Fatalf("after external edit: changed=%v err=%v, want true", changed, err)
	}
	if changed, _ := s.ExternallyModified(); changed {
		t.Error("the same external edit was reported twice")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if changed, _ := s.ExternallyModified(); !changed {
		t.Error("removing the file should count as a modification")
	}
	if changed, _ := s.ExternallyModified(); changed {
		t.Error("a missing file should be reported once")
	}
}

func TestFingerprintOf(t *testing.T) {
	a := FingerprintOf([]byte(`{"type":"prd"}`))
	b := FingerprintOf([]byte(`{"type":"prd"}`))
	c := FingerprintOf([]byte(`{"type":"epic"}`))
	if a != b {
		t.Error("equal content should fingerprint equally")
	}
	if a == c {
		t.Error("different content should fingerprint differently")
	}
}

func TestJSONLStore_ImplementsDataStore(t *testing.T) {
	var _ project.DataStore = NewJSONLStore("x")
}
