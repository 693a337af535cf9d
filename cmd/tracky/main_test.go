package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/tracky/internal/project"
	"github.com/HendryAvila/tracky/internal/store"
)

// execute runs the root command with args in an isolated directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		configPath = ""
		for flag := range flagKeys {
			_ = rootCmd.PersistentFlags().Set(flag, "")
			rootCmd.PersistentFlags().Lookup(flag).Changed = false
		}
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "tracky v") {
		t.Errorf("output = %q", out)
	}
}

func TestRead_ProjectFromDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	data := &project.Data{
		PRDs: []project.PRD{{
			ID: "prd_1", Title: "From disk", Status: project.PRDDraft, Owner: "alice",
			CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z",
		}},
	}
	if err := store.NewJSONLStore(path).Save(context.Background(), data); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := execute(t, "read", "project://prd_1", "--data-file", path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(out, `"From disk"`) {
		t.Errorf("output should contain the PRD:\n%s", out)
	}
}

func TestRead_UnknownProject(t *testing.T) {
	_, err := execute(t, "read", "project://nope", "--backend", "memory")
	if err == nil {
		t.Fatal("expected error for unknown project")
	}
}

func TestRead_InvalidBackendFlag(t *testing.T) {
	_, err := execute(t, "read", "project://x", "--backend", "floppy")
	if err == nil || !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("err = %v, want store.backend validation error", err)
	}
}
