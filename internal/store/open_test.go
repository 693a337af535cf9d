package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/tracky/internal/project"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name       string
		opts       Options
		wantJSONL  bool
		wantEvents bool
	}{
		{name: "default is jsonl", opts: Options{DataFile: filepath.Join(dir, "a.jsonl")}, wantJSONL: true},
		{name: "jsonl", opts: Options{Backend: BackendJSONL, DataFile: filepath.Join(dir, "b.jsonl")}, wantJSONL: true},
		{name: "memory", opts: Options{Backend: BackendMemory}},
		{name: "sqlite", opts: Options{Backend: BackendSQLite, SQLitePath: filepath.Join(dir, "c.db"), Retention: 10}, wantEvents: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened, err := Open(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer func() {
				if err := opened.Close(); err != nil {
					t.Errorf("Close: %v", err)
				}
			}()
			if (opened.JSONL != nil) != tt.wantJSONL {
				t.Errorf("JSONL set = %v, want %v", opened.JSONL != nil, tt.wantJSONL)
			}
			if (opened.Events != nil) != tt.wantEvents {
				t.Errorf("Events set = %v, want %v", opened.Events != nil, tt.wantEvents)
			}
			assertRoundTrip(t, opened.Store)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()
	for _, opts := range []Options{
		{Backend: "mongo"},
		{Backend: BackendJSONL},
	} {
		if _, err := Open(ctx, opts); !errors.Is(err, project.ErrBadInput) {
			t.Errorf("Open(%+v) err = %v, want ErrBadInput", opts, err)
		}
	}
}
