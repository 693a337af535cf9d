package store

import (
	"context"
	"fmt"

	"github.com/HendryAvila/tracky/internal/live"
	"github.com/HendryAvila/tracky/internal/project"
)

// Backend names accepted by Open.
const (
	BackendJSONL    = "jsonl"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DataFile    string
	SQLitePath  string
	PostgresDSN string
	// Retention bounds the per-project event log of database backends.
	Retention int
}

// Opened is what Open returns. Events is nil for backends without a durable
// event log; callers fall back to an in-memory one.
type Opened struct {
	Store  project.DataStore
	Events live.EventLog
	// JSONL is set when the backend is the JSON-lines file, for the watcher.
	JSONL *JSONLStore
	Close func() error
}

// Open constructs the configured backend.
func Open(ctx context.Context, opts Options) (*Opened, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "", BackendJSONL:
		if opts.DataFile == "" {
			return nil, fmt.Errorf("%w: jsonl backend needs a data file", project.ErrBadInput)
		}
		s := NewJSONLStore(opts.DataFile)
		return &Opened{Store: s, JSONL: s, Close: noop}, nil

	case BackendMemory:
		return &Opened{Store: NewMemoryStore(), Close: noop}, nil

	case BackendSQLite:
		s, err := NewSQLiteStore(opts.SQLitePath, opts.Retention)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: s, Events: s, Close: s.Close}, nil

	case BackendPostgres:
		s, err := NewPostgresStore(ctx, opts.PostgresDSN, opts.Retention)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: s, Events: s, Close: s.Close}, nil
	}
	return nil, fmt.Errorf("%w: unknown store backend %q: must be one of: jsonl, sqlite, postgres, memory",
		project.ErrBadInput, opts.Backend)
}
