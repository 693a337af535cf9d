package live

import (
	"context"
	"sync"

	"github.com/HendryAvila/tracky/internal/project"
)

// UpdateType classifies an Update.
type UpdateType string

const (
	// UpdateFull is the initial push on subscribe.
	UpdateFull UpdateType = "full"
	// UpdateRefresh carries a rebuilt view after an out-of-process edit.
	UpdateRefresh UpdateType = "refresh"
)

// Update is what a subscriber callback receives. Mutation-triggered updates
// carry the action as Type and the entity fields; full and refresh updates
// carry the view in Data.
type Update struct {
	Type       UpdateType         `json:"type"`
	URI        string             `json:"uri"`
	Data       any                `json:"data,omitempty"`
	EntityType project.EntityType `json:"entityType,omitempty"`
	Entity     project.Entity     `json:"entity,omitempty"`
	OldEntity  project.Entity     `json:"oldEntity,omitempty"`
	Timestamp  string             `json:"timestamp"`
	Changes    Changes            `json:"changes"`
	Error      string             `json:"error,omitempty"`
}

// Event is one entry of a project's event stream.
type Event struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor"`
	Data      map[string]any `json:"data"`
}

// EventLog is an append-only, bounded, per-project log of events.
type EventLog interface {
	Append(ctx context.Context, prdID string, evt Event) error
	// Recent returns up to limit of the newest events, oldest first.
	Recent(ctx context.Context, prdID string, limit int) ([]Event, error)
}

// MemoryEventLog keeps a bounded ring of events per project in process.
type MemoryEventLog struct {
	mu        sync.Mutex
	retention int
	logs      map[string][]Event
}

// Compile-time interface check.
var _ EventLog = (*MemoryEventLog)(nil)

// NewMemoryEventLog keeps at most retention events per project; zero or less
// keeps everything.
func NewMemoryEventLog(retention int) *MemoryEventLog {
	return &MemoryEventLog{retention: retention, logs: make(map[string][]Event)}
}

// Append adds evt to the project's log, dropping the oldest past retention.
func (l *MemoryEventLog) Append(_ context.Context, prdID string, evt Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	log := append(l.logs[prdID], evt)
	if l.retention > 0 && len(log) > l.retention {
		log = append([]Event(nil), log[len(log)-l.retention:]...)
	}
	l.logs[prdID] = log
	return nil
}

// Recent returns a copy of up to limit of the newest events, oldest first.
func (l *MemoryEventLog) Recent(_ context.Context, prdID string, limit int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	log := l.logs[prdID]
	if limit < len(log) {
		log = log[len(log)-max(limit, 0):]
	}
	return append([]Event{}, log...), nil
}
