package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/HendryAvila/tracky/internal/project"
)

// MemoryStore keeps the record set in process. Load and Save deep-copy so
// callers never share slices with the stored snapshot.
type MemoryStore struct {
	mu      sync.RWMutex
	payload []byte
}

// Compile-time interface check.
var _ project.DataStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored record set.
func (s *MemoryStore) Load(_ context.Context) (*project.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := &project.Data{}
	if s.payload == nil {
		return data, nil
	}
	if err := json.Unmarshal(s.payload, data); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return data, nil
}

// Save replaces the stored record set with a copy of data.
func (s *MemoryStore) Save(_ context.Context, data *project.Data) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	s.mu.Lock()
	s.payload = b
	s.mu.Unlock()
	return nil
}
