// Package store provides the persistence backends behind project.DataStore.
//
// Every backend persists the whole record set on each save (full snapshot
// rewrite). The JSON-lines file is the default; SQLite and Postgres store the
// same snapshot in a bucketed state table and additionally keep the
// per-project event log.
package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/HendryAvila/tracky/internal/project"
)

// Fingerprint identifies file content. Two equal fingerprints mean the file
// bytes are identical.
type Fingerprint [32]byte

// FingerprintOf returns the blake3 digest of b.
func FingerprintOf(b []byte) Fingerprint {
	return Fingerprint(blake3.Sum256(b))
}

// JSONLStore keeps the record set in a JSON-lines file: one object per line,
// each tagged with a "type" discriminator, PRDs first, then epics, then tasks.
// A missing file loads as an empty record set.
type JSONLStore struct {
	path string

	mu      sync.Mutex
	last    Fingerprint
	hasLast bool
}

// Compile-time interface check.
var _ project.DataStore = (*JSONLStore)(nil)

// NewJSONLStore creates a store for the file at path. The file is not touched
// until the first Load or Save.
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// Path returns the data file path.
func (s *JSONLStore) Path() string {
	return s.path
}

type prdRecord struct {
	Type project.EntityType `json:"type"`
	project.PRD
}

type epicRecord struct {
	Type project.EntityType `json:"type"`
	project.Epic
}

type taskRecord struct {
	Type project.EntityType `json:"type"`
	project.Task
}

// Load reads and decodes the whole file. It leaves the fingerprint alone:
// a read between an external edit and the watcher's check must not hide
// the edit.
func (s *JSONLStore) Load(_ context.Context) (*project.Data, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &project.Data{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return decodeLines(raw)
}

func decodeLines(raw []byte) (*project.Data, error) {
	data := &project.Data{}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var head struct {
			Type project.EntityType `json:"type"`
		}
		if err := json.Unmarshal(line, &head); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		switch head.Type {
		case project.EntityPRD:
			var r prdRecord
			if err := json.Unmarshal(line, &r); err != nil {
				return nil, fmt.Errorf("line %d: decoding prd: %w", lineNo, err)
			}
			data.PRDs = append(data.PRDs, r.PRD)
		case project.EntityEpic:
			var r epicRecord
			if err := json.Unmarshal(line, &r); err != nil {
				return nil, fmt.Errorf("line %d: decoding epic: %w", lineNo, err)
			}
			data.Epics = append(data.Epics, r.Epic)
		case project.EntityTask:
			var r taskRecord
			if err := json.Unmarshal(line, &r); err != nil {
				return nil, fmt.Errorf("line %d: decoding task: %w", lineNo, err)
			}
			data.Tasks = append(data.Tasks, r.Task)
		default:
			return nil, fmt.Errorf("line %d: unknown record type %q", lineNo, head.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning lines: %w", err)
	}
	return data, nil
}

// Save encodes the record set and replaces the file atomically
// (temp file in the same directory, then rename).
func (s *JSONLStore) Save(_ context.Context, data *project.Data) error {
	raw, err := encodeLines(data)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting file mode: %w", err)
	}

	// Record before the rename so a watcher woken by it sees our fingerprint.
	s.remember(raw)
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

func encodeLines(data *project.Data) ([]byte, error) {
	lines := make([]string, 0, len(data.PRDs)+len(data.Epics)+len(data.Tasks))
	add := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		lines = append(lines, string(b))
		return nil
	}

	for _, p := range data.PRDs {
		if err := add(prdRecord{Type: project.EntityPRD, PRD: p}); err != nil {
			return nil, err
		}
	}
	for _, e := range data.Epics {
		if err := add(epicRecord{Type: project.EntityEpic, Epic: e}); err != nil {
			return nil, err
		}
	}
	for _, t := range data.Tasks {
		if err := add(taskRecord{Type: project.EntityTask, Task: t}); err != nil {
			return nil, err
		}
	}
	return []byte(strings.Join(lines, "\n")), nil
}

func (s *JSONLStore) remember(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = FingerprintOf(raw)
	s.hasLast = true
}

// ExternallyModified reports whether the file content differs from what this
// store last wrote or last reported. A positive answer updates the remembered
// fingerprint, so each external edit is reported once.
func (s *JSONLStore) ExternallyModified() (bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		defer s.mu.Unlock()
		changed := s.hasLast
		s.hasLast = false
		return changed, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", s.path, err)
	}

	fp := FingerprintOf(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasLast && fp == s.last {
		return false, nil
	}
	s.last = fp
	s.hasLast = true
	return true, nil
}
