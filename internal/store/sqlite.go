package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/HendryAvila/tracky/internal/live"
	"github.com/HendryAvila/tracky/internal/project"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore persists the record set as JSON arrays in a bucketed state
// table, rewritten in one transaction per save. It also keeps the
// per-project event log in an events table.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	retention int
}

// Compile-time interface checks.
var (
	_ project.DataStore = (*SQLiteStore)(nil)
	_ live.EventLog     = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at path. retention bounds
// the number of events kept per project; zero or less keeps everything.
func NewSQLiteStore(path string, retention int) (*SQLiteStore, error) {
	if path == "" {
		path = "tracky.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("sqlite: create dirs: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// One connection keeps per-connection pragmas in force for every query.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, path: path, retention: retention}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS state (
			bucket  TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			seq     INTEGER PRIMARY KEY AUTOINCREMENT,
			prd_id  TEXT NOT NULL,
			payload TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_prd ON events(prd_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Load reads every bucket of the state table.
func (s *SQLiteStore) Load(ctx context.Context) (*project.Data, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	data := &project.Data{}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if err := decodeBucket(data, bucket, payload); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return data, nil
}

// Save upserts every bucket in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, data *project.Data) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, bucket := range snapshotBuckets {
		payload, err := encodeBucket(data, bucket)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			bucket, payload); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- Event log ---

// Append stores one event and prunes the project's log to the retention bound.
func (s *SQLiteStore) Append(ctx context.Context, prdID string, evt live.Event) (retErr error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events(prd_id, payload) VALUES(?, ?)`, prdID, string(payload)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if s.retention > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM events
			WHERE prd_id = ?
			  AND seq NOT IN (
				SELECT seq FROM events WHERE prd_id = ? ORDER BY seq DESC LIMIT ?
			  )`, prdID, prdID, s.retention); err != nil {
			return fmt.Errorf("prune events: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit of the project's newest events, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, prdID string, limit int) ([]live.Event, error) {
	if limit <= 0 {
		return []live.Event{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM (
			SELECT seq, payload FROM events WHERE prd_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, prdID, limit)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]live.Event, error) {
	events := []live.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var evt live.Event
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
