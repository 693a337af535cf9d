package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/HendryAvila/tracky/internal/live"
	"github.com/HendryAvila/tracky/internal/project"
)

const (
	postgresDriver = "pgx"
	// defaultPostgresDSN is used when no DSN is configured.
	defaultPostgresDSN = "postgres://localhost/tracky?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// PostgresStore persists the record set into the same bucketed state table
// as SQLiteStore, with JSONB payloads, and keeps the event log alongside.
type PostgresStore struct {
	db        *sql.DB
	retention int
}

// Compile-time interface checks.
var (
	_ project.DataStore = (*PostgresStore)(nil)
	_ live.EventLog     = (*PostgresStore)(nil)
)

// NewPostgresStore connects, pings and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, retention int) (*PostgresStore, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensurePostgresSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db, retention: retention}, nil
}

func ensurePostgresSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state (
			bucket TEXT PRIMARY KEY,
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			seq BIGSERIAL PRIMARY KEY,
			prd_id TEXT NOT NULL,
			payload JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_prd ON events(prd_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// Load reads every bucket of the state table.
func (s *PostgresStore) Load(ctx context.Context) (*project.Data, error) {
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
func (s *PostgresStore) Save(ctx context.Context, data *project.Data) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, bucket := range snapshotBuckets {
		payload, err := encodeBucket(data, bucket)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`,
			bucket, payload); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Append stores one event and prunes the project's log to the retention bound.
func (s *PostgresStore) Append(ctx context.Context, prdID string, evt live.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events(prd_id, payload) VALUES($1, $2)`, prdID, payload); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if s.retention > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM events
			WHERE prd_id = $1
			  AND seq NOT IN (
				SELECT seq FROM events WHERE prd_id = $1 ORDER BY seq DESC LIMIT $2
			  )`, prdID, s.retention); err != nil {
			return fmt.Errorf("prune events: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Recent returns up to limit of the project's newest events, oldest first.
func (s *PostgresStore) Recent(ctx context.Context, prdID string, limit int) ([]live.Event, error) {
	if limit <= 0 {
		return []live.Event{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload::text FROM (
			SELECT seq, payload FROM events WHERE prd_id = $1 ORDER BY seq DESC LIMIT $2
		) recent ORDER BY seq ASC`, prdID, limit)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}
