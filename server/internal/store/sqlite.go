package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	probe        TEXT NOT NULL,
	variant      TEXT NOT NULL,
	params_json  TEXT NOT NULL,
	records_json TEXT NOT NULL,
	final_v      REAL NOT NULL,
	final_state  TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
`

// SQLite archives runs in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and runs migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save inserts r, replacing any archived run with the same ID.
func (s *SQLite) Save(ctx context.Context, r *Run) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("store: marshal params: %w", err)
	}
	records, err := json.Marshal(r.Records)
	if err != nil {
		return fmt.Errorf("store: marshal records: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, kind, probe, variant, params_json, records_json, final_v, final_state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			probe = excluded.probe,
			variant = excluded.variant,
			params_json = excluded.params_json,
			records_json = excluded.records_json,
			final_v = excluded.final_v,
			final_state = excluded.final_state,
			created_at = excluded.created_at`,
		r.ID, r.Name, r.Kind, r.Probe, r.Variant, string(params), string(records),
		r.Final.V, r.Final.State, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: save run %s: %w", r.ID, err)
	}
	return nil
}

const selectRun = `SELECT id, name, kind, probe, variant, params_json, records_json, created_at FROM runs`

// Get returns the archived run with the given ID, or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit archived runs, newest first.
func (s *SQLite) List(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r               Run
		params, records string
		createdAt       int64
	)
	if err := sc.Scan(&r.ID, &r.Name, &r.Kind, &r.Probe, &r.Variant, &params, &records, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if err := json.Unmarshal([]byte(records), &r.Records); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	if n := len(r.Records); n > 0 {
		r.Final = r.Records[n-1]
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return &r, nil
}
