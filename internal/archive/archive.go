// Package archive persists warm-start memories and evaluation run records in
// a local SQLite database, so repeated evaluations of similar cases can start
// from vectors that worked before.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/caldera/internal/indicator"
)

// ErrNotFound is returned when no memory is stored under a name.
var ErrNotFound = errors.New("memory not found")

// schema is executed on every open.
const schema = `
CREATE TABLE IF NOT EXISTS memories (
    name       TEXT PRIMARY KEY,
    max_demand REAL NOT NULL,
    brackets   INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memory_entries (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    memory    TEXT NOT NULL REFERENCES memories(name) ON DELETE CASCADE,
    bracket   INTEGER NOT NULL,
    structure TEXT NOT NULL,
    vals      TEXT NOT NULL,
    fitness   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS memory_entries_by_memory ON memory_entries(memory, bracket);

CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    case_name  TEXT NOT NULL,
    structure  TEXT NOT NULL,
    trials     INTEGER NOT NULL,
    front      INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
`

// Store is a SQLite-backed archive in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveMemory replaces the memory stored under name with the contents of m.
func (s *Store) SaveMemory(ctx context.Context, name string, m *indicator.Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const upsert = `
		INSERT INTO memories (name, max_demand, brackets, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			max_demand = excluded.max_demand,
			brackets = excluded.brackets,
			updated_at = CURRENT_TIMESTAMP`
	brackets := len(m.Medians())
	if _, err := tx.ExecContext(ctx, upsert, name, m.MaxDemand(), brackets); err != nil {
		return fmt.Errorf("archive: save memory %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_entries WHERE memory = ?`, name); err != nil {
		return fmt.Errorf("archive: clear memory %q: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO memory_entries (memory, bracket, structure, vals, fitness)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("archive: prepare entries: %w", err)
	}
	defer stmt.Close()

	for b := range brackets {
		for _, e := range m.Entries(b) {
			vals, err := json.Marshal(e.Values)
			if err != nil {
				return fmt.Errorf("archive: encode values: %w", err)
			}
			fitness, err := json.Marshal(e.Fitness)
			if err != nil {
				return fmt.Errorf("archive: encode fitness: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, name, b, e.Structure, string(vals), string(fitness)); err != nil {
				return fmt.Errorf("archive: save entry: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

// LoadMemory rebuilds the memory stored under name. rng seeds the memory's
// tie-breaks; nil picks a random seed.
func (s *Store) LoadMemory(ctx context.Context, name string, rng *rand.Rand) (*indicator.Memory, error) {
	var (
		maxDemand float64
		brackets  int
	)
	err := s.db.QueryRowContext(ctx, `SELECT max_demand, brackets FROM memories WHERE name = ?`, name).
		Scan(&maxDemand, &brackets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: load memory %q: %w", name, err)
	}
	m, err := indicator.NewMemory(maxDemand, brackets, rng)
	if err != nil {
		return nil, fmt.Errorf("archive: memory %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bracket, structure, vals, fitness FROM memory_entries
		WHERE memory = ? ORDER BY bracket, id`, name)
	if err != nil {
		return nil, fmt.Errorf("archive: load entries: %w", err)
	}
	defer rows.Close()

	byBracket := make(map[int][]indicator.Entry)
	for rows.Next() {
		var (
			b             int
			e             indicator.Entry
			vals, fitness string
		)
		if err := rows.Scan(&b, &e.Structure, &vals, &fitness); err != nil {
			return nil, fmt.Errorf("archive: scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(vals), &e.Values); err != nil {
			return nil, fmt.Errorf("archive: decode values: %w", err)
		}
		if err := json.Unmarshal([]byte(fitness), &e.Fitness); err != nil {
			return nil, fmt.Errorf("archive: decode fitness: %w", err)
		}
		byBracket[b] = append(byBracket[b], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: load entries: %w", err)
	}
	for b, es := range byBracket {
		if err := m.Restore(b, es); err != nil {
			return nil, fmt.Errorf("archive: memory %q: %w", name, err)
		}
	}
	return m, nil
}

// DeleteMemory removes a memory and its entries. Deleting an absent memory
// is not an error.
func (s *Store) DeleteMemory(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE name = ?`, name); err != nil {
		return fmt.Errorf("archive: delete memory %q: %w", name, err)
	}
	return nil
}

// Memories lists stored memory names in order.
func (s *Store) Memories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM memories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("archive: list memories: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("archive: scan memory name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// runTimeLayout sorts lexically in time order.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Run records one evaluation run.
type Run struct {
	ID        string
	Case      string
	Structure string
	Trials    int
	Front     int
	CreatedAt time.Time
}

// RecordRun stores a run record.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	const q = `
		INSERT INTO runs (id, case_name, structure, trials, front, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, r.ID, r.Case, r.Structure, r.Trials, r.Front, r.CreatedAt.UTC().Format(runTimeLayout)); err != nil {
		return fmt.Errorf("archive: record run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns the most recent runs of a case, newest first.
func (s *Store) Runs(ctx context.Context, caseName string, limit int) ([]Run, error) {
	const q = `
		SELECT id, case_name, structure, trials, front, created_at FROM runs
		WHERE case_name = ? ORDER BY created_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, caseName, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			r  Run
			ts string
		)
		if err := rows.Scan(&r.ID, &r.Case, &r.Structure, &r.Trials, &r.Front, &ts); err != nil {
			return nil, fmt.Errorf("archive: scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(runTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("archive: run %s timestamp: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
