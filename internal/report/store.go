package report

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store keeps benchmark results in SQLite (modernc.org/sqlite, no CGO).
type Store struct {
	db *sql.DB
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Instance string
	Solver   string
	Limit    int
}

// OpenStore opens (or creates) the results database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

// Migrate applies the embedded SQL migrations not yet recorded.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts a result, assigning a ULID when ID is empty.
func (s *Store) SaveRun(ctx context.Context, r *Result) error {
	if r.ID == "" {
		r.ID = ulid.Make().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_id, created_at, instance, agents, obstacles, grid_size, solver, threshold, outcome,
			cost, sum_of_cost, makespan, expected, elapsed_ns, expanded, generated, conflicts, low_level_calls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.CreatedAt, r.Instance, r.Agents, r.Obstacles, r.GridSize, r.Solver, r.Threshold, r.Outcome,
		r.Cost, r.SumOfCost, r.Makespan, r.Expected, int64(r.Elapsed), r.Expanded, r.Generated, r.Conflicts, r.LowLevelCalls,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// ListRuns returns stored results, newest first.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]*Result, error) {
	query := `SELECT id, run_id, created_at, instance, agents, obstacles, grid_size, solver, threshold, outcome,
		cost, sum_of_cost, makespan, expected, elapsed_ns, expanded, generated, conflicts, low_level_calls
		FROM runs`
	var (
		where []string
		args  []any
	)
	if filter.Instance != "" {
		where = append(where, "instance = ?")
		args = append(args, filter.Instance)
	}
	if filter.Solver != "" {
		where = append(where, "solver = ?")
		args = append(args, filter.Solver)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// ULIDs sort by creation time
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		r := &Result{}
		var elapsed int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.CreatedAt, &r.Instance, &r.Agents, &r.Obstacles, &r.GridSize,
			&r.Solver, &r.Threshold, &r.Outcome, &r.Cost, &r.SumOfCost, &r.Makespan, &r.Expected,
			&elapsed, &r.Expanded, &r.Generated, &r.Conflicts, &r.LowLevelCalls); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Elapsed = time.Duration(elapsed)
		out = append(out, r)
	}
	return out, rows.Err()
}
