package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultHistoryTable = "schema_history"

	kindMigration = "migration"
	kindSeed      = "seed"
)

// Runner applies SQL migration and seed files from disk and records what
// it ran in a single history table.
type Runner struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
	historyTable  string
}

// Option configures Runner.
type Option func(*Runner)

// WithHistoryTable overrides the bookkeeping table name.
func WithHistoryTable(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.historyTable = name
		}
	}
}

// NewRunner constructs a Runner over an open database handle.
func NewRunner(db *sql.DB, migrationsDir, seedsDir string, opts ...Option) *Runner {
	r := &Runner{
		db:            db,
		migrationsDir: migrationsDir,
		seedsDir:      seedsDir,
		historyTable:  defaultHistoryTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Up applies every pending .up.sql file in lexical order.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return 0, err
	}
	done, err := r.applied(ctx, kindMigration)
	if err != nil {
		return 0, err
	}
	files, err := listSQL(r.migrationsDir, ".up.sql")
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, f := range files {
		if done[f.name] {
			continue
		}
		if err := r.runFile(ctx, f.path); err != nil {
			return applied, fmt.Errorf("migration %s: %w", f.name, err)
		}
		if err := r.record(ctx, kindMigration, f.name); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Down rolls back the most recently applied migration using its .down.sql
// counterpart.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.ensureHistory(ctx); err != nil {
		return err
	}
	names, err := r.ordered(ctx, kindMigration)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("nothing to roll back")
	}
	last := names[len(names)-1]
	down := strings.TrimSuffix(filepath.Join(r.migrationsDir, last), ".up.sql") + ".down.sql"
	if _, err := os.Stat(down); err != nil {
		return fmt.Errorf("no down file for %s", last)
	}
	if err := r.runFile(ctx, down); err != nil {
		return fmt.Errorf("rollback %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where kind = $1 and name = $2`, r.historyTable),
		kindMigration, last)
	return err
}

// Status describes one file known to the runner.
type Status struct {
	Name    string
	Applied bool
}

// Status lists every migration file with its applied state.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return nil, err
	}
	done, err := r.applied(ctx, kindMigration)
	if err != nil {
		return nil, err
	}
	files, err := listSQL(r.migrationsDir, ".up.sql")
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(files))
	for _, f := range files {
		out = append(out, Status{Name: f.name, Applied: done[f.name]})
	}
	return out, nil
}

// Seed applies every pending seed file once.
func (r *Runner) Seed(ctx context.Context) (int, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return 0, err
	}
	done, err := r.applied(ctx, kindSeed)
	if err != nil {
		return 0, err
	}
	files, err := listSQL(r.seedsDir, ".sql")
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, f := range files {
		if done[f.name] {
			continue
		}
		if err := r.runFile(ctx, f.path); err != nil {
			return applied, fmt.Errorf("seed %s: %w", f.name, err)
		}
		if err := r.record(ctx, kindSeed, f.name); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		create table if not exists %s (
			kind       text not null,
			name       text not null,
			applied_at timestamptz not null default now(),
			primary key (kind, name)
		);`, r.historyTable)
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// runFile executes one file inside a single transaction.
func (r *Runner) runFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) record(ctx context.Context, kind, name string) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(kind, name, applied_at) values ($1, $2, $3)`, r.historyTable),
		kind, name, time.Now().UTC())
	return err
}

func (r *Runner) applied(ctx context.Context, kind string) (map[string]bool, error) {
	names, err := r.ordered(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

func (r *Runner) ordered(ctx context.Context, kind string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s where kind = $1 order by applied_at asc, name asc`, r.historyTable), kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

type sqlFile struct {
	name string
	path string
}

func listSQL(dir, suffix string) ([]sqlFile, error) {
	if dir == "" {
		return nil, nil
	}
	var files []sqlFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			files = append(files, sqlFile{name: d.Name(), path: path})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// splitStatements breaks a script into individual statements. It skips
// line comments and keeps semicolons inside single-quoted and
// dollar-quoted strings intact.
func splitStatements(script string) []string {
	var (
		stmts   []string
		current strings.Builder
		inQuote bool
		dollar  bool
	)
	lines := strings.Split(script, "\n")
	for _, line := range lines {
		if !inQuote && !dollar && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for _, r := range line {
			current.WriteRune(r)
			switch {
			case r == '\'' && !dollar:
				inQuote = !inQuote
			case r == '$' && !inQuote:
				if strings.HasSuffix(current.String(), "$$") {
					dollar = !dollar
				}
			case r == ';' && !inQuote && !dollar:
				if s := strings.TrimSpace(current.String()); s != ";" {
					stmts = append(stmts, s)
				}
				current.Reset()
			}
		}
		current.WriteRune('\n')
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
