package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

type DBDriver string

const (
	DBSQLite   DBDriver = "sqlite"
	DBPostgres DBDriver = "postgres"
)

// Migration is one embedded schema step. Version is the file name without
// its .sql suffix; versions apply in lexical order.
type Migration struct {
	Version string
	SQL     string
}

type dialect struct {
	dir         string
	table       string
	createTable string
	record      string
	appliedAt   func(time.Time) any
}

var dialects = map[DBDriver]dialect{
	DBSQLite: {
		dir:         "migrations/sqlite",
		table:       "schema_migrations",
		createTable: `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TEXT NOT NULL)`,
		record:      `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?) ON CONFLICT(version) DO NOTHING`,
		appliedAt:   func(t time.Time) any { return t.Format(time.RFC3339) },
	},
	DBPostgres: {
		dir:         "migrations/postgres",
		table:       "renoguard_schema_migrations",
		createTable: `CREATE TABLE IF NOT EXISTS renoguard_schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`,
		record:      `INSERT INTO renoguard_schema_migrations(version, applied_at) VALUES($1, $2) ON CONFLICT(version) DO NOTHING`,
		appliedAt:   func(t time.Time) any { return t },
	},
}

func dialectFor(driver DBDriver) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported db driver: %s", driver)
	}
	return d, nil
}

// Migrations returns the embedded steps for driver in apply order.
func Migrations(driver DBDriver) ([]Migration, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	entries, err := migrationsFS.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, err := migrationsFS.ReadFile(path.Join(d.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Version: strings.TrimSuffix(e.Name(), ".sql"), SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func Migrate(db *sql.DB, driver DBDriver) error {
	return MigrateContext(context.Background(), db, driver)
}

// MigrateContext applies every embedded step for driver that is not yet
// recorded. Each step runs in its own transaction together with its record,
// so reruns are no-ops and a failed step leaves no trace.
func MigrateContext(ctx context.Context, db *sql.DB, driver DBDriver) error {
	if db == nil {
		return errors.New("missing db")
	}
	d, err := dialectFor(driver)
	if err != nil {
		return err
	}
	steps, err := Migrations(driver)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, d.createTable); err != nil {
		return fmt.Errorf("create %s: %w", d.table, err)
	}

	now := time.Now().UTC()
	for _, step := range steps {
		if err := applyStep(ctx, db, d, step, now); err != nil {
			return fmt.Errorf("apply migration %s: %w", step.Version, err)
		}
	}
	return nil
}

func applyStep(ctx context.Context, db *sql.DB, d dialect, step Migration, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, d.record, step.Version, d.appliedAt(now))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return err
	}
	return tx.Commit()
}
