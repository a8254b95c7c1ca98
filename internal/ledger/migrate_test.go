package ledger

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateSQLiteIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrate_idempotent?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(db, DBSQLite); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='audit_entries'`).Scan(&name); err != nil {
		t.Fatalf("expected audit_entries table: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	steps, err := Migrations(DBSQLite)
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if count != len(steps) {
		t.Fatalf("expected %d recorded migrations, got %d", len(steps), count)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	for _, driver := range []DBDriver{DBSQLite, DBPostgres} {
		steps, err := Migrations(driver)
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		if len(steps) == 0 || steps[0].Version != "0001_audit_entries" || steps[0].SQL == "" {
			t.Fatalf("%s: unexpected steps %+v", driver, steps)
		}
	}
}

func TestMigrateRejectsBadInput(t *testing.T) {
	if _, err := Migrations(DBDriver("nope")); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if err := Migrate(nil, DBSQLite); err == nil {
		t.Fatalf("expected error for nil db")
	}

	db, err := sql.Open("sqlite", "file:migrate_bad_driver?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, DBDriver("nope")); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestMigrateContextCanceled(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrate_canceled?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := MigrateContext(ctx, db, DBSQLite); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
