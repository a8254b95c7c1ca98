package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/pkg/types"
)

type Store struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and applies the embedded migrations.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ledger.Migrate(db, ledger.DBPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Append(ctx context.Context, entry types.AuditLogEntry) error {
	if err := ledger.CheckAppend(entry); err != nil {
		return err
	}
	day, _ := ledger.DayOf(entry)
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO renoguard_audit_entries(entry_id, occurred_at, day, target, result, policy_hash, digest, body_json)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT(entry_id) DO NOTHING`,
		entry.EntryID, entry.OccurredAt, day, string(entry.Target), string(entry.Result), entry.PolicyHash, entry.Digest, string(body))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrDuplicateEntry
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter ledger.Filter) ([]types.AuditLogEntry, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.Day != "" {
		args = append(args, filter.Day)
		where = append(where, fmt.Sprintf("day = $%d", len(args)))
	}
	if filter.Target != "" {
		args = append(args, string(filter.Target))
		where = append(where, fmt.Sprintf("target = $%d", len(args)))
	}
	query := `SELECT body_json::text FROM renoguard_audit_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.AuditLogEntry{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var entry types.AuditLogEntry
		if err := json.Unmarshal([]byte(body), &entry); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
