package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidahmann/renoguard/pkg/types"
)

var (
	ErrDuplicateEntry = errors.New("audit entry already recorded")
	ErrDigestMismatch = errors.New("audit entry digest mismatch")
	ErrInvalidEntry   = errors.New("invalid audit entry")
)

// DayLayout names one audit partition, always in UTC.
const DayLayout = "2006-01-02"

// Store is append-only; entries are never updated or removed.
type Store interface {
	Append(ctx context.Context, entry types.AuditLogEntry) error
	List(ctx context.Context, filter Filter) ([]types.AuditLogEntry, error)
}

// Filter narrows List. Zero values match everything; Limit <= 0 means no
// limit.
type Filter struct {
	Day    string
	Target types.Target
	Limit  int
}

func (f Filter) Validate() error {
	if f.Day == "" {
		return nil
	}
	if _, err := time.Parse(DayLayout, f.Day); err != nil {
		return fmt.Errorf("%w: day %q is not YYYY-MM-DD", ErrInvalidEntry, f.Day)
	}
	return nil
}

func (f Filter) Matches(entry types.AuditLogEntry) bool {
	if f.Target != "" && entry.Target != f.Target {
		return false
	}
	if f.Day != "" {
		day, err := DayOf(entry)
		if err != nil || day != f.Day {
			return false
		}
	}
	return true
}

// DayOf returns the UTC partition day of entry.
func DayOf(entry types.AuditLogEntry) (string, error) {
	at, err := time.Parse(time.RFC3339Nano, entry.OccurredAt)
	if err != nil {
		return "", fmt.Errorf("%w: occurredAt %q", ErrInvalidEntry, entry.OccurredAt)
	}
	return at.UTC().Format(DayLayout), nil
}

// CheckAppend rejects entries a backend must not persist.
func CheckAppend(entry types.AuditLogEntry) error {
	if entry.EntryID == "" {
		return fmt.Errorf("%w: missing entryId", ErrInvalidEntry)
	}
	if _, err := DayOf(entry); err != nil {
		return err
	}
	return VerifyEntry(entry)
}
