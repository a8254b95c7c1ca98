package ledger

import (
	"context"
	"sync"

	"github.com/davidahmann/renoguard/pkg/types"
)

type InMemoryStore struct {
	mu sync.Mutex

	entries []types.AuditLogEntry
	ids     map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{ids: make(map[string]struct{})}
}

func (s *InMemoryStore) Append(ctx context.Context, entry types.AuditLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckAppend(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[entry.EntryID]; ok {
		return ErrDuplicateEntry
	}
	s.ids[entry.EntryID] = struct{}{}
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

func (s *InMemoryStore) List(ctx context.Context, filter Filter) ([]types.AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []types.AuditLogEntry{}
	for _, entry := range s.entries {
		if !filter.Matches(entry) {
			continue
		}
		out = append(out, cloneEntry(entry))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func cloneEntry(entry types.AuditLogEntry) types.AuditLogEntry {
	entry.PayloadSummary.KeyFlags = append([]string(nil), entry.PayloadSummary.KeyFlags...)
	if entry.PayloadSummary.KeyFlags == nil {
		entry.PayloadSummary.KeyFlags = []string{}
	}
	if entry.Reasons != nil {
		entry.Reasons = append([]types.ReasonRef(nil), entry.Reasons...)
	}
	if entry.Alternatives != nil {
		entry.Alternatives = append([]types.AlternativeRef(nil), entry.Alternatives...)
	}
	return entry
}
