// Package filestore keeps audit entries as one JSON line each in daily files
// named decision-YYYY-MM-DD.jsonl.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/pkg/types"
)

const (
	dirMode  os.FileMode = 0o750
	fileMode os.FileMode = 0o600

	filePrefix = "decision-"
	fileSuffix = ".jsonl"

	maxLineBytes = 1 << 20
)

type Store struct {
	dir string

	mu   sync.Mutex
	seen map[string]map[string]struct{} // day -> entry ids
}

func New(dir string) *Store {
	return &Store{dir: dir, seen: make(map[string]map[string]struct{})}
}

func (s *Store) Dir() string { return s.dir }

// FileName returns the file that holds entries for day.
func FileName(day string) string {
	return filePrefix + day + fileSuffix
}

func (s *Store) Append(ctx context.Context, entry types.AuditLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ledger.CheckAppend(entry); err != nil {
		return err
	}
	day, _ := ledger.DayOf(entry)
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.dayIndex(day)
	if err != nil {
		return err
	}
	if _, ok := ids[entry.EntryID]; ok {
		return ledger.ErrDuplicateEntry
	}

	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.dir, FileName(day)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	ids[entry.EntryID] = struct{}{}
	return nil
}

// dayIndex loads the entry ids already written for day. Caller holds s.mu.
func (s *Store) dayIndex(day string) (map[string]struct{}, error) {
	if ids, ok := s.seen[day]; ok {
		return ids, nil
	}
	ids := make(map[string]struct{})
	lines, err := s.readDay(day)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if l.Err == nil {
			ids[l.Entry.EntryID] = struct{}{}
		}
	}
	s.seen[day] = ids
	return ids, nil
}

func (s *Store) List(ctx context.Context, filter ledger.Filter) ([]types.AuditLogEntry, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	days := []string{filter.Day}
	if filter.Day == "" {
		var err error
		if days, err = s.Days(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []types.AuditLogEntry{}
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines, err := s.readDay(day)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			if l.Err != nil {
				return nil, fmt.Errorf("%s line %d: %w", FileName(day), l.Number, l.Err)
			}
			if !filter.Matches(l.Entry) {
				continue
			}
			out = append(out, l.Entry)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// Days lists the days that have a file, oldest first.
func (s *Store) Days() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if (ledger.Filter{Day: day}).Validate() != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

// Line is one physical line of a day file. Err is set when the line does not
// decode or its digest does not match.
type Line struct {
	Number int
	Entry  types.AuditLogEntry
	Err    error
}

// Lines reads every line recorded for day, including damaged ones.
func (s *Store) Lines(ctx context.Context, day string) ([]Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := (ledger.Filter{Day: day}).Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readDay(day)
}

func (s *Store) readDay(day string) ([]Line, error) {
	f, err := os.Open(filepath.Join(s.dir, FileName(day)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Line
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	number := 0
	for scanner.Scan() {
		number++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		line := Line{Number: number}
		if err := json.Unmarshal(raw, &line.Entry); err != nil {
			line.Err = fmt.Errorf("%w: %v", ledger.ErrInvalidEntry, err)
		} else {
			line.Err = ledger.VerifyEntry(line.Entry)
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
