// Package memory keeps KPI tabs in process. It backs tests and the worker's
// dry-run mode.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "academy/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	tabs   map[int][]ports.KPIRow
	writes int
}

var _ ports.KPISheet = (*Store)(nil)

func New() *Store {
	return &Store{tabs: make(map[int][]ports.KPIRow)}
}

// WriteKPIs replaces the year's rows and returns a synthetic range.
func (s *Store) WriteKPIs(_ context.Context, year int, rows []ports.KPIRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[year] = append([]ports.KPIRow(nil), rows...)
	s.writes++
	return fmt.Sprintf("mem:%d!A1:F%d", year, len(rows)+1), nil
}

func (s *Store) ReadKPIs(_ context.Context, year int) ([]ports.KPIRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[year]
	if !ok {
		return nil, nil
	}
	return append([]ports.KPIRow(nil), rows...), nil
}

// Writes returns how many times WriteKPIs was called.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
