// Package memory is an in-process Mirror used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"gastos/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows []core.Expense

	// FailNext makes the next Append return an error. Test hook.
	FailNext bool
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNext {
		s.FailNext = false
		return "", fmt.Errorf("append refused")
	}
	s.rows = append(s.rows, e)
	return fmt.Sprintf("memory!A%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, len(s.rows))
	copy(out, s.rows)
	return out
}
