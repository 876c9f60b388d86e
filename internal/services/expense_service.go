// Package services orchestrates writes across the local store and the AMQP
// pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gastos/internal/core"
)

// ErrNoBroker is returned when an operation needs the message pipeline but no
// broker is configured.
var ErrNoBroker = errors.New("no message broker configured")

// Store is the write-side slice of the repository the service needs.
type Store interface {
	Insert(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteLast(ctx context.Context) (core.Expense, error)
}

// Publisher sends pipeline messages. May be absent when AMQP is not
// configured.
type Publisher interface {
	PublishEntry(ctx context.Context, text string) error
	PublishSync(ctx context.Context, id int64) error
}

// ExpenseService writes locally first; queueing the mirror message is best
// effort and never fails the caller.
type ExpenseService struct {
	store     Store
	publisher Publisher
}

func NewExpenseService(store Store, publisher Publisher) *ExpenseService {
	return &ExpenseService{store: store, publisher: publisher}
}

// Create validates and persists an expense, then queues a mirror sync
// message. The returned expense carries the assigned ID.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	saved, err := s.store.Insert(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "no publisher configured, skipping sync message", "id", saved.ID)
		return saved, nil
	}
	if err := s.publisher.PublishSync(ctx, saved.ID); err != nil {
		// The row stays pending; the worker's catch-up pass will find it.
		slog.ErrorContext(ctx, "failed to publish sync message", "id", saved.ID, "error", err)
	}
	return saved, nil
}

// UndoLast removes the most recently created expense and returns it.
func (s *ExpenseService) UndoLast(ctx context.Context) (core.Expense, error) {
	deleted, err := s.store.DeleteLast(ctx)
	if err != nil {
		return core.Expense{}, fmt.Errorf("undo last expense: %w", err)
	}
	return deleted, nil
}

// SubmitEntry queues a raw entry line for asynchronous ingestion.
func (s *ExpenseService) SubmitEntry(ctx context.Context, text string) error {
	if s.publisher == nil {
		return fmt.Errorf("entry ingestion unavailable: %w", ErrNoBroker)
	}
	if err := s.publisher.PublishEntry(ctx, text); err != nil {
		return fmt.Errorf("queue entry: %w", err)
	}
	return nil
}
