// Package worker runs the ingest and mirror pipeline: it parses queued entry
// lines into stored expenses and mirrors stored rows to the backup sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/parser"
	"gastos/internal/sheets"
	"gastos/internal/storage"
)

// Store is the slice of the repository the worker needs.
type Store interface {
	Insert(ctx context.Context, e core.Expense) (core.Expense, error)
	Get(ctx context.Context, id int64) (core.Expense, error)
	PendingSync(ctx context.Context, limit int) ([]core.Expense, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// Queue is the broker surface the worker consumes from and publishes to.
type Queue interface {
	ConsumeEntries(ctx context.Context, handler func(*amqp.EntryMessage) error) error
	ConsumeSync(ctx context.Context, handler func(*amqp.SyncMessage) error) error
	PublishSync(ctx context.Context, id int64) error
	Redial(ctx context.Context) error
}

type Worker struct {
	store     Store
	mirror    sheets.Mirror
	queue     Queue
	batchSize int
	interval  time.Duration
	loc       *time.Location
}

// New builds a worker. Entry timestamps are interpreted in loc, the zone
// expenses are attributed to invoice months by.
func New(store Store, mirror sheets.Mirror, queue Queue, batchSize int, interval time.Duration, loc *time.Location) *Worker {
	if loc == nil {
		loc = time.Local
	}
	return &Worker{
		store:     store,
		mirror:    mirror,
		queue:     queue,
		batchSize: batchSize,
		interval:  interval,
		loc:       loc,
	}
}

// Run drives the consumer loops and the periodic catch-up pass until the
// context ends.
func (w *Worker) Run(ctx context.Context) error {
	// Recover rows whose sync messages were lost while the worker was down.
	if err := w.catchUp(ctx, w.batchSize*5); err != nil {
		slog.WarnContext(ctx, "startup catch-up failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.consumeLoop(ctx, "entries", func(ctx context.Context) error {
			return w.queue.ConsumeEntries(ctx, func(msg *amqp.EntryMessage) error {
				return w.HandleEntry(ctx, msg)
			})
		})
	})
	g.Go(func() error {
		return w.consumeLoop(ctx, "sync", func(ctx context.Context) error {
			return w.queue.ConsumeSync(ctx, func(msg *amqp.SyncMessage) error {
				return w.HandleSync(ctx, msg)
			})
		})
	})
	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.catchUp(ctx, w.batchSize); err != nil {
					slog.ErrorContext(ctx, "catch-up pass failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}

// consumeLoop keeps a consumer alive across broker outages.
func (w *Worker) consumeLoop(ctx context.Context, name string, consume func(context.Context) error) error {
	for {
		err := consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.WarnContext(ctx, "consumer stopped, redialing", "consumer", name, "error", err)
		if err := w.queue.Redial(ctx); err != nil {
			return fmt.Errorf("redial for %s consumer: %w", name, err)
		}
	}
}

// HandleEntry parses one queued entry line and stores it. Malformed entries
// are logged and dropped; requeueing them would loop forever.
func (w *Worker) HandleEntry(ctx context.Context, msg *amqp.EntryMessage) error {
	ts := msg.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	e, err := parser.Parse(msg.Text, ts.In(w.loc))
	if err != nil {
		slog.WarnContext(ctx, "dropping unparseable entry", "text", msg.Text, "error", err)
		return nil
	}

	saved, err := w.store.Insert(ctx, e)
	if err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	slog.InfoContext(ctx, "entry ingested", "id", saved.ID, "description", saved.Description)

	if err := w.queue.PublishSync(ctx, saved.ID); err != nil {
		// Row stays pending; the catch-up pass mirrors it later.
		slog.WarnContext(ctx, "failed to queue mirror message", "id", saved.ID, "error", err)
	}
	return nil
}

// HandleSync mirrors one stored expense to the backup sheet.
func (w *Worker) HandleSync(ctx context.Context, msg *amqp.SyncMessage) error {
	e, err := w.store.Get(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted before the message arrived, nothing to mirror.
		slog.InfoContext(ctx, "sync target no longer exists", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense %d: %w", msg.ID, err)
	}
	return w.mirrorExpense(ctx, e)
}

func (w *Worker) mirrorExpense(ctx context.Context, e core.Expense) error {
	ref, err := w.mirror.Append(ctx, e)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, e.ID); markErr != nil {
			slog.ErrorContext(ctx, "failed to mark sync error", "id", e.ID, "error", markErr)
		}
		return fmt.Errorf("mirror expense %d: %w", e.ID, err)
	}
	if err := w.store.MarkSynced(ctx, e.ID); err != nil {
		// The append went through; only the bookkeeping failed.
		slog.ErrorContext(ctx, "failed to mark synced", "id", e.ID, "error", err)
		return nil
	}
	slog.InfoContext(ctx, "expense mirrored", "id", e.ID, "sheets_ref", ref)
	return nil
}

// catchUp mirrors rows whose sync messages never arrived.
func (w *Worker) catchUp(ctx context.Context, limit int) error {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return fmt.Errorf("list pending rows: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "mirroring pending rows", "count", len(pending))
	for _, e := range pending {
		if err := w.mirrorExpense(ctx, e); err != nil {
			slog.ErrorContext(ctx, "pending row mirror failed", "id", e.ID, "error", err)
		}
	}
	return nil
}
