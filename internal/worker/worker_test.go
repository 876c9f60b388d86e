package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/billing"
	"gastos/internal/core"
	"gastos/internal/sheets/memory"
	"gastos/internal/storage"
)

type fakeStore struct {
	nextID    int64
	rows      map[int64]core.Expense
	synced    map[int64]bool
	syncError map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:      map[int64]core.Expense{},
		synced:    map[int64]bool{},
		syncError: map[int64]bool{},
	}
}

func (s *fakeStore) Insert(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.nextID++
	e.ID = s.nextID
	s.rows[e.ID] = e
	return e, nil
}

func (s *fakeStore) Get(_ context.Context, id int64) (core.Expense, error) {
	e, ok := s.rows[id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *fakeStore) PendingSync(_ context.Context, limit int) ([]core.Expense, error) {
	var out []core.Expense
	for id := int64(1); id <= s.nextID && len(out) < limit; id++ {
		if e, ok := s.rows[id]; ok && !s.synced[id] && !s.syncError[id] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkSynced(_ context.Context, id int64) error {
	s.synced[id] = true
	return nil
}

func (s *fakeStore) MarkSyncError(_ context.Context, id int64) error {
	s.syncError[id] = true
	return nil
}

type fakeQueue struct {
	syncIDs []int64
	pubErr  error
}

func (q *fakeQueue) ConsumeEntries(ctx context.Context, _ func(*amqp.EntryMessage) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *fakeQueue) ConsumeSync(ctx context.Context, _ func(*amqp.SyncMessage) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *fakeQueue) PublishSync(_ context.Context, id int64) error {
	if q.pubErr != nil {
		return q.pubErr
	}
	q.syncIDs = append(q.syncIDs, id)
	return nil
}

func (q *fakeQueue) Redial(context.Context) error { return nil }

func newTestWorker() (*Worker, *fakeStore, *memory.Store, *fakeQueue) {
	store := newFakeStore()
	mirror := memory.New()
	queue := &fakeQueue{}
	return New(store, mirror, queue, 10, time.Minute, time.UTC), store, mirror, queue
}

func TestHandleEntry(t *testing.T) {
	w, store, _, queue := newTestWorker()
	ctx := context.Background()

	msg := amqp.NewEntryMessage("35,50 - market run - pix - personal expenses - groceries")
	if err := w.HandleEntry(ctx, msg); err != nil {
		t.Fatalf("HandleEntry: %v", err)
	}

	e, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("entry not stored: %v", err)
	}
	if e.Description != "market run" || e.Amount.Cents != 3550 {
		t.Fatalf("stored = %+v", e)
	}
	if len(queue.syncIDs) != 1 || queue.syncIDs[0] != 1 {
		t.Fatalf("sync messages = %v", queue.syncIDs)
	}
}

func TestHandleEntryUsesConfiguredZone(t *testing.T) {
	store := newFakeStore()
	w := New(store, memory.New(), &fakeQueue{}, 10, time.Minute, time.FixedZone("BRT", -3*60*60))
	ctx := context.Background()

	// 01:30 UTC on Nov 17 is still the evening of Nov 16 in the configured
	// zone, inside the transition cycle rather than the next one.
	msg := amqp.NewEntryMessage("35,50 - market - pix - personal expenses - groceries")
	msg.ReceivedAt = time.Date(2025, time.November, 17, 1, 30, 0, 0, time.UTC)
	if err := w.HandleEntry(ctx, msg); err != nil {
		t.Fatalf("HandleEntry: %v", err)
	}

	e, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("entry not stored: %v", err)
	}
	if got := billing.DateOf(e.Timestamp); !got.Equal(billing.Date(2025, time.November, 16)) {
		t.Fatalf("attributed date = %s, want 2025-11-16", got.Format("2006-01-02"))
	}
	want := billing.InvoiceMonth{Year: 2025, Month: time.November}
	if got := billing.For(e.Timestamp); got != want {
		t.Fatalf("invoice month = %s, want %s", got, want)
	}
}

func TestHandleEntryDropsUnparseable(t *testing.T) {
	w, store, _, _ := newTestWorker()

	msg := amqp.NewEntryMessage("this is not an expense")
	if err := w.HandleEntry(context.Background(), msg); err != nil {
		t.Fatalf("unparseable entry should be dropped, got: %v", err)
	}
	if store.nextID != 0 {
		t.Fatal("unparseable entry was stored")
	}
}

func TestHandleEntrySurvivesPublishFailure(t *testing.T) {
	w, store, _, queue := newTestWorker()
	queue.pubErr = errors.New("broker down")

	msg := amqp.NewEntryMessage("35,50 - market - pix - personal expenses - groceries")
	if err := w.HandleEntry(context.Background(), msg); err != nil {
		t.Fatalf("HandleEntry should not fail on publish error: %v", err)
	}
	if store.nextID != 1 {
		t.Fatal("entry not stored")
	}
	// The row is still pending, so catch-up will pick it up.
	pending, _ := store.PendingSync(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("pending = %v", pending)
	}
}

func seedExpense(t *testing.T, store *fakeStore) core.Expense {
	t.Helper()
	e, err := store.Insert(context.Background(), core.Expense{
		Timestamp:   time.Now(),
		Amount:      core.Money{Cents: 1000},
		Description: "seed",
		Method:      core.MethodPix,
		Tag:         core.TagPersonal,
		Category:    core.CategoryGroceries,
		Parsed:      true,
	})
	if err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	return e
}

func TestHandleSync(t *testing.T) {
	w, store, mirror, _ := newTestWorker()
	ctx := context.Background()
	e := seedExpense(t, store)

	if err := w.HandleSync(ctx, amqp.NewSyncMessage(e.ID)); err != nil {
		t.Fatalf("HandleSync: %v", err)
	}
	rows := mirror.Rows()
	if len(rows) != 1 || rows[0].ID != e.ID {
		t.Fatalf("mirrored rows = %+v", rows)
	}
	if !store.synced[e.ID] {
		t.Fatal("row not marked synced")
	}
}

func TestHandleSyncMissingRow(t *testing.T) {
	w, _, mirror, _ := newTestWorker()

	if err := w.HandleSync(context.Background(), amqp.NewSyncMessage(42)); err != nil {
		t.Fatalf("missing row should be dropped, got: %v", err)
	}
	if len(mirror.Rows()) != 0 {
		t.Fatal("mirror touched for missing row")
	}
}

func TestHandleSyncMirrorFailure(t *testing.T) {
	w, store, mirror, _ := newTestWorker()
	ctx := context.Background()
	e := seedExpense(t, store)
	mirror.FailNext = true

	if err := w.HandleSync(ctx, amqp.NewSyncMessage(e.ID)); err == nil {
		t.Fatal("HandleSync should surface mirror failure")
	}
	if !store.syncError[e.ID] {
		t.Fatal("row not marked with sync error")
	}
}

func TestCatchUp(t *testing.T) {
	w, store, mirror, _ := newTestWorker()
	ctx := context.Background()

	a := seedExpense(t, store)
	b := seedExpense(t, store)
	store.synced[a.ID] = true

	if err := w.catchUp(ctx, 10); err != nil {
		t.Fatalf("catchUp: %v", err)
	}
	rows := mirror.Rows()
	if len(rows) != 1 || rows[0].ID != b.ID {
		t.Fatalf("mirrored rows = %+v", rows)
	}
	if !store.synced[b.ID] {
		t.Fatal("pending row not marked synced")
	}
}
