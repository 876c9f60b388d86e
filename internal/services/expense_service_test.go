package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gastos/internal/core"
)

type fakeStore struct {
	nextID    int64
	inserted  []core.Expense
	deleteErr error
}

func (s *fakeStore) Insert(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.nextID++
	e.ID = s.nextID
	s.inserted = append(s.inserted, e)
	return e, nil
}

func (s *fakeStore) DeleteLast(context.Context) (core.Expense, error) {
	if s.deleteErr != nil {
		return core.Expense{}, s.deleteErr
	}
	if len(s.inserted) == 0 {
		return core.Expense{}, errors.New("expense not found")
	}
	last := s.inserted[len(s.inserted)-1]
	s.inserted = s.inserted[:len(s.inserted)-1]
	return last, nil
}

type fakePublisher struct {
	syncIDs  []int64
	entries  []string
	syncErr  error
	entryErr error
}

func (p *fakePublisher) PublishSync(_ context.Context, id int64) error {
	if p.syncErr != nil {
		return p.syncErr
	}
	p.syncIDs = append(p.syncIDs, id)
	return nil
}

func (p *fakePublisher) PublishEntry(_ context.Context, text string) error {
	if p.entryErr != nil {
		return p.entryErr
	}
	p.entries = append(p.entries, text)
	return nil
}

func validExpense() core.Expense {
	return core.Expense{
		Timestamp:   time.Now(),
		Amount:      core.Money{Cents: 3550},
		Description: "market run",
		Method:      core.MethodPix,
		Tag:         core.TagPersonal,
		Category:    core.CategoryGroceries,
		Parsed:      true,
	}
}

func TestCreatePublishesSync(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub)

	saved, err := svc.Create(context.Background(), validExpense())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if saved.ID != 1 {
		t.Fatalf("ID = %d, want 1", saved.ID)
	}
	if len(pub.syncIDs) != 1 || pub.syncIDs[0] != 1 {
		t.Fatalf("sync messages = %v", pub.syncIDs)
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{syncErr: errors.New("broker down")}
	svc := NewExpenseService(store, pub)

	saved, err := svc.Create(context.Background(), validExpense())
	if err != nil {
		t.Fatalf("Create should not fail on publish error: %v", err)
	}
	if saved.ID == 0 || len(store.inserted) != 1 {
		t.Fatalf("expense not stored: %+v", saved)
	}
}

func TestCreateWithoutPublisher(t *testing.T) {
	store := &fakeStore{}
	svc := NewExpenseService(store, nil)

	if _, err := svc.Create(context.Background(), validExpense()); err != nil {
		t.Fatalf("Create without publisher: %v", err)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	svc := NewExpenseService(&fakeStore{}, &fakePublisher{})

	bad := validExpense()
	bad.Amount.Cents = 0
	if _, err := svc.Create(context.Background(), bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("Create error = %v, want ErrInvalidAmount", err)
	}
}

func TestUndoLast(t *testing.T) {
	store := &fakeStore{}
	svc := NewExpenseService(store, &fakePublisher{})

	saved, err := svc.Create(context.Background(), validExpense())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	deleted, err := svc.UndoLast(context.Background())
	if err != nil {
		t.Fatalf("UndoLast: %v", err)
	}
	if deleted.ID != saved.ID {
		t.Fatalf("deleted ID = %d, want %d", deleted.ID, saved.ID)
	}
	if len(store.inserted) != 0 {
		t.Fatal("expense still stored after undo")
	}
}

func TestSubmitEntry(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewExpenseService(&fakeStore{}, pub)

	entry := "35,50 - market - pix - personal expenses - groceries"
	if err := svc.SubmitEntry(context.Background(), entry); err != nil {
		t.Fatalf("SubmitEntry: %v", err)
	}
	if len(pub.entries) != 1 || pub.entries[0] != entry {
		t.Fatalf("entries = %v", pub.entries)
	}

	svc = NewExpenseService(&fakeStore{}, nil)
	if err := svc.SubmitEntry(context.Background(), entry); err == nil {
		t.Fatal("SubmitEntry without publisher should fail")
	}
}
