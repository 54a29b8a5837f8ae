package models

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

type memAdvanceStore struct {
	mu   sync.Mutex
	rows map[string]*Advance
}

func newMemAdvanceStore() *memAdvanceStore {
	return &memAdvanceStore{rows: map[string]*Advance{}}
}

func (s *memAdvanceStore) ListByEvent(ctx context.Context, eventId string) ([]*Advance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []*Advance
	for _, a := range s.rows {
		if a.EventId == eventId {
			copied := *a
			results = append(results, &copied)
		}
	}
	return results, nil
}

func (s *memAdvanceStore) Get(ctx context.Context, id string) (*Advance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *memAdvanceStore) Create(ctx context.Context, advance *Advance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *advance
	s.rows[advance.Id] = &copied
	return nil
}

func (s *memAdvanceStore) Update(ctx context.Context, advance *Advance) error {
	return s.Create(ctx, advance)
}

func (s *memAdvanceStore) Delete(ctx context.Context, advance *Advance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, advance.Id)
	return nil
}

func validAdvanceInput() *NewAdvance {
	return &NewAdvance{
		Amount:        decimal.NewFromInt(1000),
		Concept:       "  first transfer ",
		PaymentDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PaymentMethod: AdvancePaymentMethodTransfer,
	}
}

func TestCreateAdvance_RecordsActor(t *testing.T) {
	store := newMemAdvanceStore()
	ctx := utils.SetUsernameInContext(context.Background(), "ops@hunt")

	advance, err := CreateAdvance(ctx, store, "ev-1", validAdvanceInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if advance.Id == "" || advance.EventId != "ev-1" {
		t.Fatalf("unexpected advance: %+v", advance)
	}
	if advance.Concept != "first transfer" {
		t.Fatalf("expected trimmed concept, got %q", advance.Concept)
	}
	if advance.CreatedBy != "ops@hunt" {
		t.Fatalf("expected actor from context, got %q", advance.CreatedBy)
	}

	list, _ := GetAdvances(ctx, store, "ev-1")
	if len(list) != 1 {
		t.Fatalf("expected 1 advance, got %d", len(list))
	}
}

func TestCreateAdvance_RejectsInvalidInput(t *testing.T) {
	cases := map[string]func(in *NewAdvance){
		"zero amount":     func(in *NewAdvance) { in.Amount = decimal.Zero },
		"negative amount": func(in *NewAdvance) { in.Amount = decimal.NewFromInt(-5) },
		"blank concept":   func(in *NewAdvance) { in.Concept = "   " },
		"no date":         func(in *NewAdvance) { in.PaymentDate = time.Time{} },
		"bad method":      func(in *NewAdvance) { in.PaymentMethod = "bitcoin" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMemAdvanceStore()
			in := validAdvanceInput()
			mutate(in)
			_, err := CreateAdvance(context.Background(), store, "ev-1", in)
			if !errors.Is(err, utils.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if len(store.rows) != 0 {
				t.Fatalf("invalid input must not be stored")
			}
		})
	}

	_, err := CreateAdvance(context.Background(), newMemAdvanceStore(), " ", validAdvanceInput())
	if !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty event id, got %v", err)
	}
}

func TestUpdateAndDeleteAdvance(t *testing.T) {
	store := newMemAdvanceStore()
	ctx := context.Background()
	created, err := CreateAdvance(ctx, store, "ev-1", validAdvanceInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := validAdvanceInput()
	in.Amount = decimal.NewFromInt(200)
	in.IsDebt = true
	updated, err := UpdateAdvance(utils.SetUsernameInContext(ctx, "finance"), store, created.Id, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.IsDebt || !updated.Amount.Equal(decimal.NewFromInt(200)) || updated.UpdatedBy != "finance" {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := DeleteAdvance(ctx, store, created.Id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := DeleteAdvance(ctx, store, created.Id); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
