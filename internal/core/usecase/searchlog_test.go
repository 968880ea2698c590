package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

type searchLogStoreFake struct {
	events []domain.SearchEvent
	err    error
}

func (f *searchLogStoreFake) AppendSearchEvent(_ context.Context, event domain.SearchEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func TestSearchLogUseCaseRecord(t *testing.T) {
	store := &searchLogStoreFake{}
	uc := NewSearchLogUseCase(store)

	if err := uc.Record(context.Background(), domain.SearchEvent{ID: "e1", Query: "lead"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.events) != 1 || store.events[0].ResultIDs == nil {
		t.Fatalf("expected stored event with non-nil result ids, got %+v", store.events)
	}
}

func TestSearchLogUseCaseRejectsMissingID(t *testing.T) {
	uc := NewSearchLogUseCase(&searchLogStoreFake{})
	if err := uc.Record(context.Background(), domain.SearchEvent{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSearchLogUseCasePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("db down")
	uc := NewSearchLogUseCase(&searchLogStoreFake{err: storeErr})
	if err := uc.Record(context.Background(), domain.SearchEvent{ID: "e1"}); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}
