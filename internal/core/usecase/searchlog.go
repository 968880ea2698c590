package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/core/ports"
)

// SearchLogUseCase persists search audit events delivered by the queue.
type SearchLogUseCase struct {
	store ports.SearchLogStore
}

func NewSearchLogUseCase(store ports.SearchLogStore) *SearchLogUseCase {
	return &SearchLogUseCase{store: store}
}

func (uc *SearchLogUseCase) Record(ctx context.Context, event domain.SearchEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record search event", errors.New("event id is required"))
	}
	if event.ResultIDs == nil {
		event.ResultIDs = []string{}
	}
	if err := uc.store.AppendSearchEvent(ctx, event); err != nil {
		return fmt.Errorf("append search event: %w", err)
	}
	return nil
}
