package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/core/ports"
)

type DocumentUseCase struct {
	index     ports.DocumentIndex
	assembler *Assembler
}

func NewDocumentUseCase(index ports.DocumentIndex, assembler *Assembler) *DocumentUseCase {
	return &DocumentUseCase{index: index, assembler: assembler}
}

func (uc *DocumentUseCase) GetByID(ctx context.Context, id string) (*domain.Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get document", errors.New("document id is required"))
	}

	doc, err := uc.index.GetDocument(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, err
		}
		return nil, retrievalError("get document", err)
	}

	result := uc.assembler.Assemble(*doc, 0, 0)
	return &result, nil
}
