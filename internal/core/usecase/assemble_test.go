package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

func TestAssemblerImageURL(t *testing.T) {
	a := NewAssembler("https://scans.example.com/", "")
	got := a.ImageURL("EGLE_0042_7.txt")
	want := "https://scans.example.com/EGLE_0042_jp2/EGLE_0042_7.png"
	if got != want {
		t.Fatalf("ImageURL() = %q, want %q", got, want)
	}
}

func TestAssemblerBuildsResult(t *testing.T) {
	a := NewAssembler("https://scans.example.com", "https://archive.example.org/flint")
	doc := domain.Document{
		ID:      "42",
		Content: "body text",
		Metadata: map[string]string{
			domain.FieldFrom:        "['Wurfel, Brad (DEQ)']",
			domain.FieldTo:          "['a@michigan.gov', 'b@michigan.gov']",
			domain.FieldCc:          "[]",
			domain.FieldSubject:     "['RE: Flint']",
			domain.FieldImageLookup: "['DEQ_0001_3.txt', 'DEQ_0001_4.txt']",
		},
	}

	got := a.Assemble(doc, 2, 0.5)
	if got.ID != "42" || got.Rank != 2 || got.Score != 0.5 || got.Content != "body text" {
		t.Fatalf("unexpected result header: %+v", got)
	}
	wantFields := []domain.MetadataField{
		{Key: domain.FieldFrom, Values: []string{"Wurfel, Brad (DEQ)"}},
		{Key: domain.FieldTo, Values: []string{"a@michigan.gov", "b@michigan.gov"}},
		{Key: domain.FieldSubject, Values: []string{"RE: Flint"}},
	}
	if !reflect.DeepEqual(got.Metadata, wantFields) {
		t.Fatalf("unexpected metadata: %+v", got.Metadata)
	}
	wantImages := []domain.PageImage{
		{Title: "Scan 1", Caption: "DEQ_0001_3.png", URL: "https://scans.example.com/DEQ_0001_jp2/DEQ_0001_3.png"},
		{Title: "Scan 2", Caption: "DEQ_0001_4.png", URL: "https://scans.example.com/DEQ_0001_jp2/DEQ_0001_4.png"},
	}
	if !reflect.DeepEqual(got.Images, wantImages) {
		t.Fatalf("unexpected images: %+v", got.Images)
	}
	if got.ArchiveURL != "https://archive.example.org/flint/DEQ_0001" {
		t.Fatalf("unexpected archive url: %s", got.ArchiveURL)
	}
}

func TestAssemblerSkipsMalformedField(t *testing.T) {
	a := NewAssembler("https://scans.example.com", "")
	doc := domain.Document{
		ID: "7",
		Metadata: map[string]string{
			domain.FieldFrom:        "not a list",
			domain.FieldDate:        "['2015-10-01']",
			domain.FieldImageLookup: "['X_1_2.txt'",
		},
	}
	got := a.Assemble(doc, 1, 0)
	if len(got.Metadata) != 1 || got.Metadata[0].Key != domain.FieldDate {
		t.Fatalf("expected only Date field, got %+v", got.Metadata)
	}
	if len(got.Images) != 0 || got.ArchiveURL != "" {
		t.Fatalf("expected no images, got %+v", got.Images)
	}
}

func TestAssemblerPrefersImageRefs(t *testing.T) {
	a := NewAssembler("https://scans.example.com", "")
	doc := domain.Document{
		ID:        "1",
		ImageRefs: []string{"A_B_1.txt"},
		Metadata:  map[string]string{domain.FieldImageLookup: "['IGNORED_1.txt']"},
	}
	got := a.Assemble(doc, 1, 0)
	if len(got.Images) != 1 || got.Images[0].URL != "https://scans.example.com/A_B_jp2/A_B_1.png" {
		t.Fatalf("unexpected images: %+v", got.Images)
	}
}

func TestDocumentUseCaseGetByID(t *testing.T) {
	index := &indexFake{
		mode: domain.IndexModePureVector,
		docs: map[string]domain.Document{"9": {ID: "9", Content: "memo", Metadata: map[string]string{}}},
	}
	uc := NewDocumentUseCase(index, NewAssembler("https://scans.example.com", ""))

	got, err := uc.GetByID(context.Background(), " 9 ")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ID != "9" || got.Content != "memo" {
		t.Fatalf("unexpected result: %+v", got)
	}

	if _, err := uc.GetByID(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.GetByID(context.Background(), " "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	index.fetchErr = errors.New("connection reset")
	if _, err := uc.GetByID(context.Background(), "9"); !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}
