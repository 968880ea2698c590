package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

// Assembler turns stored documents into display results: list-literal
// metadata is parsed field by field and page names become image URLs.
type Assembler struct {
	imageBaseURL   string
	archiveBaseURL string
}

func NewAssembler(imageBaseURL, archiveBaseURL string) *Assembler {
	return &Assembler{
		imageBaseURL:   strings.TrimRight(strings.TrimSpace(imageBaseURL), "/"),
		archiveBaseURL: strings.TrimRight(strings.TrimSpace(archiveBaseURL), "/"),
	}
}

// Assemble never fails. A malformed metadata field is omitted from the
// result; malformed image references leave the result without images.
func (a *Assembler) Assemble(doc domain.Document, rank int, score float64) domain.Result {
	result := domain.Result{
		ID:       doc.ID,
		Rank:     rank,
		Score:    score,
		Content:  doc.Content,
		Metadata: a.metadataFields(doc),
		Images:   []domain.PageImage{},
	}

	names := a.pageNames(doc)
	for i, name := range names {
		url := a.ImageURL(name)
		result.Images = append(result.Images, domain.PageImage{
			Title:   fmt.Sprintf("Scan %d", i+1),
			Caption: url[strings.LastIndex(url, "/")+1:],
			URL:     url,
		})
	}
	if len(names) > 0 && a.archiveBaseURL != "" {
		result.ArchiveURL = a.archiveBaseURL + "/" + pageDirectory(names[0])
	}
	return result
}

func (a *Assembler) metadataFields(doc domain.Document) []domain.MetadataField {
	fields := make([]domain.MetadataField, 0, len(domain.DisplayFields))
	for _, key := range domain.DisplayFields {
		raw, ok := doc.Metadata[key]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		values, err := domain.ParseListLiteral(raw)
		if err != nil {
			slog.Warn("metadata_field_skipped", "document_id", doc.ID, "field", key, "error", err.Error())
			continue
		}
		if len(values) == 0 {
			continue
		}
		fields = append(fields, domain.MetadataField{Key: key, Values: values})
	}
	return fields
}

func (a *Assembler) pageNames(doc domain.Document) []string {
	if len(doc.ImageRefs) > 0 {
		return doc.ImageRefs
	}
	raw, ok := doc.Metadata[domain.FieldImageLookup]
	if !ok {
		return nil
	}
	names, err := domain.ParseListLiteral(raw)
	if err != nil {
		slog.Warn("metadata_field_skipped", "document_id", doc.ID, "field", domain.FieldImageLookup, "error", err.Error())
		return nil
	}
	return names
}

// ImageURL maps a page text name such as "ABC_0001_12.txt" to
// <base>/ABC_0001_jp2/ABC_0001_12.png.
func (a *Assembler) ImageURL(name string) string {
	file, _, _ := strings.Cut(name, ".")
	return a.imageBaseURL + "/" + pageDirectory(name) + "_jp2/" + file + ".png"
}

// pageDirectory drops the last "_" segment of a page name.
func pageDirectory(name string) string {
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}
