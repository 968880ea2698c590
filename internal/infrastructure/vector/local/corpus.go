package local

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

type corpusRecord struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
	ImageRefs []string          `json:"image_refs"`
}

// LoadCorpus reads a JSON Lines corpus, one document with its embedding per
// line. Blank lines are ignored.
func LoadCorpus(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load corpus", err)
	}
	defer f.Close()
	return ReadCorpus(f)
}

func ReadCorpus(r io.Reader) ([]domain.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 64<<20)

	var docs []domain.Document
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec corpusRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.ID) == "" {
			return nil, fmt.Errorf("corpus line %d: missing id", line)
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]string{}
		}
		docs = append(docs, domain.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Embedding: rec.Embedding,
			Metadata:  rec.Metadata,
			ImageRefs: rec.ImageRefs,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return docs, nil
}

// WriteCorpus is the inverse of ReadCorpus.
func WriteCorpus(w io.Writer, docs []domain.Document) error {
	enc := json.NewEncoder(w)
	for _, doc := range docs {
		if err := enc.Encode(corpusRecord{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
			ImageRefs: doc.ImageRefs,
		}); err != nil {
			return fmt.Errorf("write corpus record %s: %w", doc.ID, err)
		}
	}
	return nil
}
