package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/foia-search/internal/bootstrap"
	"github.com/kirillkom/foia-search/internal/config"
	"github.com/kirillkom/foia-search/internal/core/domain"
)

type searchFake struct {
	lastQuery string
	lastLimit int
}

func (f *searchFake) Search(_ context.Context, query string, limit int) (*domain.SearchResponse, error) {
	f.lastQuery = query
	f.lastLimit = limit
	return &domain.SearchResponse{
		Query:   query,
		Mode:    domain.IndexModeHybridFused,
		Results: []domain.Result{{ID: "email-1", Rank: 1, Content: "Lead results"}},
	}, nil
}

type docsFake struct{}

func (docsFake) GetByID(_ context.Context, id string) (*domain.Result, error) {
	return &domain.Result{ID: id, Rank: 1, Content: "Shown body"}, nil
}

type writerFake struct {
	batches [][]domain.Document
}

func (w *writerFake) UpsertDocuments(_ context.Context, docs []domain.Document) error {
	w.batches = append(w.batches, append([]domain.Document(nil), docs...))
	return nil
}

type historyFake struct{}

func (historyFake) RecentSearches(context.Context, int) ([]domain.SearchEvent, error) {
	return []domain.SearchEvent{{
		ID:         "ev-1",
		Query:      "lead pipes",
		ResultIDs:  []string{"a", "b"},
		Duplicates: 1,
		DurationMS: 12.5,
		OccurredAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}}, nil
}

type indexFake struct{}

func (indexFake) Mode() domain.IndexMode                 { return domain.IndexModeHybridFused }
func (indexFake) Dimension(context.Context) (int, error) { return 768, nil }
func (indexFake) VectorSearch(context.Context, []float32, int) ([]domain.VectorHit, error) {
	return nil, nil
}
func (indexFake) LexicalSearch(context.Context, string, int) ([]domain.LexicalHit, error) {
	return nil, nil
}
func (indexFake) GetDocument(context.Context, string) (*domain.Document, error) { return nil, nil }
func (indexFake) GetDocuments(context.Context, []string) ([]domain.Document, error) {
	return nil, nil
}

func withBackend(t *testing.T, b *backend) *bootstrap.Options {
	t.Helper()
	var captured bootstrap.Options
	prev := openBackend
	openBackend = func(_ context.Context, opts bootstrap.Options) (*backend, error) {
		captured = opts
		return b, nil
	}
	t.Cleanup(func() { openBackend = prev })
	return &captured
}

func newBackend() *backend {
	return &backend{
		config: config.Config{IndexBackend: config.IndexBackendPostgres, EmbedderProvider: config.EmbedderOllama},
		search: &searchFake{},
		docs:   docsFake{},
		index:  indexFake{},
		close:  func() {},
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommandJoinsArgsAndRendersText(t *testing.T) {
	b := newBackend()
	search := b.search.(*searchFake)
	withBackend(t, b)

	out, err := run(t, "search", "lead", "pipes", "-n", "3")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if search.lastQuery != "lead pipes" || search.lastLimit != 3 {
		t.Fatalf("unexpected search call %q %d", search.lastQuery, search.lastLimit)
	}
	if !strings.Contains(out, "Lead results") {
		t.Fatalf("expected rendered body, got %q", out)
	}
}

func TestSearchCommandJSON(t *testing.T) {
	withBackend(t, newBackend())

	out, err := run(t, "search", "lead", "--format", "json")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var resp domain.SearchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out, err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "email-1" {
		t.Fatalf("unexpected results %+v", resp.Results)
	}
}

func TestSearchCommandRejectsUnknownFormat(t *testing.T) {
	withBackend(t, newBackend())
	if _, err := run(t, "search", "lead", "--format", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestShowCommandDisablesPublisher(t *testing.T) {
	opts := withBackend(t, newBackend())

	out, err := run(t, "show", "email-42")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Shown body") {
		t.Fatalf("expected body, got %q", out)
	}
	if !opts.DisablePublisher {
		t.Fatalf("show must not publish search events")
	}
}

func TestCheckCommandReportsDimension(t *testing.T) {
	withBackend(t, newBackend())

	out, err := run(t, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "mode=hybrid-fused") || !strings.Contains(out, "dimension=768") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestImportCommandBatchesDocuments(t *testing.T) {
	b := newBackend()
	writer := &writerFake{}
	b.writer = writer
	opts := withBackend(t, b)

	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	var lines []string
	for _, id := range []string{"a", "b", "c"} {
		lines = append(lines, `{"id":"`+id+`","content":"x","embedding":[0.1,0.2],"metadata":{},"image_refs":["p_1.txt"]}`)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	out, err := run(t, "import", path, "--batch", "2")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(writer.batches) != 2 || len(writer.batches[0]) != 2 || len(writer.batches[1]) != 1 {
		t.Fatalf("unexpected batches %+v", writer.batches)
	}
	if !opts.SkipDimensionProbe {
		t.Fatalf("import must skip the dimension probe")
	}
	if !strings.Contains(out, "imported 3 documents") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestImportCommandRejectsReadOnlyBackend(t *testing.T) {
	b := newBackend()
	b.config.IndexBackend = config.IndexBackendLocal
	withBackend(t, b)

	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	if err := os.WriteFile(path, []byte(`{"id":"a","embedding":[1]}`+"\n"), 0o600); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	if _, err := run(t, "import", path); err == nil || !strings.Contains(err.Error(), "read-only") {
		t.Fatalf("expected read-only error, got %v", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	b := newBackend()
	b.history = historyFake{}
	withBackend(t, b)

	out, err := run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "lead pipes") || !strings.Contains(out, "QUERY") {
		t.Fatalf("unexpected output %q", out)
	}

	withBackend(t, newBackend())
	if _, err := run(t, "history"); err == nil {
		t.Fatalf("expected error without a search log")
	}
}
