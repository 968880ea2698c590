package domain

import "time"

// IndexMode names the retrieval capability of an index backend.
type IndexMode string

const (
	IndexModePureVector  IndexMode = "pure-vector"
	IndexModeHybridFused IndexMode = "hybrid-fused"
)

// VectorHit is one row of a nearest-neighbour search, best (smallest distance) first.
type VectorHit struct {
	DocumentID string  `json:"document_id"`
	Distance   float64 `json:"distance"`
}

// LexicalHit is one row of a full-text search, best (highest relevance) first.
type LexicalHit struct {
	DocumentID string  `json:"document_id"`
	Relevance  float64 `json:"relevance"`
}

// FusedResult carries the reciprocal rank fusion score of one document.
// Ranks are 1-based; zero means the document was absent from that list.
type FusedResult struct {
	DocumentID  string  `json:"document_id"`
	Score       float64 `json:"score"`
	VectorRank  int     `json:"vector_rank,omitempty"`
	LexicalRank int     `json:"lexical_rank,omitempty"`
}

type SearchResponse struct {
	Query        string    `json:"query"`
	Mode         IndexMode `json:"mode,omitempty"`
	Results      []Result  `json:"results"`
	Candidates   int       `json:"candidates"`
	Duplicates   int       `json:"duplicates"`
	Unresolved   int       `json:"unresolved,omitempty"`
	RequestedTop int       `json:"requested_top"`
}

// SearchEvent is the audit record emitted for every executed search.
type SearchEvent struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Limit      int       `json:"limit"`
	ResultIDs  []string  `json:"result_ids"`
	Candidates int       `json:"candidates"`
	Duplicates int       `json:"duplicates"`
	DurationMS float64   `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}
