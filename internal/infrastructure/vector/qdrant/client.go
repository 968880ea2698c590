package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/foia-search/internal/core/domain"
	"github.com/kirillkom/foia-search/internal/infrastructure/resilience"
)

const (
	payloadDocID     = "doc_id"
	payloadContent   = "content"
	payloadMetadata  = "metadata"
	payloadImageRefs = "image_refs"
)

// Client is a pure-vector index over a Qdrant collection. Each document is
// one point whose id is derived from the document id.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

// New builds a client. executor may be nil.
func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Mode() domain.IndexMode {
	return domain.IndexModePureVector
}

func (c *Client) Dimension(ctx context.Context) (int, error) {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	if err := c.call(ctx, "qdrant.collection_info", http.MethodGet, url, nil, &info); err != nil {
		return 0, wrapUnavailable("qdrant collection info", err)
	}
	if info.Result.Config.Params.Vectors.Size <= 0 {
		return 0, domain.WrapError(domain.ErrConfiguration, "qdrant collection info",
			fmt.Errorf("collection %s has no single unnamed vector config", c.collection))
	}
	return info.Result.Config.Params.Vectors.Size, nil
}

// VectorSearch converts Qdrant cosine similarity into distance (1 - score).
func (c *Client) VectorSearch(ctx context.Context, vector []float32, limit int) ([]domain.VectorHit, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": []string{payloadDocID},
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.call(ctx, "qdrant.search", http.MethodPost, url, reqBody, &searchResp); err != nil {
		return nil, wrapUnavailable("qdrant search", err)
	}

	out := make([]domain.VectorHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.VectorHit{
			DocumentID: getStringPayload(r.Payload, payloadDocID),
			Distance:   1 - r.Score,
		})
	}
	return out, nil
}

// LexicalSearch is not supported by a pure-vector collection.
func (c *Client) LexicalSearch(context.Context, string, int) ([]domain.LexicalHit, error) {
	return nil, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	docs, err := c.GetDocuments(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &docs[0], nil
}

func (c *Client) GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return []domain.Document{}, nil
	}
	pointIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, PointID(id))
	}
	reqBody := map[string]any{
		"ids":          pointIDs,
		"with_payload": true,
		"with_vector":  false,
	}

	var pointsResp struct {
		Result []struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points", c.baseURL, c.collection)
	if err := c.call(ctx, "qdrant.retrieve", http.MethodPost, url, reqBody, &pointsResp); err != nil {
		return nil, wrapUnavailable("qdrant retrieve", err)
	}

	out := make([]domain.Document, 0, len(pointsResp.Result))
	for _, p := range pointsResp.Result {
		out = append(out, documentFromPayload(p.Payload))
	}
	return out, nil
}

// UpsertDocuments writes documents with their embeddings, creating the
// collection on first use.
func (c *Client) UpsertDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, len(docs[0].Embedding)); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) != len(docs[0].Embedding) {
			return fmt.Errorf("document %s: embedding size %d, want %d", doc.ID, len(doc.Embedding), len(docs[0].Embedding))
		}
		points = append(points, point{
			ID:     PointID(doc.ID),
			Vector: doc.Embedding,
			Payload: map[string]any{
				payloadDocID:     doc.ID,
				payloadContent:   doc.Content,
				payloadMetadata:  doc.Metadata,
				payloadImageRefs: doc.ImageRefs,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.call(ctx, "qdrant.upsert", http.MethodPut, url, map[string]any{"points": points}, nil); err != nil {
		return wrapUnavailable("qdrant upsert", err)
	}
	return nil
}

// PointID maps a document id to its stable Qdrant point id.
func PointID(documentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("foia-document:"+documentID)).String()
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.call(ctx, "qdrant.ensure_collection", http.MethodPut, url, reqBody, nil)
	var statusErr *HTTPStatusError
	// 200/201 for create, 409 if already exists (depends on version/config).
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return fmt.Errorf("qdrant ensure collection: %w", err)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) call(ctx context.Context, operation, method, url string, payload any, out any) error {
	fn := func(callCtx context.Context) error {
		return c.doJSON(callCtx, method, url, payload, out)
	}
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyQdrantError)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func documentFromPayload(payload map[string]any) domain.Document {
	doc := domain.Document{
		ID:       getStringPayload(payload, payloadDocID),
		Content:  getStringPayload(payload, payloadContent),
		Metadata: map[string]string{},
	}
	if meta, ok := payload[payloadMetadata].(map[string]any); ok {
		for k := range meta {
			doc.Metadata[k] = getStringPayload(meta, k)
		}
	}
	if refs, ok := payload[payloadImageRefs].([]any); ok {
		for _, ref := range refs {
			if s, ok := ref.(string); ok {
				doc.ImageRefs = append(doc.ImageRefs, s)
			}
		}
	}
	return doc
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
