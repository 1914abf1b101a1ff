// Package typesense implements the engine contract against a hosted
// Typesense-compatible search API.
package typesense

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/internal/engine"
	apperrors "github.com/angelmartinezt1/cs-products-sub000/pkg/errors"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/httpclient"
)

const apiKeyHeader = "X-TYPESENSE-API-KEY"

// Config holds the engine connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	// QueryBy lists the fields full-text queries match against.
	QueryBy []string
	Timeout time.Duration
}

// Client talks to the engine over HTTP. All calls go through a circuit
// breaker so a dead engine fails fast instead of exhausting retry budgets
// batch after batch.
type Client struct {
	cfg    Config
	http   *httpclient.CircuitBreakerClient
	logger *slog.Logger
}

var _ engine.Engine = (*Client)(nil)

// NewClient creates an engine client. Import and search share one breaker.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if len(cfg.QueryBy) == 0 {
		cfg.QueryBy = []string{"title", "brand"}
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	base := httpclient.New(httpclient.Config{
		Timeout:         cfg.Timeout,
		MaxRetries:      0,
		MaxConnsPerHost: 10,
	})
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("search-engine"), logger)

	return &Client{cfg: cfg, http: cb, logger: logger}
}

// Health checks GET /health and requires {"ok": true}.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return apperrors.Unavailable("search-engine", err)
	}
	defer resp.Body.Close()

	var status struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return apperrors.Unavailable("search-engine", fmt.Errorf("decode health response: %w", err))
	}
	if !status.OK {
		return apperrors.Unavailable("search-engine", fmt.Errorf("engine reports not ok"))
	}
	return nil
}

// Collection fetches GET /collections/{name}.
func (c *Client) Collection(ctx context.Context) (*engine.Collection, error) {
	resp, err := c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(c.cfg.Collection), "", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch collection %s: %w", c.cfg.Collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound("collection", c.cfg.Collection)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch collection %s: status %d", c.cfg.Collection, resp.StatusCode)
	}

	var col engine.Collection
	if err := json.NewDecoder(resp.Body).Decode(&col); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return &col, nil
}

// Import bulk-upserts documents as NDJSON via
// POST /collections/{name}/documents/import?action=upsert. The id field is
// the dedup key; re-importing the same id replaces in place.
func (c *Client) Import(ctx context.Context, docs []domain.Document) ([]engine.ImportResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
	}

	path := "/collections/" + url.PathEscape(c.cfg.Collection) + "/documents/import?action=upsert"
	resp, err := c.do(ctx, http.MethodPost, path, "text/plain", &body)
	if err != nil {
		return nil, fmt.Errorf("import batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
		return nil, fmt.Errorf("import batch: status %d: %s", resp.StatusCode, string(payload))
	}

	results, err := parseImportResults(resp.Body, len(docs))
	if err != nil {
		return nil, fmt.Errorf("import batch: %w", err)
	}
	return results, nil
}

// parseImportResults accepts either a JSON array or NDJSON, one entry per
// submitted document in order.
func parseImportResults(r io.Reader, want int) ([]engine.ImportResult, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	trimmed := bytes.TrimSpace(payload)
	var results []engine.ImportResult

	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("decode result array: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var res engine.ImportResult
			if err := json.Unmarshal(line, &res); err != nil {
				return nil, fmt.Errorf("decode result line: %w", err)
			}
			results = append(results, res)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}
	}

	if len(results) != want {
		return nil, fmt.Errorf("engine returned %d results for %d documents", len(results), want)
	}
	return results, nil
}

// Search queries GET /collections/{name}/documents/search. Pages are
// 1-based at this boundary.
func (c *Client) Search(ctx context.Context, req *engine.SearchRequest) (*engine.SearchResult, error) {
	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("query_by", strings.Join(c.cfg.QueryBy, ","))
	if req.Page > 0 {
		q.Set("page", strconv.Itoa(req.Page))
	}
	if req.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(req.PerPage))
	}
	if req.FilterBy != "" {
		q.Set("filter_by", req.FilterBy)
	}
	if len(req.FacetBy) > 0 {
		q.Set("facet_by", strings.Join(req.FacetBy, ","))
	}
	if req.SortBy != "" {
		q.Set("sort_by", req.SortBy)
	}

	path := "/collections/" + url.PathEscape(c.cfg.Collection) + "/documents/search?" + q.Encode()
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, apperrors.Unavailable("search-engine", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
		return nil, fmt.Errorf("search: status %d: %s", resp.StatusCode, string(payload))
	}

	var raw struct {
		Found        int `json:"found"`
		Page         int `json:"page"`
		SearchTimeMS int `json:"search_time_ms"`
		Hits         []struct {
			Document domain.Document `json:"document"`
		} `json:"hits"`
		FacetCounts []struct {
			FieldName string `json:"field_name"`
			Counts    []struct {
				Value string `json:"value"`
				Count int    `json:"count"`
			} `json:"counts"`
		} `json:"facet_counts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &engine.SearchResult{
		Found:  raw.Found,
		Page:   raw.Page,
		TookMS: int64(raw.SearchTimeMS),
		Hits:   make([]domain.Document, 0, len(raw.Hits)),
		Facets: make(map[string]map[string]int, len(raw.FacetCounts)),
	}
	for _, h := range raw.Hits {
		result.Hits = append(result.Hits, h.Document)
	}
	for _, fc := range raw.FacetCounts {
		counts := make(map[string]int, len(fc.Counts))
		for _, c := range fc.Counts {
			counts[c.Value] = c.Count
		}
		result.Facets[fc.FieldName] = counts
	}
	return result, nil
}

// Delete removes one document via DELETE /collections/{name}/documents/{id}.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/collections/" + url.PathEscape(c.cfg.Collection) + "/documents/" + url.PathEscape(id)
	resp, err := c.do(ctx, http.MethodDelete, path, "", nil)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return engine.ErrDocumentNotFound
	default:
		return fmt.Errorf("delete document %s: status %d", id, resp.StatusCode)
	}
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.http.Do(ctx, req)
}
