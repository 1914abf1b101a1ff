// Package upstream fetches paginated product pages from the catalog API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/httpclient"
)

const defaultUserAgent = "cs-products-indexer/1.0"

// Config holds fetcher configuration.
type Config struct {
	BaseURL     string
	PageSize    int
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	UserAgent   string
}

// DefaultConfig returns the fetcher defaults: 30 s per request, 3 attempts
// with linear backoff on a 1 s base.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		PageSize:    100,
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Second,
		UserAgent:   defaultUserAgent,
	}
}

// PageError is a permanent per-page failure, surfaced after the retry
// budget is exhausted. The run controller records it and advances.
type PageError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("fetch page %d failed after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// envelope is the upstream response wrapper. Success is signalled by
// metadata.is_error == false; any other shape is an error.
type envelope struct {
	Metadata struct {
		IsError bool   `json:"is_error"`
		Message string `json:"message"`
	} `json:"metadata"`
	Data       []domain.RawProduct `json:"data"`
	Pagination *domain.Pagination  `json:"pagination"`
}

// Fetcher retrieves product pages. Retries happen here rather than in the
// HTTP client so an is_error envelope on a 200 counts against the same
// attempt budget as a transport failure.
type Fetcher struct {
	cfg    Config
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher creates a fetcher. The underlying client has retries disabled.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	client := httpclient.New(httpclient.Config{
		Timeout:         cfg.Timeout,
		MaxRetries:      0,
		MaxConnsPerHost: 10,
	})

	return &Fetcher{cfg: cfg, client: client, logger: logger}
}

// FetchPage retrieves one page, retrying transient failures in place with
// linear backoff (attempt number times the base delay). Page numbers are
// 1-based. On exhaustion the last error is wrapped in a *PageError.
func (f *Fetcher) FetchPage(ctx context.Context, page int) (*domain.ProductPage, error) {
	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(attempt-1) * f.cfg.BackoffBase
			f.logger.WarnContext(ctx, "retrying upstream fetch",
				slog.Int("page", page),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, &PageError{Page: page, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		result, err := f.fetchOnce(ctx, page)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, &PageError{Page: page, Attempts: attempt, Err: lastErr}
		}
	}

	return nil, &PageError{Page: page, Attempts: f.cfg.MaxAttempts, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, page int) (*domain.ProductPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.pageURL(page), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Metadata.IsError {
		msg := env.Metadata.Message
		if msg == "" {
			msg = "upstream flagged is_error without a message"
		}
		return nil, fmt.Errorf("upstream error: %s", msg)
	}

	return &domain.ProductPage{
		Products:   env.Data,
		Pagination: env.Pagination,
	}, nil
}

func (f *Fetcher) pageURL(page int) string {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(f.cfg.PageSize))
	q.Set("page", strconv.Itoa(page))
	sep := "?"
	for i := range f.cfg.BaseURL {
		if f.cfg.BaseURL[i] == '?' {
			sep = "&"
			break
		}
	}
	return f.cfg.BaseURL + sep + q.Encode()
}
