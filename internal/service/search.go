// Package service holds the query-side application services: engine search
// with a read-through cache, and catalog browsing over the mirror.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/angelmartinezt1/cs-products-sub000/internal/engine"
)

var searchCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "search_cache_requests_total",
	Help: "Search cache lookups, by outcome",
}, []string{"outcome"})

// DefaultSearchTTL is how long cached search results stay fresh. Short on
// purpose: the indexer rewrites documents continuously.
const DefaultSearchTTL = 60 * time.Second

// SearchService answers queries from the engine, caching result pages in
// Redis keyed by the full request shape. A nil cache disables caching.
type SearchService struct {
	engine engine.Engine
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSearchService creates the service.
func NewSearchService(eng engine.Engine, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *SearchService {
	if ttl <= 0 {
		ttl = DefaultSearchTTL
	}
	return &SearchService{engine: eng, cache: cache, ttl: ttl, logger: logger}
}

// Search runs a query, read-through cached. Cache failures degrade to the
// engine silently.
func (s *SearchService) Search(ctx context.Context, req *engine.SearchRequest) (*engine.SearchResult, error) {
	key := cacheKey(req)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var result engine.SearchResult
			if err := json.Unmarshal(cached, &result); err == nil {
				searchCacheResults.WithLabelValues("hit").Inc()
				return &result, nil
			}
			// Unreadable entry: fall through to the engine and overwrite.
			s.logger.WarnContext(ctx, "dropping unreadable cache entry", slog.String("key", key))
		case err != redis.Nil:
			s.logger.WarnContext(ctx, "search cache read failed", slog.String("error", err.Error()))
		}
		searchCacheResults.WithLabelValues("miss").Inc()
	}

	result, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("engine search: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
				s.logger.WarnContext(ctx, "search cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return result, nil
}

// cacheKey hashes the request shape so arbitrary filter strings stay within
// key length limits.
func cacheKey(req *engine.SearchRequest) string {
	raw := strings.Join([]string{
		req.Query,
		fmt.Sprintf("%d:%d", req.Page, req.PerPage),
		req.FilterBy,
		strings.Join(req.FacetBy, ","),
		req.SortBy,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return "search:" + hex.EncodeToString(sum[:16])
}
