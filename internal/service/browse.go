package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/angelmartinezt1/cs-products-sub000/internal/repository"
	apperrors "github.com/angelmartinezt1/cs-products-sub000/pkg/errors"
)

// maxBrowsePageSize caps per_page on the browse surface.
const maxBrowsePageSize = 100

// errMirrorDisabled is returned when the relational mirror is turned off.
var errMirrorDisabled = errors.New("catalog mirror is disabled")

// BrowseService lists the mirrored catalog with facet aggregations.
type BrowseService struct {
	mirror repository.ProductMirror
	logger *slog.Logger
}

// NewBrowseService creates the service.
func NewBrowseService(mirror repository.ProductMirror, logger *slog.Logger) *BrowseService {
	return &BrowseService{mirror: mirror, logger: logger}
}

// Browse validates and runs a catalog listing query.
func (s *BrowseService) Browse(ctx context.Context, q repository.BrowseQuery) (*repository.BrowseResult, error) {
	if s.mirror == nil {
		return nil, apperrors.Unavailable("catalog-mirror", errMirrorDisabled)
	}
	if q.Page < 0 {
		return nil, apperrors.InvalidInput("page must not be negative")
	}
	if q.PerPage > maxBrowsePageSize {
		return nil, apperrors.InvalidInput(fmt.Sprintf("per_page must not exceed %d", maxBrowsePageSize))
	}
	if q.PriceMin != nil && q.PriceMax != nil && *q.PriceMin > *q.PriceMax {
		return nil, apperrors.InvalidInput("price_min must not exceed price_max")
	}

	result, err := s.mirror.Browse(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("browse catalog: %w", err)
	}
	return result, nil
}

// Facets returns facet counts over the active catalog.
func (s *BrowseService) Facets(ctx context.Context) (*repository.FacetCounts, error) {
	if s.mirror == nil {
		return nil, apperrors.Unavailable("catalog-mirror", errMirrorDisabled)
	}
	counts, err := s.mirror.Facets(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate facets: %w", err)
	}
	return counts, nil
}
