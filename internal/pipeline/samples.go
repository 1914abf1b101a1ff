package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
)

// flushEvery is the number of buffered samples that triggers a flush.
const flushEvery = 10

// SampleStore captures failing documents for offline debugging. The file is
// a JSON array at {dir}/error-samples-{timestamp}.json, rewritten on every
// flush so it stays parseable mid-run. Disabled stores discard everything.
type SampleStore struct {
	path    string
	enabled bool
	samples []domain.ErrorSample
	dirty   int
	logger  *slog.Logger
}

// NewSampleStore creates a store. The timestamp keys the file name so
// consecutive runs never clobber each other's samples.
func NewSampleStore(dir string, runStamp string, enabled bool, logger *slog.Logger) *SampleStore {
	return &SampleStore{
		path:    filepath.Join(dir, fmt.Sprintf("error-samples-%s.json", runStamp)),
		enabled: enabled,
		logger:  logger,
	}
}

// Enabled reports whether sample capture is on.
func (s *SampleStore) Enabled() bool { return s.enabled }

// Path returns the sample file location, or "" when nothing was written.
func (s *SampleStore) Path() string {
	if !s.enabled || len(s.samples) == 0 {
		return ""
	}
	return s.path
}

// Count returns the number of captured samples.
func (s *SampleStore) Count() int { return len(s.samples) }

// Add records one failure. Every tenth sample triggers a flush.
func (s *SampleStore) Add(sample domain.ErrorSample) {
	if !s.enabled {
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}
	s.samples = append(s.samples, sample)
	s.dirty++

	if s.dirty >= flushEvery {
		if err := s.Flush(); err != nil {
			s.logger.Warn("sample flush failed", slog.String("error", err.Error()))
		}
	}
}

// Capture builds and records a sample from a failing product.
func (s *SampleStore) Capture(phase string, doc domain.RawProduct, productID, message string) {
	if !s.enabled {
		return
	}
	title := ""
	if doc != nil {
		if t, ok := doc["title"].(string); ok {
			title = t
		}
	}
	sample := domain.ErrorSample{
		Timestamp: time.Now().UTC(),
		ProductID: productID,
		Title:     title,
		Error:     message,
		Phase:     phase,
	}
	if doc != nil {
		brand, _ := doc["brand"].(string)
		sample.Product = domain.SampleProduct{
			ID:         productID,
			Title:      boundedTitle(title),
			Brand:      brand,
			Pricing:    doc["pricing"],
			Categories: doc["categories"],
		}
	} else {
		sample.Product = domain.SampleProduct{ID: productID, Title: boundedTitle(title)}
	}
	s.Add(sample)
}

// Flush writes all captured samples to disk.
func (s *SampleStore) Flush() error {
	if !s.enabled || len(s.samples) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(s.samples, "", "  ")
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create samples dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}

	s.dirty = 0
	return nil
}

func boundedTitle(title string) string {
	const max = 120
	if len(title) <= max {
		return title
	}
	r := []rune(title)
	if len(r) <= max {
		return title
	}
	return string(r[:max])
}
