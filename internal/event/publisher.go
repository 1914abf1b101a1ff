// Package event publishes indexing progress to Kafka. Publishing is
// optional and best effort: the pipeline never fails a page because an
// event could not be delivered.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angelmartinezt1/cs-products-sub000/internal/domain"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/kafka"
)

// Topics.
const (
	TopicProductIndexed = "catalog.product.indexed"
	TopicRunCompleted   = "catalog.run.completed"
)

const source = "catalog-indexer"

// PageIndexedPayload is the body of a catalog.product.indexed event, one
// per page of confirmed upserts.
type PageIndexedPayload struct {
	Collection string   `json:"collection"`
	Page       int      `json:"page"`
	Count      int      `json:"count"`
	ProductIDs []string `json:"product_ids"`
}

// RunCompletedPayload is the body of a catalog.run.completed event.
type RunCompletedPayload struct {
	Collection         string  `json:"collection"`
	Status             string  `json:"status"`
	Processed          int     `json:"processed"`
	Indexed            int     `json:"indexed"`
	Failed             int     `json:"failed"`
	LastSuccessfulPage int     `json:"last_successful_page"`
	DurationSeconds    float64 `json:"duration_seconds"`
}

// Publisher emits pipeline progress events.
type Publisher struct {
	producer   *kafka.Producer
	collection string
	runID      string
	logger     *slog.Logger
}

// NewPublisher creates a publisher for one run.
func NewPublisher(producer *kafka.Producer, collection, runID string, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer:   producer,
		collection: collection,
		runID:      runID,
		logger:     logger,
	}
}

// PageIndexed publishes the ids confirmed upserted for one page.
func (p *Publisher) PageIndexed(ctx context.Context, page int, ids []string) error {
	payload := PageIndexedPayload{
		Collection: p.collection,
		Page:       page,
		Count:      len(ids),
		ProductIDs: ids,
	}
	ev, err := kafka.NewEvent(TopicProductIndexed, fmt.Sprintf("%s:%d", p.collection, page), "product_page", source, payload)
	if err != nil {
		return fmt.Errorf("build page indexed event: %w", err)
	}
	ev.WithCorrelationID(p.runID)
	return p.producer.Publish(ctx, TopicProductIndexed, ev)
}

// RunCompleted publishes the final run summary.
func (p *Publisher) RunCompleted(ctx context.Context, report *domain.Report) error {
	payload := RunCompletedPayload{
		Collection:         p.collection,
		Status:             report.Status,
		Processed:          report.Processed,
		Indexed:            report.Indexed,
		Failed:             report.Failed,
		LastSuccessfulPage: report.LastSuccessfulPage,
		DurationSeconds:    report.DurationSeconds,
	}
	ev, err := kafka.NewEvent(TopicRunCompleted, p.runID, "indexing_run", source, payload)
	if err != nil {
		return fmt.Errorf("build run completed event: %w", err)
	}
	ev.WithCorrelationID(p.runID)
	return p.producer.Publish(ctx, TopicRunCompleted, ev)
}

// Close flushes the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
