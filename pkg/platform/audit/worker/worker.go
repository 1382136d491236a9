package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"onboard/pkg/platform/audit/store/postgres"
)

// Source yields unpublished outbox entries and records their delivery.
type Source interface {
	NextUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer publishes a keyed message to the audit topic.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Relay drains the transactional outbox into Kafka. Entries are published
// in insertion order keyed by their aggregate id so per-process ordering
// holds on the topic.
type Relay struct {
	source   Source
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(source Source, producer Producer, logger *slog.Logger) *Relay {
	return &Relay{
		source:   source,
		producer: producer,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}
}

// Run relays outbox entries until the context is canceled. Publish
// failures leave the entry unpublished; it is retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

func (r *Relay) relayOnce(ctx context.Context) error {
	entries, err := r.source.NextUnpublished(ctx, r.batch)
	if err != nil {
		return err
	}
	var published []uuid.UUID
	for _, entry := range entries {
		if err := r.producer.Publish(ctx, entry.AggregateID, entry.Payload); err != nil {
			r.logger.ErrorContext(ctx, "audit publish failed",
				"outbox_id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			break
		}
		published = append(published, entry.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return r.source.MarkPublished(ctx, published)
}
