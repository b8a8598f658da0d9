// Package relay moves audit events from the postgres outbox to Kafka.
//
// The outbox write happens in the request path; the relay runs in the
// background and retries until Kafka accepts each event, giving at-least-once
// delivery without coupling ledger operations to broker availability.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	outbox "trustee/pkg/platform/audit/store/postgres"
)

const (
	defaultBatchSize = 100
	defaultInterval  = 2 * time.Second
)

// Relay drains the outbox into a Kafka topic.
type Relay struct {
	store    *outbox.Store
	client   *kgo.Client
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

// New connects to the brokers and builds a relay for the given topic.
func New(store *outbox.Store, brokers []string, topic string, logger *slog.Logger) (*Relay, error) {
	if store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Relay{
		store:    store,
		client:   client,
		topic:    topic,
		interval: defaultInterval,
		logger:   logger,
	}, nil
}

// EnsureTopic creates the audit topic when it does not exist yet.
func (r *Relay) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(r.client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, r.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Run polls the outbox until the context is cancelled. Rows are only marked
// published after Kafka acknowledges them.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				if r.logger != nil {
					r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
				}
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	batch, err := r.store.NextBatch(ctx, defaultBatchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(batch))
	for _, row := range batch {
		record := &kgo.Record{
			Topic: r.topic,
			Key:   []byte(row.Category),
			Value: row.Payload,
		}
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			// Stop at the first failure; unpublished rows stay in the
			// outbox and the next tick retries from there.
			if markErr := r.store.MarkPublished(ctx, published); markErr != nil {
				return errors.Join(err, markErr)
			}
			return fmt.Errorf("produce audit event: %w", err)
		}
		published = append(published, row.ID)
	}
	return r.store.MarkPublished(ctx, published)
}

// Close flushes and releases the Kafka client.
func (r *Relay) Close() {
	r.client.Close()
}
