package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wildfire-analysis/internal/config"
	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/couchcryptid/wildfire-analysis/internal/observability"
	"github.com/couchcryptid/wildfire-analysis/internal/store"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ResultSource is a store that broadcasts snapshots.
type ResultSource interface {
	Subscribe() (<-chan store.Snapshot, func())
}

// Publisher produces committed analysis results to a Kafka topic.
type Publisher struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured result topic.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newPublisher(w, metrics, logger)
}

func newPublisher(w messageWriter, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// Publish writes one result, keyed by run ID.
func (p *Publisher) Publish(ctx context.Context, r domain.AnalysisResult) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish result %s: %w", r.RunID, err)
	}
	p.metrics.ResultsPublished.Inc()
	return nil
}

// Run publishes every result committed to src after Run starts. It returns
// when ctx is done. Failed writes are logged and skipped.
func (p *Publisher) Run(ctx context.Context, src ResultSource) error {
	updates, unsubscribe := src.Subscribe()
	defer unsubscribe()

	var published uint64
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if first {
				// The initial snapshot carries whatever was committed before we
				// subscribed.
				published, first = snap.ResultVersion, false
				continue
			}
			if snap.Result == nil || snap.ResultVersion <= published {
				continue
			}
			published = snap.ResultVersion
			if err := p.Publish(ctx, *snap.Result); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.metrics.PublishErrors.Inc()
				p.logger.Error("result publish failed", "run_id", snap.Result.RunID, "error", err)
				continue
			}
			p.logger.Debug("result published", "run_id", snap.Result.RunID)
		}
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an AnalysisResult into a Kafka message.
func serializeToMessage(r domain.AnalysisResult) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize analysis result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(r.RunID)},
			{Key: "completed_at", Value: []byte(r.CompletedAt.Format(time.RFC3339))},
		},
	}, nil
}
