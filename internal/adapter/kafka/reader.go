package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/zschroder/pred-casualties/internal/config"
	"github.com/zschroder/pred-casualties/internal/domain"
)

// Reader consumes catalog records from the source topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	flush  time.Duration
	logger *slog.Logger
}

// NewReader creates a Kafka consumer for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroupID,
		Topic:       cfg.KafkaSourceTopic,
		StartOffset: kafkago.FirstOffset,
	})
	return &Reader{reader: r, flush: cfg.BatchFlushInterval, logger: logger}
}

// ExtractBatch fetches up to batchSize messages, returning early once the
// flush interval elapses without a new message. An empty batch with a nil
// error means the topic is idle; the pipeline uses that as the signal that
// the catalog is complete enough to cluster.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	batch := make([]domain.RawEvent, 0, batchSize)

	for len(batch) < batchSize {
		fetchCtx, cancel := context.WithTimeout(ctx, r.flush)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return batch, nil // idle topic
			}
			if len(batch) > 0 {
				return batch, nil
			}
			return nil, err
		}
		batch = append(batch, r.mapMessage(msg))
	}
	return batch, nil
}

// Close shuts down the consumer and leaves the group.
func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) mapMessage(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}
