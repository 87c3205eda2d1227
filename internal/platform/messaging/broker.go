package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"quadfund/contexts/funding-core/round-registry-service/ports"
)

// KafkaBus publishes and consumes envelopes over real Kafka brokers. The
// worker process uses it for the outbox relay and the payment-confirmed
// consumer; tests use InProcessBus instead.
type KafkaBus struct {
	brokers []string
	logger  *slog.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaBus(brokers []string, logger *slog.Logger) *KafkaBus {
	return &KafkaBus{
		brokers: brokers,
		logger:  logger,
		writers: make(map[string]*kafka.Writer),
	}
}

func (b *KafkaBus) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = b.writer(topic).WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PartitionKey),
		Value: payload,
	})
	if err != nil {
		if b.logger != nil {
			b.logger.Error("kafka publish failed",
				"event", "kafka_publish_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
				"error", err.Error(),
			)
		}
		return err
	}
	if b.logger != nil {
		b.logger.Info("event published",
			"event", "kafka_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
	}
	return nil
}

func (b *KafkaBus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		GroupID:  consumerGroup,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})

	go func() {
		defer func() { _ = reader.Close() }()
		for {
			message, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if b.logger != nil {
					b.logger.Error("kafka fetch failed",
						"event", "kafka_fetch_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"error", err.Error(),
					)
				}
				continue
			}

			var event ports.EventEnvelope
			if err := json.Unmarshal(message.Value, &event); err != nil {
				if b.logger != nil {
					b.logger.Error("kafka envelope decode failed",
						"event", "kafka_decode_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"error", err.Error(),
					)
				}
				_ = reader.CommitMessages(ctx, message)
				continue
			}

			if err := handler(ctx, event); err != nil {
				if b.logger != nil {
					b.logger.Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
				// Leave the offset uncommitted so the event is redelivered.
				continue
			}
			_ = reader.CommitMessages(ctx, message)
		}
	}()
	return nil
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, writer := range b.writers {
		_ = writer.Close()
	}
	b.writers = make(map[string]*kafka.Writer)
	return nil
}

func (b *KafkaBus) writer(topic string) *kafka.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.writers[topic]; ok {
		return existing
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(b.brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	b.writers[topic] = writer
	return writer
}
