// Package events publishes audit events to an optional sink.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher sends keyed events.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
	Close() error
}

// Interaction is published once per routed query.
type Interaction struct {
	RequestID string    `json:"request_id"`
	Tool      string    `json:"tool"`
	Language  string    `json:"language"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes JSON events to a single topic.
type Kafka struct {
	writer messageWriter
	topic  string
}

// NewKafka creates a publisher for topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{writer: newWriter(brokers, topic), topic: topic}
}

// newWriter returns an async writer: WriteMessages only enqueues, so a slow
// or unreachable broker never delays an answer. Delivery failures are
// logged from the completion callback.
func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion:   logDelivery(topic),
	}
}

func logDelivery(topic string) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err != nil {
			zap.L().Warn("events: delivery failed",
				zap.String("topic", topic),
				zap.Int("messages", len(msgs)),
				zap.Error(err),
			)
		}
	}
}

// Publish implements Publisher.
func (k *Kafka) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return eris.Wrap(err, "events: marshal")
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return eris.Wrapf(err, "events: write to %s", k.topic)
	}
	zap.L().Debug("events: published", zap.String("topic", k.topic), zap.String("key", key))
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return eris.Wrap(k.writer.Close(), "events: close writer")
}

// Noop discards events.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, string, any) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

// New returns a Kafka publisher when brokers are configured, else Noop.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Noop{}
	}
	return NewKafka(brokers, topic)
}
