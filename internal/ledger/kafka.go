package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"solana-copy-trader/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes records to a Kafka topic, keyed by wallet so that
// one wallet's records stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	})
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Name implements Publisher.
func (k *KafkaPublisher) Name() string { return "kafka" }

// Publish implements Publisher.
func (k *KafkaPublisher) Publish(ctx context.Context, r *domain.TradeRecord) error {
	msg, err := kafkaMessage(r)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close implements Publisher.
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

func kafkaMessage(r *domain.TradeRecord) (kafka.Message, error) {
	data, err := encodeRecord(r)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode record: %w", err)
	}
	return kafka.Message{
		Key:   []byte(r.Wallet),
		Value: data,
		Time:  time.UnixMilli(r.CompletedAt),
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(r.EventID)},
			{Key: "status", Value: []byte(r.Status)},
			{Key: "protocol", Value: []byte(r.Protocol)},
		},
	}, nil
}
