// Package events publishes committed ride lifecycle changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"gotogether/internal/domain"
)

const publishTimeout = 2 * time.Second

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON, keyed by grouped ride so every
// change to one ride lands on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: w}
}

// Publish writes one event.
func (k *KafkaPublisher) Publish(ctx context.Context, evt domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Key()),
		Value: b,
		Time:  evt.OccurredAt,
	})
}

// Close flushes pending writes.
func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
