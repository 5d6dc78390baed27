package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-settlement/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaPublisher publishes JSON encoded events keyed by order id.
type kafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
// Writes are asynchronous: PublishOrderStatusChanged hands the message to the
// writer's batch and returns, and delivery failures are reported through
// the writer's completion callback.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		Async:        true,
	}
	p := newKafkaPublisher(writer, logger)
	writer.Completion = p.completed
	return p
}

func newKafkaPublisher(writer messageWriter, logger zerolog.Logger) *kafkaPublisher {
	return &kafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "kafka-publisher").Logger(),
	}
}

// PublishOrderStatusChanged writes the event with the order id as message key
// so that events of one order stay ordered within a partition.
func (p *kafkaPublisher) PublishOrderStatusChanged(ctx context.Context, event OrderStatusChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("order_id", event.OrderID.String()).
		Str("to_status", event.ToStatus).
		Msg("order event queued")

	return nil
}

// completed receives the outcome of every asynchronous batch.
func (p *kafkaPublisher) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}

	metrics.EventPublishFailuresTotal.Add(float64(len(messages)))
	for _, msg := range messages {
		p.logger.Error().
			Err(err).
			Str("order_id", string(msg.Key)).
			Str("event_type", headerValue(msg.Headers, "event_type")).
			Msg("failed to deliver order event")
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close flushes pending batches and closes the underlying writer.
func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
