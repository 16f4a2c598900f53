// Package kafka mirrors execution log entries onto an audit topic for
// downstream consumers. Publishing is best-effort; the orchestrator never
// blocks a cycle on it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/campaign-autopilot/cap/internal/models"
)

// Publisher writes execution events to a Kafka topic
type Publisher struct {
	brokers []string
	writer  *kafka.Writer
}

// NewPublisher creates an async publisher for the execution topic
func NewPublisher(brokers, topic string) *Publisher {
	return &Publisher{
		brokers: []string{brokers},
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes one execution log entry, keyed by rule so per-rule
// ordering survives partitioning.
func (p *Publisher) Publish(ctx context.Context, entry models.ExecutionLogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal execution event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.RuleID),
		Value: value,
		Time:  entry.CreatedAt,
	})
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Health checks if Kafka is reachable
func (p *Publisher) Health(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka unreachable: %w", err)
	}
	defer conn.Close()
	return nil
}
