// Package kafka publishes expense.recorded events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/events"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "expense_recorded"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher writes to topic on brokers. Messages are keyed by expense id
// so every event for one record lands on the same partition.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newPublisher(w, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, topic: topic, logger: logger.With("component", "kafka")}
}

func (p *Publisher) PublishExpenseRecorded(ctx context.Context, id int64) error {
	msg := events.NewExpenseRecorded(id, events.CurrentVersion)
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(id, 10)),
		Value: data,
		Time:  msg.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(events.TypeExpenseRecorded)},
		},
	})
	if err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	p.logger.InfoContext(ctx, "Published expense event", "id", id, "topic", p.topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
