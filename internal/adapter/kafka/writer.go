// Package kafka publishes cycle results to a Kafka topic for downstream
// consumers (dashboards, incident archives).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-response-coordinator/internal/orchestrator"
)

// Publisher produces one message per completed cycle. It implements
// orchestrator.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the result topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishResult serializes and publishes one cycle result, keyed by session
// so a topic consumer sees each session's cycles in order.
func (p *Publisher) PublishResult(ctx context.Context, res orchestrator.Result) error {
	msg, err := serializeResult(res)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	p.logger.Debug("result published",
		"session_id", res.SessionID, "phase", res.Phase, "planning_triggered", res.PlanningTriggered)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeResult marshals a cycle result into a Kafka message.
func serializeResult(res orchestrator.Result) (kafkago.Message, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(res.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "management_phase", Value: []byte(res.Phase)},
			{Key: "planning_triggered", Value: []byte(strconv.FormatBool(res.PlanningTriggered))},
			{Key: "produced_at", Value: []byte(res.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
