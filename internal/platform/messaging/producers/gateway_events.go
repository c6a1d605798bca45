package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/logger"
)

// GatewayEventProducer forwards verified payment gateway callbacks onto the
// gateway topic. Writes are synchronous: the webhook only acknowledges the
// gateway once the broker has the event.
type GatewayEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewGatewayEventProducer creates the producer and ensures the topic exists
func NewGatewayEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*GatewayEventProducer, error) {
	if cfg.GatewayTopic == "" {
		return nil, fmt.Errorf("kafka gateway topic is not configured")
	}

	if err := provisionTopic(ctx, logger, cfg.Brokers, newTopicSpec(cfg.GatewayTopic, cfg)); err != nil {
		return nil, fmt.Errorf("failed to ensure gateway topic %s exists: %w", cfg.GatewayTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.GatewayTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &GatewayEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.GatewayTopic,
	}, nil
}

// Publish writes ev as JSON. Keys are event IDs so callbacks for the same
// event land on one partition. The correlation header prefers the request
// context and falls back to the ID stamped on the event.
func (p *GatewayEventProducer) Publish(ctx context.Context, key string, ev shared.GatewayEvent) error {
	jsonValue, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}
	id := logger.CorrelationID(ctx)
	if id == "" {
		id = ev.CorrelationID
	}
	if id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: CorrelationHeader, Value: []byte(id)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish gateway event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish gateway event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published gateway event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *GatewayEventProducer) Close() error {
	p.logger.Info("Closing gateway event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close gateway kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
