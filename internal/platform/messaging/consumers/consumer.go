package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/logger"
)

// MessageHandler processes one message. A nil return commits the offset. The
// context carries the producer's correlation ID when the message had one.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// correlationHeader mirrors producers.CorrelationHeader
const correlationHeader = "correlation-id"

const defaultFetchBackoff = time.Second

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error
	Close() error
}

// messageReader is the subset of *kafka.Reader the consumer drives
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads the gateway topic with explicit commits, so a message
// whose handler fails is redelivered.
type KafkaConsumer struct {
	reader       messageReader
	logger       *slog.Logger
	fetchBackoff time.Duration
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	return &KafkaConsumer{
		logger:       logger,
		reader:       kafka.NewReader(readerConfig(cfg)),
		fetchBackoff: defaultFetchBackoff,
	}
}

func readerConfig(cfg *config.KafkaConfig) kafka.ReaderConfig {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}
	return kafka.ReaderConfig{
		Brokers:     []string{cfg.Brokers},
		Topic:       cfg.GatewayTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: startOffset,
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Subscribe starts consuming in the background and returns immediately. The
// loop stops when ctx is canceled.
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic",
		"topic", topic,
		"group_id", groupID,
	)
	go c.consume(ctx, handler)
	return nil
}

func (c *KafkaConsumer) consume(ctx context.Context, handler MessageHandler) {
	for {
		if ctx.Err() != nil {
			c.logger.Info("Context canceled, stopping consumer")
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message from Kafka", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		c.process(ctx, msg, handler)
	}
}

// process runs handler on msg and commits only on success
func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message, handler MessageHandler) {
	log := c.logger.With(
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
	)
	log.Debug("Received message from Kafka")

	msgCtx := logger.WithCorrelationID(ctx, headerValue(msg, correlationHeader))
	if err := handler(msgCtx, msg.Key, msg.Value); err != nil {
		log.Error("Failed to process message, will not commit offset", "error", err)
		return
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("Failed to commit message after successful processing", "error", err)
		return
	}
	log.Debug("Message committed successfully")
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
