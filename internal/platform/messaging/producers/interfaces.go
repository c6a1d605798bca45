package producers

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/shared-event-wallet/internal/domain/shared"
)

// CorrelationHeader carries the request correlation ID across Kafka hops
const CorrelationHeader = "correlation-id"

// GatewayEventPublisher enqueues verified gateway callbacks for the worker
type GatewayEventPublisher interface {
	Publish(ctx context.Context, key string, ev shared.GatewayEvent) error
	Close() error
}

// DeadLetterPublisher parks messages the worker can never apply
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter is the subset of *kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// topicAdmin is the subset of *kafka.Conn used to provision topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}
