package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shared-event-wallet/internal/config"
)

const (
	topicReadAttempts = 5
	topicReadBackoff  = 2 * time.Second
)

type topicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

func newTopicSpec(name string, cfg *config.KafkaConfig) topicSpec {
	spec := topicSpec{
		Name:              name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if spec.NumPartitions <= 0 {
		spec.NumPartitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}
	return spec
}

// provisionTopic dials the broker and makes sure spec exists
func provisionTopic(ctx context.Context, log *slog.Logger, brokers string, spec topicSpec) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return ensureTopic(ctx, log, conn, spec, topicReadBackoff)
}

// ensureTopic creates spec when the broker reports no partitions for it. Read
// errors are retried because a freshly started broker answers metadata
// requests before it is ready.
func ensureTopic(ctx context.Context, log *slog.Logger, admin topicAdmin, spec topicSpec, backoff time.Duration) error {
	var partitions []kafka.Partition
	var err error

	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(spec.Name)
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions", "topic", spec.Name, "attempt", attempt, "error", err)
		if attempt == topicReadAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", spec.Name, "partitions", len(partitions))
		return nil
	}

	log.Info("Creating Kafka topic",
		"topic", spec.Name,
		"partitions", spec.NumPartitions,
		"replication_factor", spec.ReplicationFactor,
	)
	if err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", spec.Name, err)
	}
	return nil
}
