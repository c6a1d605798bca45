package consumers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/logger"
)

type MockReader struct {
	mock.Mock
}

func (m *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	args := m.Called(ctx)
	return args.Get(0).(kafka.Message), args.Error(1)
}

func (m *MockReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *MockReader) Close() error {
	return m.Called().Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReaderConfig(t *testing.T) {
	cfg := &config.KafkaConfig{
		Brokers:       "localhost:9092",
		GatewayTopic:  "gateway_events",
		ConsumerGroup: "wallet-worker-group",
		MinBytes:      1024,
		MaxBytes:      10240,
		MaxWait:       time.Second,
	}

	rc := readerConfig(cfg)
	assert.Equal(t, []string{"localhost:9092"}, rc.Brokers)
	assert.Equal(t, "gateway_events", rc.Topic)
	assert.Equal(t, "wallet-worker-group", rc.GroupID)
	assert.Equal(t, kafka.FirstOffset, rc.StartOffset)

	cfg.StartOffset = kafka.LastOffset
	assert.Equal(t, kafka.LastOffset, readerConfig(cfg).StartOffset)
}

func TestHeaderValue(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: "dlq-reason", Value: []byte("x")},
		{Key: correlationHeader, Value: []byte("corr-1")},
	}}

	assert.Equal(t, "corr-1", headerValue(msg, correlationHeader))
	assert.Empty(t, headerValue(kafka.Message{}, correlationHeader))
}

func TestKafkaConsumer_Process(t *testing.T) {
	ctx := context.Background()
	msg := kafka.Message{
		Topic:   "gateway_events",
		Key:     []byte("evt-1"),
		Value:   []byte(`{"type":"payment.succeeded"}`),
		Headers: []kafka.Header{{Key: correlationHeader, Value: []byte("corr-9")}},
	}

	t.Run("CommitsAfterSuccess", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("CommitMessages", ctx, []kafka.Message{msg}).Return(nil).Once()
		c := &KafkaConsumer{reader: reader, logger: testLogger()}

		var gotCorrelation string
		c.process(ctx, msg, func(ctx context.Context, key, value []byte) error {
			gotCorrelation = logger.CorrelationID(ctx)
			assert.Equal(t, "evt-1", string(key))
			return nil
		})

		assert.Equal(t, "corr-9", gotCorrelation)
		reader.AssertExpectations(t)
	})

	t.Run("LeavesOffsetOnFailure", func(t *testing.T) {
		reader := new(MockReader)
		c := &KafkaConsumer{reader: reader, logger: testLogger()}

		c.process(ctx, msg, func(context.Context, []byte, []byte) error {
			return errors.New("database unavailable")
		})

		reader.AssertNotCalled(t, "CommitMessages", mock.Anything, mock.Anything)
	})
}

func TestKafkaConsumer_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Key: []byte("evt-1"), Value: []byte("{}")}
	reader := new(MockReader)
	reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, errors.New("rebalance in progress")).Once()
	reader.On("FetchMessage", mock.Anything).Return(msg, nil).Once()
	reader.On("CommitMessages", mock.Anything, []kafka.Message{msg}).Return(nil).Once()
	reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, context.Canceled).Run(func(mock.Arguments) {
		cancel()
	})

	c := &KafkaConsumer{reader: reader, logger: testLogger(), fetchBackoff: time.Millisecond}

	var mu sync.Mutex
	var handled int
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.consume(ctx, func(context.Context, []byte, []byte) error {
			mu.Lock()
			handled++
			mu.Unlock()
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}

	mu.Lock()
	assert.Equal(t, 1, handled)
	mu.Unlock()
	reader.AssertExpectations(t)
}

func TestKafkaConsumer_Close(t *testing.T) {
	t.Run("NilReader", func(t *testing.T) {
		c := &KafkaConsumer{logger: testLogger()}
		require.NoError(t, c.Close())
	})

	t.Run("ClosesReader", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("Close").Return(nil).Once()
		c := &KafkaConsumer{reader: reader, logger: testLogger()}
		require.NoError(t, c.Close())
		reader.AssertExpectations(t)
	})
}
