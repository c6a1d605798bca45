// Package outbox_poller drains the transactional outbox into the MongoDB
// ledger mirror.
package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shared-event-wallet/internal/config"
	"github.com/shared-event-wallet/internal/domain/outbox"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// maxBatchesPerTick bounds how long one tick may keep draining a backlog
const maxBatchesPerTick = 20

// Poller mirrors pending outbox messages. A settlement writes one message per
// refund, so a tick keeps fetching while batches come back full.
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        MirrorPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

// batchResult counts what happened to one fetched batch
type batchResult struct {
	fetched  int
	mirrored int
	failed   int
	parked   int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher MirrorPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger.With("component", "outbox_poller"),
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start drains once to catch up after a restart, then on every tick until ctx is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Mirroring outbox to ledger",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	p.drain(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox mirroring stopped")
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain mirrors batches back to back while they come back full and clean.
// A batch with failures ends the tick so failing messages are not retried
// in a tight loop.
func (p *Poller) drain(ctx context.Context) {
	var total batchResult
	for i := 0; i < maxBatchesPerTick && ctx.Err() == nil; i++ {
		res, err := p.mirrorBatch(ctx)
		if err != nil {
			p.logger.Error("Outbox batch failed", "error", err)
			break
		}
		total.fetched += res.fetched
		total.mirrored += res.mirrored
		total.failed += res.failed
		total.parked += res.parked

		if res.fetched < p.batchSize || res.failed > 0 {
			break
		}
	}

	if total.fetched > 0 {
		p.logger.Info("Outbox drained",
			"fetched", total.fetched,
			"mirrored", total.mirrored,
			"failed", total.failed,
			"parked", total.parked,
		)
	}
}

func (p *Poller) mirrorBatch(ctx context.Context) (batchResult, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return batchResult{}, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	res := batchResult{fetched: len(messages)}
	for _, msg := range messages {
		log := p.logger.With("outbox_id", msg.ID, "transaction_id", msg.TransactionID.String(), "event_id", msg.EventID.String())
		if msg.CorrelationID != "" {
			log = log.With("correlation_id", msg.CorrelationID)
		}

		if err := p.publisher.PublishToMirror(ctx, msg); err != nil {
			res.failed++
			if p.recordFailure(ctx, log, msg, err) {
				res.parked++
			}
			continue
		}
		res.mirrored++
	}
	return res, nil
}

// recordFailure counts the attempt and parks the message once it runs out of
// retries. It reports whether the message was parked.
func (p *Poller) recordFailure(ctx context.Context, log *slog.Logger, msg *outbox.Message, cause error) bool {
	attempts := msg.Attempts + 1
	log.Error("Failed to mirror ledger entry", "attempt", attempts, "error", cause)

	if err := p.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
		log.Error("Failed to count mirror attempt", "error", err)
		return false
	}
	if attempts < p.maxRetryAttempts {
		return false
	}

	log.Warn("Ledger entry will not be mirrored again", "attempts", attempts)
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		log.Error("Failed to park outbox message", "error", err)
		return false
	}
	return true
}
