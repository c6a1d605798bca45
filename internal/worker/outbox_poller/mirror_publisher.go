package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shared-event-wallet/internal/domain/ledger"
	"github.com/shared-event-wallet/internal/domain/outbox"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// MirrorPublisher copies outbox snapshots into the ledger mirror
type MirrorPublisher interface {
	PublishToMirror(ctx context.Context, message *outbox.Message) error
}

// MirrorPublisherImpl implements MirrorPublisher
type MirrorPublisherImpl struct {
	outboxRepo outbox.Repository
	mirrorRepo ledger.MirrorRepository
	logger     *slog.Logger
}

func NewMirrorPublisher(
	outboxRepo outbox.Repository,
	mirrorRepo ledger.MirrorRepository,
	logger *slog.Logger,
) MirrorPublisher {
	return &MirrorPublisherImpl{
		outboxRepo: outboxRepo,
		mirrorRepo: mirrorRepo,
		logger:     logger,
	}
}

// PublishToMirror upserts the transaction snapshot carried by message and
// marks the message PROCESSED. Replaying a message is harmless.
func (p *MirrorPublisherImpl) PublishToMirror(ctx context.Context, message *outbox.Message) error {
	tx, err := message.GetTransaction()
	if err != nil {
		p.logger.Error("Failed to unmarshal transaction from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if message.CorrelationID != "" {
		logger = p.logger.With("correlation_id", message.CorrelationID)
	}

	txID := tx.ID.String()
	existing, err := p.mirrorRepo.GetByTransactionID(ctx, txID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		logger.Error("Failed to check existing mirror entry", "transaction_id", txID, "error", err)
		return fmt.Errorf("failed to check existing mirror entry %s: %w", txID, err)
	}

	switch {
	case existing == nil:
		if err := p.mirrorRepo.Create(ctx, ledger.NewEntry(tx, message.CorrelationID)); err != nil {
			logger.Error("Failed to create mirror entry in MongoDB", "transaction_id", txID, "error", err)
			return fmt.Errorf("failed to create mirror entry %s: %w", txID, err)
		}
		logger.Info("Created mirror entry", "transaction_id", txID, "status", string(tx.Status))
	case existing.Status != tx.Status || existing.GatewayTxRef != tx.GatewayTxRef:
		if err := p.mirrorRepo.UpdateStatus(ctx, txID, tx.Status, tx.GatewayTxRef); err != nil {
			logger.Error("Failed to update mirror entry", "transaction_id", txID, "error", err)
			return fmt.Errorf("failed to update mirror entry %s: %w", txID, err)
		}
		logger.Info("Updated mirror entry", "transaction_id", txID, "status", string(tx.Status))
	default:
		logger.Debug("Mirror entry already current", "transaction_id", txID)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "transaction_id", txID, "error", err,
		)
		return fmt.Errorf("mirror write for %s OK, but failed to mark outbox %d as PROCESSED: %w", txID, message.ID, err)
	}
	return nil
}
