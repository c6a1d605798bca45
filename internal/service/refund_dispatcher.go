package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/shared-event-wallet/internal/domain/settlement"
)

// RefundOutcome is the result of one refund in a batch
type RefundOutcome struct {
	UserID       uuid.UUID               `json:"user_id"`
	RefundAmount int64                   `json:"refund_amount"`
	Status       settlement.RefundStatus `json:"refund_status"`
	Error        string                  `json:"error,omitempty"`
}

// RefundFunc pays out one participant's refund
type RefundFunc func(ctx context.Context, userID uuid.UUID) (*settlement.Record, error)

// RefundDispatcher pays out refunds concurrently on a bounded ants pool
type RefundDispatcher struct {
	pool   *ants.Pool
	logger *slog.Logger
}

type RefundDispatcherConfig struct {
	Size int
}

func NewRefundDispatcher(config RefundDispatcherConfig, logger *slog.Logger) (*RefundDispatcher, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &RefundDispatcher{
		pool:   pool,
		logger: logger,
	}, nil
}

// Dispatch runs fn for every record and waits for all of them. Outcomes keep
// the order of records.
func (d *RefundDispatcher) Dispatch(ctx context.Context, records []*settlement.Record, fn RefundFunc) []RefundOutcome {
	outcomes := make([]RefundOutcome, len(records))
	var wg sync.WaitGroup

	for i, rec := range records {
		i, rec := i, rec
		outcomes[i] = RefundOutcome{UserID: rec.UserID, RefundAmount: rec.RefundAmount, Status: rec.RefundStatus}

		wg.Add(1)
		err := d.pool.Submit(func() {
			defer wg.Done()

			updated, err := fn(ctx, rec.UserID)
			if updated != nil {
				outcomes[i].Status = updated.RefundStatus
			}
			if err != nil {
				outcomes[i].Error = err.Error()
			}
		})
		if err != nil {
			wg.Done()
			d.logger.Error("Failed to submit refund to worker pool",
				"event_id", rec.EventID.String(),
				"user_id", rec.UserID.String(),
				"error", err,
			)
			outcomes[i].Error = err.Error()
		}
	}

	wg.Wait()
	return outcomes
}

// Shutdown gracefully shuts down the worker pool.
func (d *RefundDispatcher) Shutdown() {
	d.logger.Info("Shutting down refund worker pool", "running_workers", d.pool.Running())
	d.pool.Release()
}

// Running returns the number of running workers in the pool.
func (d *RefundDispatcher) Running() int {
	return d.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (d *RefundDispatcher) Capacity() int {
	return d.pool.Cap()
}
