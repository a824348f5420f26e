package service

import (
	"context"
	"errors"
	"time"

	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/pkg/catalog"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
)

// relayGrace keeps the relay away from events whose post-checkout dispatch
// may still be in flight.
const relayGrace = 30 * time.Second

// StockDecrementer applies one stock decrement in the product directory.
type StockDecrementer interface {
	DecrementStock(ctx context.Context, id uint, quantity int, idempotencyKey string) (*catalog.Product, error)
}

// StockDispatcher delivers stock outbox events to the product directory.
type StockDispatcher struct {
	outboxRepo  repository.OutboxRepository
	directory   StockDecrementer
	batchSize   int
	maxAttempts int
	grace       time.Duration
}

func NewStockDispatcher(outboxRepo repository.OutboxRepository, directory StockDecrementer, batchSize, maxAttempts int) *StockDispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &StockDispatcher{
		outboxRepo:  outboxRepo,
		directory:   directory,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		grace:       relayGrace,
	}
}

// Dispatch sends each event once and records the outcome. It returns how
// many were delivered. Errors are logged, never returned.
func (d *StockDispatcher) Dispatch(ctx context.Context, events []model.StockOutbox) int {
	sent := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if d.deliver(ctx, event) {
			sent++
		}
	}
	return sent
}

func (d *StockDispatcher) deliver(ctx context.Context, event model.StockOutbox) bool {
	fields := map[string]interface{}{
		"event_id":   event.EventID,
		"cart_id":    event.CartID,
		"product_id": event.ProductID,
		"quantity":   event.Quantity,
		"attempt":    event.Attempts + 1,
	}

	_, err := d.directory.DecrementStock(ctx, event.ProductID, event.Quantity, event.EventID)
	if err == nil {
		if err := d.outboxRepo.MarkSent(event.ID); err != nil {
			// The decrement went through; the idempotency key makes the
			// relay's retry a no-op.
			logger.Error("Stock decremented but outbox not updated", err, fields)
		}
		logger.Debug("Stock decrement delivered", fields)
		return true
	}

	final := errors.Is(err, catalog.ErrProductNotFound) ||
		errors.Is(err, catalog.ErrInsufficientStock) ||
		event.Attempts+1 >= d.maxAttempts

	fields["final"] = final
	fields["error"] = err.Error()
	logger.Warn("Stock decrement failed", fields)

	if recErr := d.outboxRepo.RecordFailure(event.ID, err.Error(), final); recErr != nil {
		logger.Error("Failed to record stock decrement failure", recErr, fields)
	}
	return false
}

// RelayPending retries one batch of undelivered events.
func (d *StockDispatcher) RelayPending(ctx context.Context) (int, error) {
	events, err := d.outboxRepo.FindPending(d.batchSize, d.maxAttempts, time.Now().Add(-d.grace))
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	sent := d.Dispatch(ctx, events)
	logger.Info("Stock outbox relay finished", map[string]interface{}{
		"pending": len(events),
		"sent":    sent,
	})
	return sent, nil
}
