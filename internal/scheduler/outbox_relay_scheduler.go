package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
)

// DefaultRelaySpec runs the relay once a minute.
const DefaultRelaySpec = "@every 1m"

// relayTimeout bounds a single relay run so a stalled directory cannot pile
// up overlapping runs.
const relayTimeout = 50 * time.Second

// PendingRelayer re-sends stock decrements that have not reached the
// product directory yet.
type PendingRelayer interface {
	RelayPending(ctx context.Context) (int, error)
}

// OutboxRelayScheduler periodically re-dispatches pending stock outbox events.
type OutboxRelayScheduler struct {
	cron    *cron.Cron
	relayer PendingRelayer
	spec    string
}

// NewOutboxRelayScheduler builds the scheduler. An empty spec means
// DefaultRelaySpec.
func NewOutboxRelayScheduler(relayer PendingRelayer, spec string) *OutboxRelayScheduler {
	if spec == "" {
		spec = DefaultRelaySpec
	}
	return &OutboxRelayScheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		relayer: relayer,
		spec:    spec,
	}
}

// Start registers the relay job and starts the cron.
func (s *OutboxRelayScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		logger.Error("Failed to add cron job for outbox relay", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Outbox relay scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// RunOnce relays one batch of pending events.
func (s *OutboxRelayScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()

	sent, err := s.relayer.RelayPending(ctx)
	if err != nil {
		logger.Error("Outbox relay run failed", err)
		return
	}
	if sent > 0 {
		logger.Info("Outbox relay delivered pending stock updates", map[string]interface{}{
			"sent": sent,
		})
	}
}

// Stop stops the cron and waits for a running relay to finish or ctx to
// expire.
func (s *OutboxRelayScheduler) Stop(ctx context.Context) error {
	logger.Info("Stopping outbox relay scheduler...")
	done := s.cron.Stop()

	select {
	case <-done.Done():
		logger.Info("Outbox relay scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
