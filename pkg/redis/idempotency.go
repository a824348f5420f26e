package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
)

// DefaultIdempotencyTTL is how long a completed key blocks a replay.
const DefaultIdempotencyTTL = 24 * time.Hour

// DefaultIdempotencyLease is how long a claimed but unfinished key blocks
// other requests. A claim whose request died frees itself after the lease.
const DefaultIdempotencyLease = time.Minute

const (
	keyInProgress = "en_curso"
	keyDone       = "hecho"
)

// IdempotencyStore remembers request keys. A key is first claimed as in
// progress under a short lease and only marked done once its change applied.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	lease  time.Duration
}

func NewIdempotencyStore(client *redis.Client, prefix string, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, prefix: prefix, ttl: ttl, lease: DefaultIdempotencyLease}
}

// Claim reserves key with SETNX. When the key is already held, completed
// reports whether the earlier request finished.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (claimed bool, completed bool, err error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, keyInProgress, s.lease).Result()
	if err != nil {
		logger.Error("Failed to claim idempotency key", err, map[string]interface{}{
			"key": key,
		})
		return false, false, fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return true, false, nil
	}

	state, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// The lease ran out between the two calls; the caller retries.
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("idempotency state: %w", err)
	}
	return false, state == keyDone, nil
}

// Complete marks key as applied for the full TTL.
func (s *IdempotencyStore) Complete(ctx context.Context, key string) error {
	if err := s.client.Set(ctx, s.prefix+key, keyDone, s.ttl).Err(); err != nil {
		logger.Error("Failed to complete idempotency key", err, map[string]interface{}{
			"key": key,
		})
		return err
	}
	return nil
}

// Release drops a claim so a failed request can be retried with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		logger.Warn("Failed to release idempotency key", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return err
	}
	return nil
}
