package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON values so they survive restarts and can be
// shared by several bot replicas. Per-user serialization still relies on the
// in-process KeyedMutex, so replicas must not receive updates for the same user
// concurrently (Telegram delivers each bot's updates to one consumer).
type RedisStore[S any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore builds a store using keys "<prefix><userID>". A zero ttl keeps
// sessions until they are deleted.
func NewRedisStore[S any](client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore[S] {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisStore[S]{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore[S]) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

// Get loads and decodes the user's session.
func (r *RedisStore[S]) Get(ctx context.Context, userID int64) (S, bool, error) {
	var s S
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("redis session get: %w", err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, false, fmt.Errorf("redis session decode: %w", err)
	}
	return s, true, nil
}

// Put encodes and stores the user's session, refreshing its TTL.
func (r *RedisStore[S]) Put(ctx context.Context, userID int64, session S) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis session encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis session put: %w", err)
	}
	return nil
}

// Delete removes the user's session.
func (r *RedisStore[S]) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis session delete: %w", err)
	}
	return nil
}
