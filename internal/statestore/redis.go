package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis, for deployments running more
// than one authd instance behind a load balancer.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new RedisStore. The prefix namespaces ledger keys
// within a shared Redis instance.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) redisKey(state string) string {
	return fmt.Sprintf("%s:oauth_state:%s", s.prefix, state)
}

// Put implements Store.Put.
func (s *RedisStore) Put(ctx context.Context, state string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.redisKey(state), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to record oauth state in Redis: %w", err)
	}
	return nil
}

// Consume implements Store.Consume. GETDEL makes removal atomic so two
// racing callbacks cannot both consume the same state.
func (s *RedisStore) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, s.redisKey(state)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state in Redis: %w", err)
	}
	return true, nil
}

var _ Store = (*RedisStore)(nil)
