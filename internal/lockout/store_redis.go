package lockout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"corebank/internal/platform/redis"
)

const redisKeyPrefix = "lockout:"

// RedisStore shares failure counts across instances so a guesser cannot
// reset their budget by hopping between replicas. Records are JSON values
// with a server-side TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode lockout record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode lockout record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
