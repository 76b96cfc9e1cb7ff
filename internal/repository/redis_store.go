package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each snapshot under <prefix><name>
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis backed snapshot store
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Load gets the snapshot key
func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	return data, err
}

// Save overwrites the snapshot key without expiry
func (s *RedisStore) Save(ctx context.Context, name string, payload []byte) error {
	return s.client.Set(ctx, s.prefix+name, payload, 0).Err()
}
