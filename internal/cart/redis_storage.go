package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps the cart under one key with no expiry.
type RedisStorage struct {
	client *redis.Client
	key    string
}

func NewRedisStorage(client *redis.Client, terminalID string) *RedisStorage {
	return &RedisStorage{
		client: client,
		key:    storageKey(terminalID),
	}
}

func (r *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStorage) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func storageKey(terminalID string) string {
	return fmt.Sprintf("pos:cart:%s", terminalID)
}
