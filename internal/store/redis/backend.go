// Package redis stores the state document as a single Redis string.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/staywatch/internal/state"
	"github.com/redis/go-redis/v9"
)

// Backend keeps the whole document under one key. SET replaces the value
// atomically, so readers never see a partial document.
type Backend struct {
	client *redis.Client
	key    string
}

// New wraps an already connected client.
func New(client *redis.Client, key string) *Backend {
	if key == "" {
		key = DefaultKey
	}
	return &Backend{client: client, key: key}
}

func (b *Backend) Name() string { return "redis:" + b.key }

func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, state.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, data []byte) error {
	// No TTL: the snapshot must outlive any gap between runs.
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}
