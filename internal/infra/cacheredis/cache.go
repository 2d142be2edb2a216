package cacheredis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"vouchd/internal/domain"
	"vouchd/internal/usecase"
)

// Cache shares computed reputation between nodes through Redis. Entries are
// JSON; a decode failure on read is treated as a miss so a schema change
// never wedges reads.
type Cache struct {
	client *redis.Client
	prefix string
}

func New(addr, password string, db int, prefix string) (*Cache, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{client: client, prefix: prefix}, nil
}

func NewWithClient(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.ReputationStats, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stats domain.ReputationStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, nil
	}
	return &stats, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, stats domain.ReputationStats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

var _ usecase.ReputationCache = (*Cache)(nil)
