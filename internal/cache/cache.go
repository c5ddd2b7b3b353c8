// Package cache is a Redis-backed read cache for analytics responses.
// Calculation engines write through the store; this layer only shortcuts
// repeated dashboard reads and is invalidated whenever a company gains a
// new result or assessment.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "comply:analytics:"

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Key builds a namespaced cache key for one company's view. Parts that
// vary per request (framework ID, month window) go in extra.
func Key(companyID uuid.UUID, view string, extra ...string) string {
	key := keyPrefix + companyID.String() + ":" + view
	for _, part := range extra {
		key += ":" + part
	}
	return key
}

// Get unmarshals a cached value into dest. The second return is false on
// a miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decoding cached value: %w", err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// InvalidateCompany drops every cached view for a company. Called after
// a new compliance result or risk assessment lands.
func (c *Cache) InvalidateCompany(ctx context.Context, companyID uuid.UUID) error {
	pattern := keyPrefix + companyID.String() + ":*"

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
