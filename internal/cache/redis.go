package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sitecms/internal/config"
	"github.com/sitecms/internal/logging"
)

const keyPrefix = "sitecms:"

var (
	// ErrCacheDisabled is returned when cache operations run without a redis client.
	ErrCacheDisabled = errors.New("cache is disabled")
	// ErrCacheMiss is returned when the key does not exist.
	ErrCacheMiss = errors.New("cache miss")
)

// Cache wraps a redis client. A nil *Cache is valid and behaves as disabled.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New 根据配置连接 Redis；未配置 URL 时返回 nil 表示禁用缓存。
func New(cfg config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled() {
		logging.Named("cache").Info("redis cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	logging.Named("cache").Info("redis connection established")
	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Enabled reports whether the cache has a live client.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON 读取并反序列化缓存值。
func (c *Cache) GetJSON(ctx context.Context, key string, dst interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	raw, err := c.client.Get(ctx, namespaced(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON 序列化后写入缓存，使用默认 TTL。
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, namespaced(key), raw, c.ttl).Err()
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, namespaced(key))
	}
	return c.client.Del(ctx, full...).Err()
}

// Health pings redis.
func (c *Cache) Health(ctx context.Context) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the redis connection.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func namespaced(key string) string {
	if strings.HasPrefix(key, keyPrefix) {
		return key
	}
	return keyPrefix + key
}
