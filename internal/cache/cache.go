// Package cache stores fetched page markup and view statistics between runs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IshaanNene/wikicat/internal/config"
)

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout bounds the connect-time ping.
const connectionTimeout = 5 * time.Second

// Cache is a read-through store for remote lookups. Get methods report false
// on a miss.
type Cache interface {
	GetMarkup(ctx context.Context, title string) (string, bool, error)
	SetMarkup(ctx context.Context, title, markup string) error
	GetViews(ctx context.Context, title string) (float64, bool, error)
	SetViews(ctx context.Context, title string, views float64) error
	Close() error
}

// RedisCache implements Cache on Redis string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisCache connects to the configured Redis server and verifies the
// connection.
func NewRedisCache(cfg *config.CacheConfig, logger *slog.Logger) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		prefix: cfg.Prefix,
		logger: logger.With("component", "redis_cache"),
	}, nil
}

func (c *RedisCache) key(kind, title string) string {
	return c.prefix + kind + ":" + title
}

// GetMarkup implements Cache.
func (c *RedisCache) GetMarkup(ctx context.Context, title string) (string, bool, error) {
	markup, err := c.client.Get(ctx, c.key("markup", title)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get markup %q: %w", title, err)
	}
	return markup, true, nil
}

// SetMarkup implements Cache.
func (c *RedisCache) SetMarkup(ctx context.Context, title, markup string) error {
	if err := c.client.Set(ctx, c.key("markup", title), markup, c.ttl).Err(); err != nil {
		return fmt.Errorf("set markup %q: %w", title, err)
	}
	return nil
}

// GetViews implements Cache. A cached NaN means the statistics were
// unavailable when last fetched.
func (c *RedisCache) GetViews(ctx context.Context, title string) (float64, bool, error) {
	raw, err := c.client.Get(ctx, c.key("views", title)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get views %q: %w", title, err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.logger.Warn("discarding malformed cached views", "title", title, "value", raw)
		return 0, false, nil
	}
	return v, true, nil
}

// SetViews implements Cache.
func (c *RedisCache) SetViews(ctx context.Context, title string, views float64) error {
	raw := strconv.FormatFloat(views, 'g', -1, 64)
	if err := c.client.Set(ctx, c.key("views", title), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set views %q: %w", title, err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
