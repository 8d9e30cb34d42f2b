package cache_test

import (
	"context"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/wikicat/internal/cache"
	"github.com/IshaanNene/wikicat/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig().Cache
	cfg.Address = mr.Addr()
	cfg.TTL = time.Hour

	c, err := cache.NewRedisCache(&cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestMarkupRoundTrip(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_, ok, err := c.GetMarkup(ctx, "Mars")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetMarkup(ctx, "Mars", "{{Infobox planet}}"))
	markup, ok, err := c.GetMarkup(ctx, "Mars")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{{Infobox planet}}", markup)

	assert.True(t, mr.Exists("wikicat:markup:Mars"))
	mr.FastForward(2 * time.Hour)
	_, ok, _ = c.GetMarkup(ctx, "Mars")
	assert.False(t, ok, "entry should expire after the TTL")
}

func TestViewsRoundTrip(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetViews(ctx, "Mars", 1234.5))
	v, ok, err := c.GetViews(ctx, "Mars")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1234.5, v)

	require.NoError(t, c.SetViews(ctx, "Nobody", math.NaN()))
	v, ok, err = c.GetViews(ctx, "Nobody")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, math.IsNaN(v))

	require.NoError(t, mr.Set("wikicat:views:Broken", "lots"))
	_, ok, err = c.GetViews(ctx, "Broken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisCacheRequiresAddress(t *testing.T) {
	_, err := cache.NewRedisCache(&config.CacheConfig{}, testLogger)
	assert.ErrorIs(t, err, cache.ErrEmptyAddress)
}
