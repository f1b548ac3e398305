package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cachedBreakdown struct {
	SessionID string  `json:"session_id"`
	Score     float64 `json:"score"`
}

func newTestCache(t *testing.T) (CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, zap.NewNop()), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, ResultsKey("s1"), cachedBreakdown{SessionID: "s1", Score: 72.5}, time.Minute))

	var got cachedBreakdown
	require.NoError(t, c.Get(ctx, ResultsKey("s1"), &got))
	assert.Equal(t, 72.5, got.Score)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, ResultsKey("s1"), &got), ErrCacheMiss)
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(ResultsKey("bad"), "{not json"))

	var got cachedBreakdown
	assert.ErrorIs(t, c.Get(context.Background(), ResultsKey("bad"), &got), ErrCacheMiss)
	assert.False(t, mr.Exists(ResultsKey("bad")))
}

func TestRedisCache_DeletePattern(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, c.Set(ctx, ResultsKey(id), cachedBreakdown{SessionID: id}, 0))
	}
	require.NoError(t, c.Set(ctx, "other", 1, 0))

	require.NoError(t, c.DeletePattern(ctx, "interview:results:*"))
	assert.False(t, mr.Exists(ResultsKey("a")))
	assert.False(t, mr.Exists(ResultsKey("b")))
	assert.True(t, mr.Exists("other"))
}
