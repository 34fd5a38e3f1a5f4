package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实 Redis：REDIS_URL 未设置时跳过
func liveClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewClientFromURL(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestAuditCache_MissThenHit(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	cache := NewAuditCache(c, "test:"+uuid.NewString()+":")

	_, ok, err := cache.GetReport(ctx, "audit:p1:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetReport(ctx, "audit:p1:abc", []byte(`{"overallScore":80}`), time.Minute))
	data, ok, err := cache.GetReport(ctx, "audit:p1:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"overallScore":80}`, string(data))

	require.NoError(t, cache.Invalidate(ctx, "p1"))
	_, ok, err = cache.GetReport(ctx, "audit:p1:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	l := NewRateLimiter(c)
	key := BuildRateLimitKey("127.0.0.1", uuid.NewString())
	defer func() { _ = l.Reset(ctx, key) }()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	left, err := l.Remaining(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, left)
}

func TestIsNil(t *testing.T) {
	assert.False(t, IsNil(nil))
	assert.False(t, IsNil(context.Canceled))
}
