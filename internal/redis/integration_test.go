package redis

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goredis "github.com/redis/go-redis/v9"
)

// newTestClient connects to REDIS_TEST_ADDR or skips.
func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(t.Context()).Err())
	t.Cleanup(func() {
		client.FlushDB(t.Context())
		client.Close()
	})
	return client
}

func TestPresenceStoreLifecycle(t *testing.T) {
	client := newTestClient(t)
	store := NewPresenceStore(client, time.Minute)
	ctx := t.Context()
	alice := uuid.New()

	require.NoError(t, store.TrackConnection(ctx, alice, "c1"))
	require.NoError(t, store.TrackConnection(ctx, alice, "c2"))

	online, err := store.CheckOnline(ctx, alice)
	require.NoError(t, err)
	assert.True(t, online)

	last, err := store.RemoveConnection(ctx, alice, "c1")
	require.NoError(t, err)
	assert.False(t, last)

	last, err = store.RemoveConnection(ctx, alice, "c2")
	require.NoError(t, err)
	assert.True(t, last)

	online, err = store.CheckOnline(ctx, alice)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRateLimiterCapsWithinWindow(t *testing.T) {
	client := newTestClient(t)
	limiter := NewRateLimiter(client, RateLimitConfig{MessageLimit: 3, MessageWindow: time.Minute})
	ctx := t.Context()
	alice := uuid.New()

	for i := 0; i < 3; i++ {
		ok, err := limiter.AllowMessage(ctx, alice)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.AllowMessage(ctx, alice)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, limiter.ResetUser(ctx, alice))
	ok, err = limiter.AllowMessage(ctx, alice)
	require.NoError(t, err)
	assert.True(t, ok)
}
