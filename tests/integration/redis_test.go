package integration

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// TestRedis_BasicOperations exercises the raw client the cache adapter and
// the Token Broker both sit on top of.
func TestRedis_BasicOperations(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("redis not available")
	}
	FlushRedis(t, env.Redis)
	ctx := env.ctx

	t.Run("SetGet", func(t *testing.T) {
		require.NoError(t, env.Redis.Set(ctx, "test:key", "test-value", time.Minute).Err())

		val, err := env.Redis.Get(ctx, "test:key").Result()
		require.NoError(t, err)
		require.Equal(t, "test-value", val)
	})

	t.Run("SetWithExpiration", func(t *testing.T) {
		require.NoError(t, env.Redis.Set(ctx, "test:expiring", "value", 100*time.Millisecond).Err())

		_, err := env.Redis.Get(ctx, "test:expiring").Result()
		require.NoError(t, err)

		time.Sleep(150 * time.Millisecond)

		_, err = env.Redis.Get(ctx, "test:expiring").Result()
		require.ErrorIs(t, err, redis.Nil)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, env.Redis.Set(ctx, "test:todelete", "value", time.Minute).Err())
		require.NoError(t, env.Redis.Del(ctx, "test:todelete").Err())

		_, err := env.Redis.Get(ctx, "test:todelete").Result()
		require.ErrorIs(t, err, redis.Nil)
	})
}

// TestRedis_TokenRecordCaching mirrors how the Token Broker caches the
// single global Token Record between vault reads (§4.1).
func TestRedis_TokenRecordCaching(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("redis not available")
	}
	FlushRedis(t, env.Redis)
	ctx := env.ctx

	const tokenCacheKey = "vehicle:token_record"
	payload := `{"access_token":"abc","refresh_token":"def","expires_at":"2026-08-01T00:00:00Z"}`

	require.NoError(t, env.Redis.Set(ctx, tokenCacheKey, payload, 10*time.Minute).Err())

	got, err := env.Redis.Get(ctx, tokenCacheKey).Result()
	require.NoError(t, err)
	require.Equal(t, payload, got)

	ttl, err := env.Redis.TTL(ctx, tokenCacheKey).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
