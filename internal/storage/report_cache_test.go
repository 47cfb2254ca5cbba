package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReportCache(t *testing.T) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewReportCache(NewRedisCacheFromClient(client), time.Minute), mr
}

type cachedRow struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func TestReportCache_SetGet(t *testing.T) {
	cache, mr := setupReportCache(t)
	ctx := testContext(t)

	key := cache.GenerateCacheKey("alice", ReportTokens, "spam=exclude", "wallet=So1AbC")
	assert.Equal(t, "report:alice:tokens:spam=exclude:wallet=So1AbC", key)

	var got []cachedRow
	hit, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	want := []cachedRow{{Name: "USDC", Value: "100"}}
	require.NoError(t, cache.Set(ctx, "alice", key, want))

	hit, err = cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	hit, err = cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, hit, "entry should expire after the TTL")
}

func TestReportCache_InvalidateUser(t *testing.T) {
	cache, mr := setupReportCache(t)
	ctx := testContext(t)

	aliceChains := cache.GenerateCacheKey("alice", ReportChains)
	aliceTokens := cache.GenerateCacheKey("alice", ReportTokens, "all")
	bobChains := cache.GenerateCacheKey("bob", ReportChains)

	require.NoError(t, cache.Set(ctx, "alice", aliceChains, []string{"eth"}))
	require.NoError(t, cache.Set(ctx, "alice", aliceTokens, []string{"USDC"}))
	require.NoError(t, cache.Set(ctx, "bob", bobChains, []string{"bsc"}))

	require.NoError(t, cache.InvalidateUser(ctx, "alice"))

	assert.False(t, mr.Exists(aliceChains))
	assert.False(t, mr.Exists(aliceTokens))
	assert.True(t, mr.Exists(bobChains), "other users' reports must survive")

	// invalidating a user with nothing cached is fine
	require.NoError(t, cache.InvalidateUser(ctx, "carol"))
}

func TestReportCache_UserIDsAreCaseSensitive(t *testing.T) {
	cache, _ := setupReportCache(t)
	assert.NotEqual(t,
		cache.GenerateCacheKey("Alice", ReportChains),
		cache.GenerateCacheKey("alice", ReportChains))
}

func TestReportCache_RedisDown(t *testing.T) {
	cache, mr := setupReportCache(t)
	ctx := testContext(t)
	mr.Close()

	var got []string
	_, err := cache.Get(ctx, "report:alice:chains", &got)
	assert.Error(t, err)
}
