package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/pkg/circuitbreaker"
)

func TestKeys(t *testing.T) {
	c := NewCacheFromClient(nil, "skillshub:", nil)
	assert.Equal(t, "skillshub:summary:u1", c.Key(SummaryKey("u1")))
	assert.Equal(t, "skillshub:validations:pending", c.Key(KeyPendingQueue))
}

func TestCache_ArgumentValidation(t *testing.T) {
	c := NewCacheFromClient(nil, "", nil)
	ctx := context.Background()

	assert.ErrorIs(t, c.SetIfVersion(ctx, "v", 0, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.SetIfVersion(ctx, "", 0, "k", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.SetIfVersion(ctx, "v", 0, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.SetIfVersion(ctx, "v", 0, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Invalidate(ctx, "", time.Hour, "k"), ErrCacheKeyEmpty)
	_, err := c.Version(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}

func TestCache_BreakerOpensOnUnreachableServer(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithCoolDown(time.Hour))
	c := NewCacheFromClient(client, "", breaker)
	ctx := context.Background()

	err := c.Get(ctx, "k", new(int))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	err = c.SetIfVersion(ctx, "v", 0, "k", 1, time.Minute)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func newIntegrationCache(t *testing.T) *ProgressionCache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.KeyPrefix = "skillshub-test:" + t.Name() + ":"

	cache, err := NewCache(context.Background(), cfg, circuitbreaker.CacheBreaker(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return NewProgressionCache(cache, WithSummaryTTL(time.Minute), WithQueueTTL(time.Minute))
}

func TestProgressionCache_Summary(t *testing.T) {
	pc := newIntegrationCache(t)
	ctx := context.Background()

	_, err := pc.GetSummary(ctx, "u1")
	assert.ErrorIs(t, err, progression.ErrCacheMiss)

	at := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	want := &progression.Summary{
		AvatarLevel:  2,
		StatusCounts: progression.StatusCounts{progression.StatusAcquired: 3, progression.StatusInProgress: 1, progression.StatusPendingValidation: 0, progression.StatusRejected: 0},
		Records: []progression.RecordView{{
			Record: progression.Record{ID: "r1", UserID: "u1", SkillID: "s1", Status: progression.StatusInProgress, RequestedAt: at},
			Skill:  catalog.Skill{ID: "s1", Name: "Ranger son poste"},
		}},
	}
	v, err := pc.SummaryVersion(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, pc.SetSummary(ctx, "u1", v, want))

	got, err := pc.GetSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want.AvatarLevel, got.AvatarLevel)
	assert.Equal(t, want.StatusCounts, got.StatusCounts)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Ranger son poste", got.Records[0].Skill.Name)
	assert.True(t, at.Equal(got.Records[0].RequestedAt))

	require.NoError(t, pc.InvalidateSummary(ctx, "u1"))
	_, err = pc.GetSummary(ctx, "u1")
	assert.ErrorIs(t, err, progression.ErrCacheMiss)
}

func TestProgressionCache_Queue(t *testing.T) {
	pc := newIntegrationCache(t)
	ctx := context.Background()

	v, err := pc.QueueVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, pc.SetPendingQueue(ctx, v, nil))
	items, err := pc.GetPendingQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	require.NoError(t, pc.InvalidatePendingQueue(ctx))
	_, err = pc.GetPendingQueue(ctx)
	assert.ErrorIs(t, err, progression.ErrCacheMiss)
}

func TestProgressionCache_InvalidationWinsOverSlowReader(t *testing.T) {
	pc := newIntegrationCache(t)
	ctx := context.Background()

	// a reader takes the version, then loads level 2 from the store
	v, err := pc.SummaryVersion(ctx, "u1")
	require.NoError(t, err)
	old := &progression.Summary{AvatarLevel: 2, StatusCounts: progression.NewStatusCounts(), Records: []progression.RecordView{}}

	// meanwhile an approval commits and invalidates
	require.NoError(t, pc.InvalidateSummary(ctx, "u1"))

	err = pc.SetSummary(ctx, "u1", v, old)
	assert.ErrorIs(t, err, progression.ErrStaleCacheWrite)
	_, err = pc.GetSummary(ctx, "u1")
	assert.ErrorIs(t, err, progression.ErrCacheMiss)

	// a reader that started after the invalidation may populate the entry
	v2, err := pc.SummaryVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Greater(t, v2, v)
	fresh := &progression.Summary{AvatarLevel: 4, StatusCounts: progression.NewStatusCounts(), Records: []progression.RecordView{}}
	require.NoError(t, pc.SetSummary(ctx, "u1", v2, fresh))

	got, err := pc.GetSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.AvatarLevel)
}

func TestProgressionCache_QueueInvalidationWinsOverSlowReader(t *testing.T) {
	pc := newIntegrationCache(t)
	ctx := context.Background()

	v, err := pc.QueueVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, pc.InvalidatePendingQueue(ctx))

	assert.ErrorIs(t, pc.SetPendingQueue(ctx, v, nil), progression.ErrStaleCacheWrite)
	_, err = pc.GetPendingQueue(ctx)
	assert.ErrorIs(t, err, progression.ErrCacheMiss)
}
