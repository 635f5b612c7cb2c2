package draft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(now *time.Time) (*Cache, *MemoryStore) {
	store := NewMemoryStore()
	c := New(store, 0)
	c.Now = func() time.Time { return *now }
	return c, store
}

func TestCacheSaveLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newTestCache(&now)

	scores := map[string]float64{"3_1.1": 3, "3_1.2": 7}
	require.NoError(t, c.Save(ctx, 10, ClassMonitor, scores))

	got, ok, err := c.Load(ctx, 10, ClassMonitor)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, scores, got)

	_, ok, err = c.Load(ctx, 10, Advisor)
	require.NoError(t, err)
	assert.False(t, ok, "roles are isolated")

	_, ok, err = c.Load(ctx, 11, ClassMonitor)
	require.NoError(t, err)
	assert.False(t, ok, "evaluations are isolated")
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c, store := newTestCache(&now)

	require.NoError(t, c.Save(ctx, 1, Advisor, map[string]float64{"1_1.1": 2}))

	now = now.Add(24 * time.Hour)
	_, ok, err := c.Load(ctx, 1, Advisor)
	require.NoError(t, err)
	assert.True(t, ok, "exactly 24h is still fresh")

	now = now.Add(time.Millisecond)
	_, ok, err = c.Load(ctx, 1, Advisor)
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, _ := store.Get(ctx, Key(1, Advisor))
	assert.False(t, found, "stale entry removed on read")
}

func TestCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c, store := newTestCache(&now)

	require.NoError(t, store.Set(ctx, Key(5, ClassMonitor), []byte("{not json"), time.Hour))
	_, ok, err := c.Load(ctx, 5, ClassMonitor)
	require.NoError(t, err)
	assert.False(t, ok)
	_, found, _ := store.Get(ctx, Key(5, ClassMonitor))
	assert.False(t, found)
}

func TestCacheClear(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c, _ := newTestCache(&now)

	for _, role := range Roles {
		require.NoError(t, c.Save(ctx, 7, role, map[string]float64{"1_1.1": 1}))
	}
	require.NoError(t, c.Save(ctx, 8, Advisor, map[string]float64{"1_1.1": 1}))

	require.NoError(t, c.Clear(ctx, 7, ClassMonitor))
	_, ok, _ := c.Load(ctx, 7, ClassMonitor)
	assert.False(t, ok)
	_, ok, _ = c.Load(ctx, 7, Advisor)
	assert.True(t, ok)

	require.NoError(t, c.ClearEvaluation(ctx, 7))
	_, ok, _ = c.Load(ctx, 7, Advisor)
	assert.False(t, ok)
	_, ok, _ = c.Load(ctx, 8, Advisor)
	assert.True(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "draft_scores_42_ADVISOR", Key(42, Advisor))
}
