package budget

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeStopsAtMax(t *testing.T) {
	b := New(NewMemory(time.Hour), Limit{MaxChecks: 3, Interval: 15 * time.Second}, DefaultVendorLimit)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		st, err := b.Consume(ctx, "s1", false)
		require.NoError(t, err)
		assert.Equal(t, i, st.Used)
		assert.Equal(t, 15, st.IntervalSeconds)
	}

	st, err := b.Consume(ctx, "s1", false)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, st.Used)
	assert.True(t, st.Exhausted)

	// A refused check is not counted.
	st, err = b.Consume(ctx, "s1", false)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, st.Used)
}

func TestRolesHaveSeparateBudgets(t *testing.T) {
	b := New(NewMemory(time.Hour), Limit{MaxChecks: 1, Interval: time.Second}, DefaultVendorLimit)
	ctx := context.Background()

	_, err := b.Consume(ctx, "s1", false)
	require.NoError(t, err)
	_, err = b.Consume(ctx, "s1", false)
	require.ErrorIs(t, err, ErrExhausted)

	st, err := b.Consume(ctx, "s1", true)
	require.NoError(t, err)
	assert.Equal(t, 720, st.Max)
	assert.Equal(t, 5, st.IntervalSeconds)

	_, err = b.Consume(ctx, "s2", false)
	assert.NoError(t, err)
}

func TestMemoryWindowResets(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, _ := m.Take(ctx, "k", 1)
	require.True(t, ok)
	_, ok, _ = m.Take(ctx, "k", 1)
	require.False(t, ok)

	now = now.Add(time.Minute)
	n, ok, err := m.Take(ctx, "k", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestMemoryDropsExpiredKeys(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, ok, err := m.Take(ctx, uuid.NewString(), 5)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, 1000, m.Len())

	now = now.Add(30 * time.Second)
	_, _, err := m.Take(ctx, "late", 5)
	require.NoError(t, err)
	assert.Equal(t, 1001, m.Len())

	now = now.Add(30 * time.Second)
	_, _, err = m.Take(ctx, "new", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	n, ok, err := m.Take(ctx, "late", 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestMemoryConcurrentTakesNeverOvershoot(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := m.Take(ctx, "k", 20); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, granted)
}

func TestRedisTake(t *testing.T) {
	addr := os.Getenv("GEMMY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GEMMY_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	r := NewRedis(rdb, time.Minute)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	defer rdb.Del(ctx, key)

	n, ok, err := r.Take(ctx, key, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	_, _, err = r.Take(ctx, key, 2)
	require.NoError(t, err)
	n, ok, err = r.Take(ctx, key, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, n)
}
