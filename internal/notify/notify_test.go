package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryDeliversToTokenSubscribers(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := m.Subscribe(ctx, "tok")
	require.NoError(t, err)
	other, err := m.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, m.Publish(ctx, Event{Token: "tok", Kind: "status", Status: "production"}))

	select {
	case e := <-mine:
		assert.Equal(t, "production", e.Status)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case e := <-other:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestMemoryClosesOnCancel(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := m.Subscribe(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Subscribers("tok"))

	cancel()
	for range ch {
	}
	assert.Equal(t, 0, m.Subscribers("tok"))
	assert.NoError(t, m.Publish(context.Background(), Event{Token: "tok"}))
}

func TestMemoryDropsWhenSubscriberIsFull(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := m.Subscribe(ctx, "tok")
	require.NoError(t, err)
	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, m.Publish(ctx, Event{Token: "tok"}))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("GEMMY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GEMMY_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	r := NewRedis(rdb, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Subscribe(ctx, "tok")
	require.NoError(t, err)
	require.NoError(t, r.Publish(ctx, Event{Token: "tok", Kind: "message"}))

	select {
	case e := <-ch:
		assert.Equal(t, "message", e.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "order_updates:abc", Channel("abc"))
}
