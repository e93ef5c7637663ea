package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunStopsWhenBudgetIsSpent(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var updates []Update[int]

	p := New(func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, time.Millisecond, 3, func(u Update[int]) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.Run(ctx)
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, p.Used())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 3)
	assert.True(t, updates[2].Exhausted)
	assert.Equal(t, 3, updates[2].Value)

	// Further refreshes are no-ops.
	assert.ErrorIs(t, p.Refresh(context.Background()), ErrLimitReached)
	assert.Equal(t, int32(3), calls.Load())
}

func TestErrorsKeepLastGoodValue(t *testing.T) {
	boom := errors.New("network down")
	results := []error{nil, boom}
	i := 0

	var got []Update[string]
	p := New(func(ctx context.Context) (string, error) {
		err := results[i]
		i++
		if err != nil {
			return "", err
		}
		return "snapshot", nil
	}, time.Hour, 10, func(u Update[string]) { got = append(got, u) })

	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx))
	assert.ErrorIs(t, p.Refresh(ctx), boom)

	require.Len(t, got, 2)
	assert.Equal(t, "snapshot", got[1].Value)
	assert.True(t, got[1].Stale)
	assert.False(t, got[1].Exhausted)
}

func TestServerLimitExhausts(t *testing.T) {
	p := New(func(ctx context.Context) (int, error) {
		return 0, ErrLimitReached
	}, time.Millisecond, 100, nil)

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.True(t, p.Exhausted())
	assert.Equal(t, 0, p.Used())
}

func TestRefusedCheckIsNotCounted(t *testing.T) {
	calls := 0
	var last Update[int]
	p := New(func(ctx context.Context) (int, error) {
		calls++
		if calls > 2 {
			return 0, ErrLimitReached
		}
		return calls, nil
	}, time.Millisecond, 100, func(u Update[int]) { last = u })

	ctx := context.Background()
	require.NoError(t, p.Refresh(ctx))
	require.NoError(t, p.Refresh(ctx))
	assert.ErrorIs(t, p.Refresh(ctx), ErrLimitReached)

	assert.Equal(t, 2, p.Used())
	assert.Equal(t, 2, last.Used)
	assert.True(t, last.Exhausted)
	assert.Equal(t, 2, last.Value)
}

func TestRunStopsOnCancel(t *testing.T) {
	p := New(func(ctx context.Context) (int, error) { return 1, nil }, 5*time.Millisecond, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.False(t, p.Exhausted())
}
