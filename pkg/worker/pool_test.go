package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/metric"
)

func TestNewPool_Defaults(t *testing.T) {
	pool, err := NewPool(0, 0, func(context.Context, int) error { return nil })
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 1, stats.Workers)
	assert.Equal(t, 1000, stats.QueueSize)
}

func TestNewPool_NilProcessor(t *testing.T) {
	_, err := NewPool[int](1, 10, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilProcessor)
	assert.True(t, errors.IsInvalid(err))
}

func TestPool_Lifecycle(t *testing.T) {
	pool, err := NewPool(1, 10, func(context.Context, int) error { return nil })
	require.NoError(t, err)

	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)

	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, pool.Stop(time.Second))
	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
	assert.NoError(t, pool.Stop(time.Second), "second Stop is a no-op")
}

func TestPool_SingleWorkerPreservesOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int
	pool, err := NewPool(1, 100, func(_ context.Context, n int) error {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	require.Len(t, got, 50)
	for i, n := range got {
		assert.Equal(t, i, n)
	}
	assert.Equal(t, int64(50), pool.Stats().Processed)
}

func TestPool_QueueFullDrops(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pool, err := NewPool(1, 2, func(_ context.Context, _ int) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(1))
	<-started // worker holds item 1; the queue is empty again
	require.NoError(t, pool.Submit(2))
	require.NoError(t, pool.Submit(3))
	assert.ErrorIs(t, pool.Submit(4), ErrQueueFull)

	close(release)
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.Submitted)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestPool_FailuresCounted(t *testing.T) {
	pool, err := NewPool(2, 10, func(_ context.Context, n int) error {
		if n%2 == 0 {
			return stderrors.New("even")
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(6), stats.Processed)
	assert.Equal(t, int64(3), stats.Failed)
}

func TestPool_StopTimeout(t *testing.T) {
	var cancelled atomic.Bool
	pool, err := NewPool(1, 10, func(ctx context.Context, _ int) error {
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(1))

	assert.ErrorIs(t, pool.Stop(20*time.Millisecond), ErrStopTimeout)
	assert.Eventually(t, cancelled.Load, time.Second, 5*time.Millisecond)
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	pool, err := NewPool(1, 10, func(context.Context, int) error { return nil },
		WithMetricsRegistry[int](registry, "publish"))
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(1))
	require.NoError(t, pool.Submit(2))
	require.NoError(t, pool.Stop(5*time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(pool.metrics.submitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(pool.metrics.processed))
	assert.Equal(t, 0.0, testutil.ToFloat64(pool.metrics.failed))

	_, err = NewPool(1, 10, func(context.Context, int) error { return nil },
		WithMetricsRegistry[int](registry, "publish"))
	assert.True(t, errors.IsInvalid(err), "duplicate owner is rejected")
}
