package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/towers-go/internal/metrics"
	tu "github.com/mcoot/towers-go/internal/testutil"
)

func newTestPersister(t *testing.T) (*Persister, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	cfg := DefaultConfig()
	cfg.BaseBackoff = time.Millisecond
	p := New(cfg, tu.NopLogger(), m)
	go p.Run(context.Background())
	t.Cleanup(p.Stop)
	return p, m
}

func TestJobsRunInOrder(t *testing.T) {
	p, _ := newTestPersister(t)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, p.Enqueue("order", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	require.NoError(t, p.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRetriesUntilSuccess(t *testing.T) {
	p, m := newTestPersister(t)

	calls := 0
	require.NoError(t, p.Enqueue("flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("db unavailable")
		}
		return nil
	}))
	require.NoError(t, p.Flush(context.Background()))

	assert.Equal(t, 3, calls)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues("flaky")))
}

func TestExhaustedRetriesAreCounted(t *testing.T) {
	p, m := newTestPersister(t)

	calls := 0
	require.NoError(t, p.Enqueue("stats", func(ctx context.Context) error {
		calls++
		return errors.New("db unavailable")
	}))
	require.NoError(t, p.Flush(context.Background()))

	assert.Equal(t, 3, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues("stats")))
}

func TestStopDrainsQueue(t *testing.T) {
	cfg := DefaultConfig()
	p := New(cfg, tu.NopLogger(), nil)

	ran := 0
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Enqueue("drain", func(ctx context.Context) error {
			ran++
			return nil
		}))
	}
	go p.Run(context.Background())
	p.Stop()

	assert.Equal(t, 3, ran)
	assert.ErrorIs(t, p.Enqueue("late", func(ctx context.Context) error { return nil }), ErrStopped)
}
