package throttle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClockedThrottle() (*Throttle, *clock) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	mem := NewMemoryStore()
	mem.now = c.Now
	return &Throttle{Store: mem, Fallback: NewMemoryStore(), Logger: zap.NewNop()}, c
}

func TestAllow_WindowLifecycle(t *testing.T) {
	th, c := newClockedThrottle()
	ctx := context.Background()

	require.True(t, th.Allow(ctx, "BTC-USD", 30*time.Second))
	require.False(t, th.Allow(ctx, "BTC-USD", 30*time.Second))

	c.Advance(29 * time.Second)
	require.False(t, th.Allow(ctx, "BTC-USD", 30*time.Second))

	c.Advance(2 * time.Second)
	require.True(t, th.Allow(ctx, "BTC-USD", 30*time.Second))
}

func TestAllow_SymbolsIndependent(t *testing.T) {
	th, _ := newClockedThrottle()
	ctx := context.Background()
	require.True(t, th.Allow(ctx, "BTC-USD", time.Minute))
	require.True(t, th.Allow(ctx, "ETH-USD", time.Minute))
	require.False(t, th.Allow(ctx, "ETH-USD", time.Minute))
}

func TestAllow_NonPositiveWindowAlwaysAllows(t *testing.T) {
	th, _ := newClockedThrottle()
	for i := 0; i < 3; i++ {
		require.True(t, th.Allow(context.Background(), "BTC-USD", 0))
	}
}

type brokenStore struct{ calls int32 }

func (b *brokenStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	atomic.AddInt32(&b.calls, 1)
	return false, errors.New("dial tcp: connection refused")
}

func (b *brokenStore) Del(context.Context, string) error {
	return errors.New("dial tcp: connection refused")
}

func TestAllow_FallsBackWhenStoreDown(t *testing.T) {
	broken := &brokenStore{}
	th := New(broken, zap.NewNop())
	ctx := context.Background()

	require.True(t, th.Allow(ctx, "SOL-USD", time.Minute))
	require.False(t, th.Allow(ctx, "SOL-USD", time.Minute))
	require.Equal(t, int32(2), atomic.LoadInt32(&broken.calls))
}

func TestAllow_ConcurrentSingleWinner(t *testing.T) {
	th := New(NewMemoryStore(), zap.NewNop())
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.Allow(context.Background(), "BTC-USD", time.Minute) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins)
}

func TestKey(t *testing.T) {
	require.Equal(t, "throttle:BTC-USD", Key(" BTC-USD "))
}

func TestRelease_ReopensWindow(t *testing.T) {
	th, _ := newClockedThrottle()
	ctx := context.Background()

	require.True(t, th.Allow(ctx, "BTC-USD", time.Minute))
	require.False(t, th.Allow(ctx, "BTC-USD", time.Minute))
	th.Release(ctx, "BTC-USD")
	require.True(t, th.Allow(ctx, "BTC-USD", time.Minute))

	broken := New(&brokenStore{}, zap.NewNop())
	require.True(t, broken.Allow(ctx, "ETH-USD", time.Minute))
	broken.Release(ctx, "ETH-USD")
	require.True(t, broken.Allow(ctx, "ETH-USD", time.Minute))
}
