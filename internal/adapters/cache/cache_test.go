package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reybrally/fulfillment-service/internal/domain/analytics"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)} }

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

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache[int](nil)
	c.Set("a", 1, time.Minute)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_ExpiresLazily(t *testing.T) {
	clk := newClock()
	c := NewTTLCache[string](clk.Now)
	c.Set("k", "v", 5*time.Minute)

	clk.Advance(4*time.Minute + 59*time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())

	clk.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
}

func TestTTLCache_DeletePrefix(t *testing.T) {
	c := NewTTLCache[int](nil)
	c.Set("revenue-1", 1, time.Minute)
	c.Set("revenue-2", 2, time.Minute)
	c.Set("products-1", 3, time.Minute)

	assert.Equal(t, 2, c.DeletePrefix("revenue-"))
	_, ok := c.Get("products-1")
	assert.True(t, ok)

	assert.Equal(t, 1, c.DeletePrefix(""))
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Take(t *testing.T) {
	clk := newClock()
	c := NewTTLCache[int](clk.Now)
	c.Set("a", 1, time.Minute)

	v, ok := c.Take("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Take("a")
	assert.False(t, ok)

	c.Set("b", 2, time.Minute)
	clk.Advance(time.Minute)
	_, ok = c.Take("b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Concurrent(t *testing.T) {
	c := NewTTLCache[int](nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("k", i, time.Minute)
			c.Get("k")
			c.DeletePrefix("x")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestReportCache(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	rc := NewReportCache(clk.Now)

	require.NoError(t, rc.Set(ctx, "revenue-all", analytics.Report{Tab: "revenue", Payments: 3}, 5*time.Minute))
	r, ok, err := rc.Get(ctx, "revenue-all")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, r.Payments)

	clk.Advance(6 * time.Minute)
	_, ok, err = rc.Get(ctx, "revenue-all")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rc.Set(ctx, "revenue-all", analytics.Report{}, time.Minute))
	require.NoError(t, rc.Clear(ctx, ""))
	assert.Equal(t, 0, rc.Len())
}

func TestCodeStore_SingleUse(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	s := NewCodeStore(clk.Now)
	require.NoError(t, s.Save(ctx, "ops@example.com", "123456", 10*time.Minute))

	ok, err := s.Consume(ctx, "ops@example.com", "000000")
	require.NoError(t, err)
	assert.False(t, ok, "wrong code")

	ok, err = s.Consume(ctx, "ops@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "ops@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, ok, "code is single use")
}

func TestCodeStore_Expired(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	s := NewCodeStore(clk.Now)
	require.NoError(t, s.Save(ctx, "a@example.com", "111111", 10*time.Minute))

	clk.Advance(10 * time.Minute)
	ok, err := s.Consume(ctx, "a@example.com", "111111")
	require.NoError(t, err)
	assert.False(t, ok)
}
