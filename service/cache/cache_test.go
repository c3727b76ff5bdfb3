package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memDurable テスト用のインメモリ耐久層
type memDurable struct {
	mu      sync.Mutex
	entries map[string]*Envelope
}

func newMemDurable() *memDurable {
	return &memDurable{entries: make(map[string]*Envelope)}
}

func (d *memDurable) Get(_ context.Context, key string) (*Envelope, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	env, ok := d.entries[key]
	if !ok {
		return nil, nil
	}
	cp := *env
	return &cp, nil
}

func (d *memDurable) Set(_ context.Context, key string, env *Envelope) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *env
	d.entries[key] = &cp
	return nil
}

func (d *memDurable) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
	return nil
}

func (d *memDurable) Sweep(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	n := 0
	for k, env := range d.entries {
		if env.Expired(now) {
			delete(d.entries, k)
			n++
		}
	}
	return n, nil
}

func newTestCache(t *testing.T, durable Durable) *Cache {
	t.Helper()
	c, err := NewCache(16, durable, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, newMemDurable())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute, Fixed))

	v, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestCache_Miss(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, newMemDurable())
	_, ok := c.Get(context.Background(), "nothing")
	assert.False(t, ok)
}

func TestCache_FixedExpiry(t *testing.T) {
	t.Parallel()

	d := newMemDurable()
	c := newTestCache(t, d)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 30*time.Millisecond, Fixed))
	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	// 期限切れ検出時に両層から追い出される
	env, err := d.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestCache_SlidingRefresh(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, newMemDurable())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 60*time.Millisecond, Sliding))

	// TTL内の読み取りを繰り返すことで期限が延長され続ける
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		_, ok := c.Get(ctx, "k")
		require.True(t, ok, "read %d should hit", i+1)
	}

	// 読み取りをやめるとTTLで失効する
	time.Sleep(80 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_DurableRepopulation(t *testing.T) {
	t.Parallel()

	d := newMemDurable()
	c := newTestCache(t, d)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute, Fixed))

	// 高速層が失われても耐久層から再取得できる
	c2 := newTestCache(t, d)
	v, ok := c2.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	d := newMemDurable()
	c := newTestCache(t, d)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute, Fixed))
	require.NoError(t, c.Invalidate(ctx, "k"))

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	env, err := d.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestCache_Sweeper(t *testing.T) {
	t.Parallel()

	d := newMemDurable()
	c := newTestCache(t, d)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond, Fixed))
	require.NoError(t, c.Set(ctx, "long", []byte("v"), time.Minute, Fixed))

	go c.RunSweeper(ctx, 20*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	d.mu.Lock()
	_, shortExists := d.entries["short"]
	_, longExists := d.entries["long"]
	d.mu.Unlock()
	assert.False(t, shortExists)
	assert.True(t, longExists)
}

func TestCache_ConcurrentSlidingReads(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, newMemDurable())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute, Sliding))

	// Slidingエントリの延長はエントリの置き換えで行われるため、
	// 同一キーへの並行読み取りが書き換え中のEnvelopeを観測することはない
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v, ok := c.Get(ctx, "k")
				assert.True(t, ok)
				assert.Equal(t, []byte("v"), v)
			}
		}()
	}
	wg.Wait()
}
