package ratelimit

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLimiter_Admit(t *testing.T) {
	t.Parallel()

	l := NewLimiter(5, time.Minute)
	u := uuid.Must(uuid.NewV7())

	for i := 0; i < 5; i++ {
		ok, _ := l.Admit(u)
		assert.True(t, ok, "call %d should be admitted", i+1)
	}

	ok, retryAfter := l.Admit(u)
	assert.False(t, ok)
	assert.True(t, retryAfter > 0)
	assert.True(t, retryAfter <= time.Minute)
}

func TestLimiter_AdmitPerUser(t *testing.T) {
	t.Parallel()

	l := NewLimiter(1, time.Minute)
	u1 := uuid.Must(uuid.NewV7())
	u2 := uuid.Must(uuid.NewV7())

	ok, _ := l.Admit(u1)
	assert.True(t, ok)
	ok, _ = l.Admit(u1)
	assert.False(t, ok)

	// 別ユーザーのウィンドウには影響しない
	ok, _ = l.Admit(u2)
	assert.True(t, ok)
}

func TestLimiter_WindowReset(t *testing.T) {
	t.Parallel()

	l := NewLimiter(2, 50*time.Millisecond)
	u := uuid.Must(uuid.NewV7())

	ok, _ := l.Admit(u)
	assert.True(t, ok)
	ok, _ = l.Admit(u)
	assert.True(t, ok)
	ok, _ = l.Admit(u)
	assert.False(t, ok)

	time.Sleep(60 * time.Millisecond)

	ok, _ = l.Admit(u)
	assert.True(t, ok)
}

func TestLimiter_Purge(t *testing.T) {
	t.Parallel()

	l := NewLimiter(1, 10*time.Millisecond)
	u := uuid.Must(uuid.NewV7())
	l.Admit(u)

	time.Sleep(20 * time.Millisecond)
	l.Purge()

	s := l.shards[shardIndex(u)]
	s.mu.Lock()
	_, exists := s.windows[u]
	s.mu.Unlock()
	assert.False(t, exists)
}
