package ratelimit

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

const shardCount = 16

// Limiter ユーザーごとの流量制限器
//
// 遅延リセット方式のウィンドウカウンタで、タイマーを使わず
// Admit呼び出し時の時刻比較のみで正しさが決まります。
type Limiter struct {
	ceiling int
	window  time.Duration
	shards  [shardCount]*shard
}

type shard struct {
	windows map[uuid.UUID]*rateWindow
	mu      sync.Mutex
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// NewLimiter 流量制限器を生成します
func NewLimiter(ceiling int, window time.Duration) *Limiter {
	l := &Limiter{
		ceiling: ceiling,
		window:  window,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[uuid.UUID]*rateWindow)}
	}
	return l
}

// Admit 指定したユーザーのイベントを1件受理するかどうかを判定します
//
// 受理しない場合、ウィンドウがリセットされるまでの時間を併せて返します。
func (l *Limiter) Admit(userID uuid.UUID) (ok bool, retryAfter time.Duration) {
	now := time.Now()
	s := l.shards[shardIndex(userID)]

	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.windows[userID]
	if !exists || now.After(w.resetAt) {
		s.windows[userID] = &rateWindow{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}
	if w.count >= l.ceiling {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// Purge 期限切れのウィンドウを破棄します
func (l *Limiter) Purge() {
	now := time.Now()
	for _, s := range l.shards {
		s.mu.Lock()
		for id, w := range s.windows {
			if now.After(w.resetAt) {
				delete(s.windows, id)
			}
		}
		s.mu.Unlock()
	}
}

func shardIndex(id uuid.UUID) int {
	return int(id[0]) % shardCount
}
