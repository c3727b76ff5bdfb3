package presence

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/leandro-lugaresi/hub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quartzchat/quartz/event"
)

var onlineUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "quartz",
	Name:      "online_users",
})

// Tracker オンラインユーザートラッカー
//
// ユーザーごとのライブコネクション数を数え、0<->1の遷移だけを
// オンライン・オフラインイベントとしてhubに流します。
// 同一ユーザーが複数タブで接続していても遷移は一度しか発生しません。
type Tracker struct {
	hub          *hub.Hub
	counters     map[uuid.UUID]*counter
	countersLock sync.Mutex
}

// NewTracker オンラインユーザートラッカーを生成して起動します
func NewTracker(h *hub.Hub) *Tracker {
	t := &Tracker{
		hub:      h,
		counters: map[uuid.UUID]*counter{},
	}
	go func() {
		for e := range h.Subscribe(8, event.WSConnected, event.WSDisconnected).Receiver {
			switch e.Topic() {
			case event.WSConnected:
				t.MarkOnline(e.Fields["user_id"].(uuid.UUID))
			case event.WSDisconnected:
				t.MarkOffline(e.Fields["user_id"].(uuid.UUID))
			}
		}
	}()
	return t
}

// MarkOnline 指定したユーザーのコネクション数をインクリメントします
func (t *Tracker) MarkOnline(userID uuid.UUID) (toOnline bool) {
	t.countersLock.Lock()
	c, ok := t.counters[userID]
	if !ok {
		c = &counter{userID: userID}
		t.counters[userID] = c
	}
	t.countersLock.Unlock()

	toOnline = c.inc()
	if toOnline {
		onlineUsersGauge.Inc()
		t.hub.Publish(hub.Message{
			Name: event.UserOnline,
			Fields: hub.Fields{
				"user_id":  userID,
				"datetime": c.getLastUpdated(),
			},
		})
	}
	return
}

// MarkOffline 指定したユーザーのコネクション数をデクリメントします
//
// この削除によってユーザーの最後のコネクションが失われた場合にtrueを返します。
func (t *Tracker) MarkOffline(userID uuid.UUID) (toOffline bool) {
	t.countersLock.Lock()
	c, ok := t.counters[userID]
	if !ok {
		t.countersLock.Unlock()
		return
	}
	t.countersLock.Unlock()

	toOffline = c.dec()
	if toOffline {
		onlineUsersGauge.Dec()
		t.hub.Publish(hub.Message{
			Name: event.UserOffline,
			Fields: hub.Fields{
				"user_id":  userID,
				"datetime": c.getLastUpdated(),
			},
		})
	}
	return
}

// IsOnline 指定したユーザーがオンラインかどうかを取得します
func (t *Tracker) IsOnline(userID uuid.UUID) bool {
	t.countersLock.Lock()
	c, ok := t.counters[userID]
	if !ok {
		t.countersLock.Unlock()
		return false
	}
	t.countersLock.Unlock()

	return c.isOnline()
}

// OnlineUserIDs オンラインなユーザーのUUIDの配列を取得します
func (t *Tracker) OnlineUserIDs() []uuid.UUID {
	t.countersLock.Lock()
	users := make([]uuid.UUID, 0, len(t.counters))
	for u, c := range t.counters {
		if c.isOnline() {
			users = append(users, u)
		}
	}
	t.countersLock.Unlock()
	return users
}

type counter struct {
	sync.RWMutex
	userID      uuid.UUID
	count       int
	lastUpdated time.Time
}

func (c *counter) isOnline() (r bool) {
	c.RLock()
	r = c.count > 0
	c.RUnlock()
	return
}

func (c *counter) inc() (toOnline bool) {
	c.Lock()
	c.count++
	c.lastUpdated = time.Now()
	if c.count == 1 {
		toOnline = true
	}
	c.Unlock()
	return
}

func (c *counter) dec() (toOffline bool) {
	c.Lock()
	if c.count > 0 {
		c.count--
		c.lastUpdated = time.Now()
		if c.count == 0 {
			toOffline = true
		}
	}
	c.Unlock()
	return
}

func (c *counter) getLastUpdated() (t time.Time) {
	c.RLock()
	t = c.lastUpdated
	c.RUnlock()
	return
}
