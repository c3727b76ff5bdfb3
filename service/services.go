package service

import (
	"github.com/quartzchat/quartz/service/cache"
	"github.com/quartzchat/quartz/service/message"
	"github.com/quartzchat/quartz/service/notification"
	"github.com/quartzchat/quartz/service/presence"
	"github.com/quartzchat/quartz/service/ratelimit"
	"github.com/quartzchat/quartz/service/relay"
	"github.com/quartzchat/quartz/service/room"
	"github.com/quartzchat/quartz/service/unread"
	"github.com/quartzchat/quartz/service/ws"
)

type Services struct {
	Cache          *cache.Cache
	MessageManager message.Manager
	Notification   *notification.Service
	Presence       *presence.Tracker
	RateLimiter    *ratelimit.Limiter
	Relay          *relay.Relay
	RoomRegistry   *room.Registry
	UnreadLedger   *unread.Ledger
	WS             *ws.Streamer
}
