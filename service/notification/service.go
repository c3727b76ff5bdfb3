package notification

import (
	"github.com/leandro-lugaresi/hub"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/repository"
	"github.com/quartzchat/quartz/service/room"
	"github.com/quartzchat/quartz/service/unread"
	"github.com/quartzchat/quartz/service/ws"
)

// Service 通知サービス
//
// ハブに流れるドメインイベントを購読し、接続中のクライアントへの
// 配信と未読台帳の更新に変換します。
type Service struct {
	repo     repository.Repository
	hub      *hub.Hub
	logger   *zap.Logger
	ws       *ws.Streamer
	registry *room.Registry
	ledger   *unread.Ledger
}

// NewService 通知サービスを作成して起動します
func NewService(repo repository.Repository, hub *hub.Hub, logger *zap.Logger, streamer *ws.Streamer, registry *room.Registry, ledger *unread.Ledger) *Service {
	service := &Service{
		repo:     repo,
		hub:      hub,
		logger:   logger.Named("notification"),
		ws:       streamer,
		registry: registry,
		ledger:   ledger,
	}
	go func() {
		topics := make([]string, 0, len(handlerMap))
		for k := range handlerMap {
			topics = append(topics, k)
		}
		for msg := range hub.Subscribe(200, topics...).Receiver {
			h, ok := handlerMap[msg.Topic()]
			if ok {
				go h(service, msg)
			}
		}
	}()
	return service
}
