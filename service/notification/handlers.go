package notification

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/leandro-lugaresi/hub"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/event"
	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/service/ws"
)

const memberLookupTimeout = 5 * time.Second

type eventHandler func(ns *Service, ev hub.Message)

var handlerMap = map[string]eventHandler{
	event.MessageCreated:   messageCreatedHandler,
	event.MessageUpdated:   messageUpdatedHandler,
	event.MessageDeleted:   messageDeletedHandler,
	event.MessageForwarded: messageForwardedHandler,
	event.ReactionAdded:    reactionAddedHandler,
	event.ReactionRemoved:  reactionRemovedHandler,
	event.UserOnline:       userOnlineHandler,
	event.UserOffline:      userOfflineHandler,
	event.RoomRead:         roomReadHandler,
	event.UnreadUpdated:    unreadUpdatedHandler,
}

func messageCreatedHandler(ns *Service, ev hub.Message) {
	m := ev.Fields["message"].(*model.Message)
	logger := ns.logger.With(zap.Stringer("messageId", m.ID))

	// ルームに参加中のセッションへ即時配信
	ns.ws.WriteMessage(ws.EventNewMessage, m, ws.TargetRoom(ns.registry, m.RoomID))

	// 未読台帳の更新対象はライブなセッションではなくルームの全メンバー
	ctx, cancel := context.WithTimeout(context.Background(), memberLookupTimeout)
	defer cancel()
	recipients, err := ns.repo.GetRoomMemberIDs(ctx, m.RoomID)
	if err != nil {
		logger.Error("failed to GetRoomMemberIDs", zap.Error(err), zap.Stringer("roomId", m.RoomID))
		return
	}

	if isRemote(ev) {
		// 加算は発信元インスタンスが永続化済み。台帳を破棄して再水和させる
		for _, userID := range recipients {
			if userID == m.UserID {
				continue
			}
			ns.ledger.Forget(userID)
			ns.hub.Publish(hub.Message{
				Name:   event.UnreadUpdated,
				Fields: hub.Fields{"user_id": userID},
			})
		}
		return
	}

	for _, userID := range ns.ledger.RecordNewMessage(m.RoomID, m.UserID, recipients) {
		ns.hub.Publish(hub.Message{
			Name:   event.UnreadUpdated,
			Fields: hub.Fields{"user_id": userID},
		})
	}
}

func isRemote(ev hub.Message) bool {
	remote, _ := ev.Fields["remote"].(bool)
	return remote
}

func messageUpdatedHandler(ns *Service, ev hub.Message) {
	m := ev.Fields["message"].(*model.Message)
	ns.ws.WriteMessage(ws.EventMessageEdited, struct {
		ID        uuid.UUID `json:"id"`
		RoomID    uuid.UUID `json:"roomId"`
		Text      string    `json:"text"`
		UpdatedAt time.Time `json:"updatedAt"`
	}{m.ID, m.RoomID, m.Text, m.UpdatedAt}, ws.TargetRoom(ns.registry, m.RoomID))
}

func messageDeletedHandler(ns *Service, ev hub.Message) {
	m := ev.Fields["message"].(*model.Message)
	ns.ws.WriteMessage(ws.EventMessageDeleted, struct {
		ID     uuid.UUID `json:"id"`
		RoomID uuid.UUID `json:"roomId"`
		Text   string    `json:"text"`
	}{m.ID, m.RoomID, model.MessageTombstone}, ws.TargetRoom(ns.registry, m.RoomID))
}

func messageForwardedHandler(ns *Service, ev hub.Message) {
	fr := ev.Fields["forward"].(*model.ForwardRecord)
	m := ev.Fields["message"].(*model.Message)

	// 配信先は転送先ルームのみ。元ルームには何も流れない
	ns.ws.WriteMessage(ws.EventMessageForwarded, struct {
		Forward *model.ForwardRecord `json:"forward"`
		Message *model.Message       `json:"message"`
	}{fr, m}, ws.TargetRoom(ns.registry, fr.RoomID))
}

func reactionAddedHandler(ns *Service, ev hub.Message) {
	r := ev.Fields["reaction"].(*model.Reaction)
	roomID := ev.Fields["room_id"].(uuid.UUID)
	ns.ws.WriteMessage(ws.EventReactionAdded, r, ws.TargetRoom(ns.registry, roomID))
}

func reactionRemovedHandler(ns *Service, ev hub.Message) {
	r := ev.Fields["reaction"].(*model.Reaction)
	roomID := ev.Fields["room_id"].(uuid.UUID)
	ns.ws.WriteMessage(ws.EventReactionRemoved, r, ws.TargetRoom(ns.registry, roomID))
}

func userOnlineHandler(ns *Service, ev hub.Message) {
	userStatusChangeHandler(ns, ev, "online")
}

func userOfflineHandler(ns *Service, ev hub.Message) {
	userStatusChangeHandler(ns, ev, "offline")
}

func userStatusChangeHandler(ns *Service, ev hub.Message, status string) {
	userID := ev.Fields["user_id"].(uuid.UUID)
	datetime := ev.Fields["datetime"].(time.Time)
	ns.ws.WriteMessage(ws.EventUserStatusChange, struct {
		UserID   uuid.UUID `json:"userId"`
		Status   string    `json:"status"`
		Datetime time.Time `json:"datetime"`
	}{userID, status, datetime}, ws.TargetAll())
}

func roomReadHandler(ns *Service, ev hub.Message) {
	userID := ev.Fields["user_id"].(uuid.UUID)
	if isRemote(ev) {
		ns.ledger.Forget(userID)
	}
	// 複数デバイスの台帳表示を揃えるため、本人の全セッションに流す
	ns.hub.Publish(hub.Message{
		Name:   event.UnreadUpdated,
		Fields: hub.Fields{"user_id": userID},
	})
}

func unreadUpdatedHandler(ns *Service, ev hub.Message) {
	userID := ev.Fields["user_id"].(uuid.UUID)
	ns.ws.WriteMessage(ws.EventUnreadCountsUpdated, ns.ledger.GetSummary(userID), ws.TargetUsers(userID))
}
