package message

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/leandro-lugaresi/hub"
	"github.com/motoki317/sc"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/event"
	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/repository"
	"github.com/quartzchat/quartz/service/cache"
)

const (
	messageCacheSize = 512
	messageCacheTTL  = time.Minute
	roomCacheTTL     = time.Minute
)

var json = jsoniter.ConfigFastest

type manager struct {
	R repository.Repository
	H *hub.Hub
	C *cache.Cache
	L *zap.Logger

	mcache *sc.Cache[uuid.UUID, *model.Message]
}

// NewMessageManager メッセージマネージャを生成します
func NewMessageManager(repo repository.Repository, h *hub.Hub, c *cache.Cache, logger *zap.Logger) (Manager, error) {
	return &manager{
		R: repo,
		H: h,
		C: c,
		L: logger.Named("message_manager"),
		mcache: sc.NewMust(func(ctx context.Context, key uuid.UUID) (*model.Message, error) {
			m, err := repo.GetMessageByID(ctx, key)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrNotFound
				}
				return nil, fmt.Errorf("failed to GetMessageByID: %w", err)
			}
			return m, nil
		}, messageCacheTTL, messageCacheTTL*2, sc.With2QBackend(messageCacheSize)),
	}, nil
}

func (m *manager) Create(ctx context.Context, userID, roomID uuid.UUID, text string, replyToID uuid.UUID, attachments []model.Attachment) (*model.Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	if err := m.CheckMembership(ctx, userID, roomID); err != nil {
		return nil, err
	}

	if replyToID != uuid.Nil {
		target, err := m.get(ctx, replyToID)
		if err != nil {
			return nil, err
		}
		if target.IsDeleted() {
			return nil, ErrInvalidArgument
		}
		if target.RoomID != roomID {
			return nil, ErrInvalidArgument
		}
	}

	created, err := m.R.CreateMessage(ctx, &model.Message{
		UserID:      userID,
		RoomID:      roomID,
		Text:        text,
		ReplyToID:   replyToID,
		Attachments: attachments,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to CreateMessage: %w", err)
	}

	m.H.Publish(hub.Message{
		Name: event.MessageCreated,
		Fields: hub.Fields{
			"message_id": created.ID,
			"message":    created,
		},
	})
	return created, nil
}

func (m *manager) Edit(ctx context.Context, userID, messageID uuid.UUID, text string) (*model.Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	msg, err := m.get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.UserID != userID {
		return nil, ErrForbidden
	}
	if msg.IsDeleted() {
		return nil, ErrAlreadyDeleted
	}

	if err := m.R.UpdateMessage(ctx, messageID, text); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlreadyDeleted
		}
		return nil, fmt.Errorf("failed to UpdateMessage: %w", err)
	}
	m.mcache.Forget(messageID)

	// 受信側は従前の状態を保持しているため最小限の差分のみを流す
	delta := &model.Message{
		ID:        messageID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Text:      text,
		UpdatedAt: time.Now(),
	}
	m.H.Publish(hub.Message{
		Name: event.MessageUpdated,
		Fields: hub.Fields{
			"message_id": messageID,
			"message":    delta,
		},
	})
	return delta, nil
}

func (m *manager) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := m.get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted() {
		return ErrAlreadyDeleted
	}

	if msg.UserID != userID {
		room, err := m.GetRoom(ctx, msg.RoomID)
		if err != nil {
			return err
		}
		// チャンネルメッセージはワークスペース管理者も削除できる
		if !room.IsChannel() {
			return ErrForbidden
		}
		admin, err := m.R.IsWorkspaceAdmin(ctx, userID, room.WorkspaceID)
		if err != nil {
			return fmt.Errorf("failed to IsWorkspaceAdmin: %w", err)
		}
		if !admin {
			return ErrForbidden
		}
	}

	now := time.Now()
	if err := m.R.DeleteMessage(ctx, messageID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAlreadyDeleted
		}
		return fmt.Errorf("failed to DeleteMessage: %w", err)
	}
	m.mcache.Forget(messageID)

	deleted := &model.Message{
		ID:        messageID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Text:      model.MessageTombstone,
		DeletedAt: &now,
	}
	m.H.Publish(hub.Message{
		Name: event.MessageDeleted,
		Fields: hub.Fields{
			"message_id": messageID,
			"message":    deleted,
		},
	})
	return nil
}

func (m *manager) Forward(ctx context.Context, userID, messageID, targetRoomID uuid.UUID) (*model.ForwardRecord, *model.Message, error) {
	msg, err := m.get(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg.IsDeleted() {
		return nil, nil, ErrInvalidArgument
	}

	// 転送元と転送先の両方のメンバーであること。ルーム種別には対称
	if err := m.CheckMembership(ctx, userID, msg.RoomID); err != nil {
		return nil, nil, err
	}
	if err := m.CheckMembership(ctx, userID, targetRoomID); err != nil {
		return nil, nil, err
	}

	f := &model.ForwardRecord{
		MessageID: messageID,
		RoomID:    targetRoomID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := m.R.CreateForward(ctx, f); err != nil {
		return nil, nil, fmt.Errorf("failed to CreateForward: %w", err)
	}

	m.H.Publish(hub.Message{
		Name: event.MessageForwarded,
		Fields: hub.Fields{
			"message_id": messageID,
			"forward":    f,
			"message":    msg,
		},
	})
	return f, msg, nil
}

func (m *manager) AddReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) (*model.Reaction, error) {
	if len(emoji) == 0 || len(emoji) > 64 {
		return nil, ErrInvalidArgument
	}
	msg, err := m.get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	r, err := m.R.AddReaction(ctx, messageID, userID, emoji)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to AddReaction: %w", err)
	}
	m.mcache.Forget(messageID)

	m.H.Publish(hub.Message{
		Name: event.ReactionAdded,
		Fields: hub.Fields{
			"message_id": messageID,
			"reaction":   r,
			"room_id":    msg.RoomID,
		},
	})
	return r, nil
}

func (m *manager) RemoveReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) error {
	msg, err := m.get(ctx, messageID)
	if err != nil {
		return err
	}

	if err := m.R.RemoveReaction(ctx, messageID, userID, emoji); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to RemoveReaction: %w", err)
	}
	m.mcache.Forget(messageID)

	m.H.Publish(hub.Message{
		Name: event.ReactionRemoved,
		Fields: hub.Fields{
			"message_id": messageID,
			"reaction":   &model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji},
			"room_id":    msg.RoomID,
		},
	})
	return nil
}

func (m *manager) CheckMembership(ctx context.Context, userID, roomID uuid.UUID) error {
	ok, err := m.R.IsRoomMember(ctx, userID, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to IsRoomMember: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (m *manager) GetRoom(ctx context.Context, roomID uuid.UUID) (*model.Room, error) {
	key := "room:" + roomID.String()
	if raw, ok := m.C.Get(ctx, key); ok {
		var room model.Room
		if err := json.Unmarshal(raw, &room); err == nil {
			return &room, nil
		}
	}

	room, err := m.R.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to GetRoom: %w", err)
	}

	if raw, err := json.Marshal(room); err == nil {
		if err := m.C.Set(ctx, key, raw, roomCacheTTL, cache.Fixed); err != nil {
			m.L.Warn("failed to cache room", zap.Stringer("roomId", roomID), zap.Error(err))
		}
	}
	return room, nil
}

func (m *manager) get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	// メモリキャッシュから取得。キャッシュに無い場合はreplaceFnで自動取得される
	return m.mcache.Get(ctx, id)
}

func validateText(text string) error {
	if n := utf8.RuneCountInString(text); n == 0 || n > MaxMessageLength {
		return ErrInvalidArgument
	}
	return nil
}
