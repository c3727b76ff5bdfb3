package model

import (
	"github.com/gofrs/uuid"
)

// RoomKind ルームの種別
type RoomKind int

const (
	// RoomKindChannel チャンネル
	RoomKindChannel RoomKind = iota
	// RoomKindConversation 1対1会話
	RoomKindConversation
)

// Room ルーム(チャンネル或いは会話)の射影。ルーム種別に対して対称な操作で使用します
type Room struct {
	ID          uuid.UUID
	Kind        RoomKind
	WorkspaceID uuid.UUID
}

// IsChannel チャンネルかどうか
func (r *Room) IsChannel() bool {
	return r.Kind == RoomKindChannel
}
