package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// Conversation 1対1会話構造体
type Conversation struct {
	ID          uuid.UUID `gorm:"type:char(36);not null;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:char(36);not null;index"      json:"workspaceId"`
	CreatedAt   time.Time `gorm:"precision:6"                       json:"-"`
}

// TableName テーブル名
func (*Conversation) TableName() string {
	return "conversations"
}

// ConversationParticipant 会話参加者構造体
type ConversationParticipant struct {
	ConversationID uuid.UUID `gorm:"type:char(36);not null;primaryKey"`
	UserID         uuid.UUID `gorm:"type:char(36);not null;primaryKey;index"`
	CreatedAt      time.Time `gorm:"precision:6"`
}

// TableName テーブル名
func (*ConversationParticipant) TableName() string {
	return "conversation_participants"
}
