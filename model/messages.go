package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// MessageTombstone 削除済みメッセージの本文に置き換わるマーカー
const MessageTombstone = "[deleted]"

// Message メッセージ構造体
type Message struct {
	ID        uuid.UUID  `gorm:"type:char(36);not null;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:char(36);not null;index"      json:"userId"`
	RoomID    uuid.UUID  `gorm:"type:char(36);not null;index"      json:"roomId"`
	Text      string     `gorm:"type:text;not null"                json:"text"`
	ReplyToID uuid.UUID  `gorm:"type:char(36);not null;index"      json:"replyToId"`
	CreatedAt time.Time  `gorm:"precision:6;index"                 json:"createdAt"`
	UpdatedAt time.Time  `gorm:"precision:6"                       json:"updatedAt"`
	DeletedAt *time.Time `gorm:"precision:6"                       json:"deletedAt"`

	Attachments []Attachment `gorm:"constraint:attachments_message_id_messages_id_foreign,OnDelete:CASCADE" json:"attachments"`
	Reactions   []Reaction   `gorm:"constraint:reactions_message_id_messages_id_foreign,OnDelete:CASCADE"   json:"reactions"`
	User        *User        `gorm:"constraint:messages_user_id_users_id_foreign,OnUpdate:CASCADE"          json:"user,omitempty"`
}

// TableName テーブル名
func (*Message) TableName() string {
	return "messages"
}

// IsDeleted 削除済みかどうか
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}
