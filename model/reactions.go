package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// Reaction メッセージリアクション構造体
// (message_id, user_id, emoji)が冪等性キーとなります
type Reaction struct {
	MessageID uuid.UUID `gorm:"type:char(36);not null;primaryKey"   json:"messageId"`
	UserID    uuid.UUID `gorm:"type:char(36);not null;primaryKey"   json:"userId"`
	Emoji     string    `gorm:"type:varchar(64);not null;primaryKey" json:"emoji"`
	CreatedAt time.Time `gorm:"precision:6"                         json:"createdAt"`
}

// TableName テーブル名
func (*Reaction) TableName() string {
	return "reactions"
}
