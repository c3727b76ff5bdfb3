package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// ForwardRecord メッセージ転送記録構造体
// 元メッセージへの参照のみを持ち、元メッセージ自体は変更しません
type ForwardRecord struct {
	ID        uuid.UUID `gorm:"type:char(36);not null;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:char(36);not null;index"      json:"messageId"`
	RoomID    uuid.UUID `gorm:"type:char(36);not null;index"      json:"roomId"`
	UserID    uuid.UUID `gorm:"type:char(36);not null"            json:"userId"`
	CreatedAt time.Time `gorm:"precision:6"                       json:"createdAt"`
}

// TableName テーブル名
func (*ForwardRecord) TableName() string {
	return "forward_records"
}
