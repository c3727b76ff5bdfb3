package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// Unread ユーザー・ルームごとの未読状態レコード
type Unread struct {
	UserID     uuid.UUID `gorm:"type:char(36);not null;primaryKey" json:"userId"`
	RoomID     uuid.UUID `gorm:"type:char(36);not null;primaryKey" json:"roomId"`
	Count      int       `gorm:"type:int;not null;default:0"       json:"count"`
	LastReadAt time.Time `gorm:"precision:6"                       json:"lastReadAt"`
	UpdatedAt  time.Time `gorm:"precision:6"                       json:"-"`
}

// TableName テーブル名
func (*Unread) TableName() string {
	return "unreads"
}
