package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// Channel チャンネル構造体
type Channel struct {
	ID          uuid.UUID `gorm:"type:char(36);not null;primaryKey"       json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:char(36);not null;index"            json:"workspaceId"`
	Name        string    `gorm:"type:varchar(64);not null"               json:"name"`
	Topic       string    `gorm:"type:text;not null"                      json:"topic"`
	CreatedAt   time.Time `gorm:"precision:6"                             json:"-"`
	UpdatedAt   time.Time `gorm:"precision:6"                             json:"-"`
}

// TableName テーブル名
func (*Channel) TableName() string {
	return "channels"
}

// ChannelMember チャンネルメンバー構造体
type ChannelMember struct {
	ChannelID uuid.UUID `gorm:"type:char(36);not null;primaryKey"`
	UserID    uuid.UUID `gorm:"type:char(36);not null;primaryKey;index"`
	CreatedAt time.Time `gorm:"precision:6"`
}

// TableName テーブル名
func (*ChannelMember) TableName() string {
	return "channel_members"
}
