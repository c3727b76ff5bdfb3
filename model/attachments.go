package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// Attachment メッセージ添付ファイルのメタデータ
// ファイル本体はオブジェクトストレージにあり、ここではURL等の不透明なメタデータのみ扱います
type Attachment struct {
	ID        uuid.UUID `gorm:"type:char(36);not null;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:char(36);not null;index"      json:"-"`
	FileName  string    `gorm:"type:text;not null"                json:"fileName"`
	Mime      string    `gorm:"type:text;not null"                json:"mime"`
	Size      int64     `gorm:"type:bigint;not null"              json:"size"`
	URL       string    `gorm:"type:text;not null"                json:"url"`
	CreatedAt time.Time `gorm:"precision:6"                       json:"-"`
}

// TableName テーブル名
func (*Attachment) TableName() string {
	return "attachments"
}
