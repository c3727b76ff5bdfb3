package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// User ユーザー構造体
type User struct {
	ID          uuid.UUID `gorm:"type:char(36);not null;primaryKey"              json:"id"`
	Name        string    `gorm:"type:varchar(32);not null;unique"               json:"name"`
	DisplayName string    `gorm:"type:varchar(64);not null;default:''"           json:"displayName"`
	IconURL     string    `gorm:"type:text;not null"                             json:"iconUrl"`
	CreatedAt   time.Time `gorm:"precision:6"                                    json:"-"`
	UpdatedAt   time.Time `gorm:"precision:6"                                    json:"-"`
}

// TableName テーブル名
func (*User) TableName() string {
	return "users"
}

// GetResponseDisplayName クライアントに返す表示名を取得します
func (u *User) GetResponseDisplayName() string {
	if len(u.DisplayName) == 0 {
		return u.Name
	}
	return u.DisplayName
}
