package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// WorkspaceRole ワークスペース内でのユーザーのロール
type WorkspaceRole string

const (
	// WorkspaceRoleAdmin 管理者
	WorkspaceRoleAdmin WorkspaceRole = "admin"
	// WorkspaceRoleMember 一般メンバー
	WorkspaceRoleMember WorkspaceRole = "member"
)

// Workspace ワークスペース構造体
type Workspace struct {
	ID        uuid.UUID `gorm:"type:char(36);not null;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(64);not null;unique"  json:"name"`
	CreatedAt time.Time `gorm:"precision:6"                       json:"-"`
	UpdatedAt time.Time `gorm:"precision:6"                       json:"-"`
}

// TableName テーブル名
func (*Workspace) TableName() string {
	return "workspaces"
}

// WorkspaceMember ワークスペースメンバー構造体
type WorkspaceMember struct {
	WorkspaceID uuid.UUID     `gorm:"type:char(36);not null;primaryKey"`
	UserID      uuid.UUID     `gorm:"type:char(36);not null;primaryKey;index"`
	Role        WorkspaceRole `gorm:"type:varchar(30);not null;default:'member'"`
	CreatedAt   time.Time     `gorm:"precision:6"`
}

// TableName テーブル名
func (*WorkspaceMember) TableName() string {
	return "workspace_members"
}
