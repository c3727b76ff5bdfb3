package repository

import (
	"context"

	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/model"
)

// UserRepository ユーザーリポジトリ
type UserRepository interface {
	// GetUser 指定したユーザーを取得します
	//
	// 成功した場合、ユーザーとnilを返します。
	// 存在しないユーザーを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}
