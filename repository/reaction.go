package repository

import (
	"context"

	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/model"
)

// ReactionRepository メッセージリアクションリポジトリ
type ReactionRepository interface {
	// AddReaction 指定したメッセージに指定したユーザーのリアクションを追加します
	//
	// 成功した場合、リアクションとnilを返します。
	// 同一の(メッセージ, ユーザー, 絵文字)が既に存在する場合、ErrAlreadyExistsを返します。
	// DBによるエラーを返すことがあります。
	AddReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*model.Reaction, error)
	// RemoveReaction 指定したメッセージから指定したユーザーのリアクションを削除します
	//
	// 存在しないリアクションを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
}
