package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/model"
)

// MessageRepository メッセージリポジトリ
type MessageRepository interface {
	// CreateMessage メッセージを作成します
	//
	// 成功した場合、投稿者・添付・リアクションをプリロードしたメッセージとnilを返します。
	// DBによるエラーを返すことがあります。
	CreateMessage(ctx context.Context, m *model.Message) (*model.Message, error)
	// GetMessageByID 指定したIDのメッセージを取得します
	//
	// 成功した場合、メッセージとnilを返します。削除済みメッセージも取得されます。
	// 存在しないメッセージを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	GetMessageByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
	// UpdateMessage 指定したメッセージの本文を更新します
	//
	// 存在しないメッセージを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	UpdateMessage(ctx context.Context, id uuid.UUID, text string) error
	// DeleteMessage 指定したメッセージを論理削除します
	//
	// 本文をトゥームストーンに置き換え、削除時刻を記録します。行は物理削除されません。
	// 存在しないメッセージを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	DeleteMessage(ctx context.Context, id uuid.UUID, at time.Time) error
	// GetMessages 指定したルームのメッセージを新しい順に取得します
	//
	// DBによるエラーを返すことがあります。
	GetMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*model.Message, error)
	// CreateForward メッセージ転送記録を作成します
	//
	// DBによるエラーを返すことがあります。
	CreateForward(ctx context.Context, f *model.ForwardRecord) error
}
