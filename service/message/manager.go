package message

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/model"
)

var (
	// ErrNotFound メッセージ・ルーム・リアクションが存在しません
	ErrNotFound = errors.New("not found")
	// ErrForbidden 対象ルームのメンバーでない、或いは本人以外の操作です
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyExists 同一のリアクションが既に存在しています
	ErrAlreadyExists = errors.New("already exists")
	// ErrAlreadyDeleted メッセージは既に削除されています
	ErrAlreadyDeleted = errors.New("already deleted")
	// ErrInvalidArgument 引数が不正です
	ErrInvalidArgument = errors.New("invalid argument")
)

// MaxMessageLength メッセージ本文の最大文字数
const MaxMessageLength = 10000

// Manager メッセージマネージャ
//
// ドメインイベントの検証と永続化を担い、成功時にhubへイベントを
// 発行します。ファンアウトは通知サービスが行います。
// 永続化の失敗はエラーとして返り、その場合イベントは発行されません
// (永続化されていないイベントが一部の受信者にだけ届くことはありません)。
type Manager interface {
	// Create メッセージを投稿します
	//
	// 成功した場合、ハイドレート済みメッセージとnilを返します。
	// 投稿者が対象ルームのメンバーでない場合、ErrForbiddenを返します。
	// 返信先が存在しない場合はErrNotFoundを、削除済みの場合はErrInvalidArgumentを返します。
	// DBによるエラーを返すことがあります。
	Create(ctx context.Context, userID, roomID uuid.UUID, text string, replyToID uuid.UUID, attachments []model.Attachment) (*model.Message, error)
	// Edit 指定したメッセージを編集します
	//
	// 成功した場合、差分(ID・新本文・更新時刻)を持つメッセージとnilを返します。
	// 投稿者本人以外が編集しようとした場合、ErrForbiddenを返します。
	// 削除済みメッセージを指定した場合、ErrAlreadyDeletedを返します。
	// 存在しないメッセージを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	Edit(ctx context.Context, userID, messageID uuid.UUID, text string) (*model.Message, error)
	// Delete 指定したメッセージを論理削除します
	//
	// 投稿者本人、またはチャンネルメッセージの場合はワークスペース管理者のみが
	// 削除できます。二重削除はErrAlreadyDeletedとして拒否されます
	// (クライアントの状態ずれの兆候として顕在化させる)。
	// 存在しないメッセージを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	Delete(ctx context.Context, userID, messageID uuid.UUID) error
	// Forward 指定したメッセージを別ルームへ転送します
	//
	// 転送者は転送元ルームと転送先ルームの両方のメンバーである必要があります。
	// ルーム種別に対して対称で、チャンネル・会話のどの組み合わせも同じ経路です。
	// 元メッセージへの参照を持つ転送記録を作成するだけで、元メッセージは変更しません。
	// DBによるエラーを返すことがあります。
	Forward(ctx context.Context, userID, messageID, targetRoomID uuid.UUID) (*model.ForwardRecord, *model.Message, error)
	// AddReaction 指定したメッセージにリアクションを追加します
	//
	// (メッセージ, ユーザー, 絵文字)が冪等性キーで、重複はErrAlreadyExistsとして
	// 拒否されます(2つ目のリアクションは作られません)。
	// DBによるエラーを返すことがあります。
	AddReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) (*model.Reaction, error)
	// RemoveReaction 指定したメッセージからリアクションを削除します
	//
	// 存在しないリアクションを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	RemoveReaction(ctx context.Context, userID, messageID uuid.UUID, emoji string) error
	// CheckMembership 指定したユーザーが指定したルームのメンバーであることを確認します
	//
	// メンバーでない場合、ErrForbiddenを返します。
	// 存在しないルームを指定した場合、ErrNotFoundを返します。
	CheckMembership(ctx context.Context, userID, roomID uuid.UUID) error
	// GetRoom 指定したルームの射影を取得します
	GetRoom(ctx context.Context, roomID uuid.UUID) (*model.Room, error)
}
