package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/model"
)

// UnreadRepository 未読状態リポジトリ
type UnreadRepository interface {
	// IncrementUnread 指定したユーザー・ルームの未読数を1増やします
	//
	// レコードが無い場合は作成します。インクリメントはSQL上の加算で行われ、
	// 並行呼び出しで更新が失われることはありません。
	// DBによるエラーを返すことがあります。
	IncrementUnread(ctx context.Context, userID, roomID uuid.UUID) error
	// SetRoomRead 指定したユーザー・ルームの未読数を0にし、最終既読時刻を記録します
	//
	// DBによるエラーを返すことがあります。
	SetRoomRead(ctx context.Context, userID, roomID uuid.UUID, at time.Time) error
	// GetUnreadsByUserID 指定したユーザーの全未読レコードを取得します
	//
	// DBによるエラーを返すことがあります。
	GetUnreadsByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Unread, error)
}
