package repository

import (
	"context"

	"github.com/gofrs/uuid"

	"github.com/quartzchat/quartz/model"
)

// RoomRepository ルーム(チャンネル・会話)リポジトリ
// ルーム種別に対して対称な操作を提供します
type RoomRepository interface {
	// GetRoom 指定したIDのルーム射影を取得します
	//
	// チャンネル・会話の順で検索します。
	// 存在しないルームを指定した場合、ErrNotFoundを返します。
	// DBによるエラーを返すことがあります。
	GetRoom(ctx context.Context, roomID uuid.UUID) (*model.Room, error)
	// IsRoomMember 指定したユーザーが指定したルームのアクティブなメンバーかどうかを取得します
	//
	// チャンネルの場合はチャンネルメンバーシップ、会話の場合は参加者を参照します。
	// DBによるエラーを返すことがあります。
	IsRoomMember(ctx context.Context, userID, roomID uuid.UUID) (bool, error)
	// GetRoomMemberIDs 指定したルームの全メンバーのUUIDを取得します
	//
	// DBによるエラーを返すことがあります。
	GetRoomMemberIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
	// IsWorkspaceAdmin 指定したユーザーが指定したワークスペースの管理者かどうかを取得します
	//
	// DBによるエラーを返すことがあります。
	IsWorkspaceAdmin(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error)
}
